package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nhirsama/Goster-Telemetry/src/inter"
	"github.com/nhirsama/Goster-Telemetry/src/protocol"
)

// maxZeroWrites 连续写入 0 字节且无错误的次数上限
const maxZeroWrites = 100

// State 会话状态
type State int

const (
	Unconnected State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options 连接与写入的可选超时，0 表示不设置
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Session 独占一条出站字节流连接，从 Connect 到 Close。
// 零值处于 Unconnected 状态。非并发安全。
type Session struct {
	conn  io.WriteCloser
	opts  Options
	state State
	addr  string
}

// Connect 建立到 host:port 的 TCP 连接
func Connect(ctx context.Context, host string, port int, opts Options) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Kind: classify(err), Err: err}
	}

	slog.Debug("连接成功", "addr", addr, "local", conn.LocalAddr().String())
	s := NewSession(conn, opts)
	s.addr = addr
	return s, nil
}

// NewSession 包装一条已打开的字节流
func NewSession(conn io.WriteCloser, opts Options) *Session {
	return &Session{conn: conn, opts: opts, state: Connected}
}

// State 返回当前状态
func (s *Session) State() State {
	return s.state
}

// Send 将 b 全部写入连接，处理部分写入。
// 仅在 Connected 状态下合法，否则属于调用方编程错误，直接 panic。
func (s *Session) Send(b []byte) error {
	if s.state != Connected {
		panic("transport: Send called on " + s.state.String() + " session")
	}

	if s.opts.WriteTimeout > 0 {
		if d, ok := s.conn.(writeDeadliner); ok {
			if err := d.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
				return &SendError{Written: 0, Total: len(b), Err: err}
			}
		}
	}

	written, zero := 0, 0
	for written < len(b) {
		n, err := s.conn.Write(b[written:])
		if n < 0 || n > len(b)-written {
			return &SendError{Written: written, Total: len(b), Err: errors.New("transport: 非法的写入长度")}
		}
		written += n
		if err != nil {
			return &SendError{Written: written, Total: len(b), Err: err}
		}
		if n == 0 {
			zero++
			if zero >= maxZeroWrites {
				return &SendError{Written: written, Total: len(b), Err: io.ErrNoProgress}
			}
			continue
		}
		zero = 0
	}
	return nil
}

// SendRecord 编码记录并发送
func (s *Session) SendRecord(rec inter.TelemetryRecord) error {
	buf := protocol.Encode(rec)
	if err := s.Send(buf); err != nil {
		return err
	}
	slog.Debug("记录已发送",
		"addr", s.addr,
		"bytes", len(buf),
		"crc16", protocol.Digest(buf),
		"hex", protocol.HexDump(buf),
	)
	return nil
}

// Close 释放连接，可重复调用
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	prev := s.state
	s.state = Closed
	if prev != Connected || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Transmit 建立连接、发送一条记录并在任何路径上关闭连接
func Transmit(ctx context.Context, host string, port int, rec inter.TelemetryRecord, opts Options) error {
	s, err := Connect(ctx, host, port, opts)
	if err != nil {
		return err
	}
	return transmit(s, rec)
}

// transmit 发送后关闭会话；发送错误优先于关闭错误
func transmit(s *Session, rec inter.TelemetryRecord) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return s.SendRecord(rec)
}
