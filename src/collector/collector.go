package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nhirsama/Goster-Telemetry/src/inter"
	"github.com/nhirsama/Goster-Telemetry/src/protocol"
)

// Options 采集端参数
type Options struct {
	// ReadTimeout 单条连接读取 16 字节的期限，0 表示不限制
	ReadTimeout time.Duration
	// NotifyBuffer Received 通道容量，0 表示不通知
	NotifyBuffer int
}

// Collector 接收设备的原始连接：每条连接恰好读取一条记录
type Collector struct {
	store inter.RecordStore
	opts  Options
	codec inter.RecordCodec

	mu       sync.Mutex
	listener net.Listener
	closed   bool // 置位后不再登记新连接，mu 保护
	notify   chan inter.ReceivedRecord
	wg       sync.WaitGroup
}

// New 创建采集端，store 可以为 nil (只记录日志)
func New(store inter.RecordStore, opts Options) *Collector {
	c := &Collector{
		store: store,
		opts:  opts,
		codec: protocol.NewRecordCodec(),
	}
	if opts.NotifyBuffer > 0 {
		c.notify = make(chan inter.ReceivedRecord, opts.NotifyBuffer)
	}
	return c
}

// Listen 在 addr 上开始监听，返回实际地址 (便于使用 :0)
func (c *Collector) Listen(addr string) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
	slog.Info("采集端启动", "addr", l.Addr().String())
	return l.Addr(), nil
}

// Received 返回收到记录的通知通道，NotifyBuffer 为 0 时返回 nil
func (c *Collector) Received() <-chan inter.ReceivedRecord {
	return c.notify
}

// Serve 接受连接直到 ctx 取消或监听关闭
func (c *Collector) Serve(ctx context.Context) error {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l == nil {
		return errors.New("collector: 未调用 Listen")
	}

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				c.wg.Wait()
				return nil
			}
			slog.Warn("接受连接时出错", "err", err)
			continue
		}
		if !c.track() {
			conn.Close()
			continue
		}
		go func() {
			defer c.wg.Done()
			c.handleConnection(ctx, conn)
		}()
	}
}

// track 在未关闭时登记一条处理中的连接，与 Close 中的 wg.Wait 互斥
func (c *Collector) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

// Close 停止监听并等待处理中的连接结束
func (c *Collector) Close() error {
	c.mu.Lock()
	c.closed = true
	l := c.listener
	c.mu.Unlock()
	var err error
	if l != nil {
		err = l.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	c.wg.Wait()
	return err
}

// handleConnection 读取恰好 16 字节，多余的数据忽略
func (c *Collector) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	slog.Debug("客户端连接", "remote", remote)

	if c.opts.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			slog.Error("设置读取期限失败", "remote", remote, "err", err)
			return
		}
	}

	buf := make([]byte, c.codec.Size())
	n, err := io.ReadFull(conn, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("连接关闭，数据不完整", "remote", remote, "bytes", n)
		} else {
			slog.Error("读取数据时出错", "remote", remote, "bytes", n, "err", err)
		}
		return
	}

	rec, err := c.codec.Decode(buf)
	if err != nil {
		slog.Error("解析记录失败", "remote", remote, "err", err)
		return
	}

	slog.Info("收到设备数据",
		"remote", remote,
		"device_id", rec.DeviceID,
		"sequence_num", rec.SequenceNum,
		"timestamp", rec.Timestamp,
		"temperature", rec.Temperature,
		"humidity", rec.Humidity,
		"status", rec.Status,
		"hex", protocol.HexDump(buf),
		"crc16", protocol.Digest(buf),
	)

	received := inter.ReceivedRecord{
		Record:     rec,
		Raw:        buf,
		Remote:     remote,
		ReceivedAt: time.Now(),
	}
	if c.store != nil {
		if err := c.store.SaveRecord(received); err != nil {
			slog.Error("保存记录失败", "remote", remote, "err", err)
			return
		}
	}

	if c.notify != nil {
		select {
		case c.notify <- received:
		case <-ctx.Done():
		default:
			slog.Debug("通知通道已满，丢弃", "remote", remote)
		}
	}
}
