package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorKind 连接失败的原因分类
type ErrorKind int

const (
	KindOther       ErrorKind = iota // 其他错误
	KindRefused                      // 对端拒绝连接
	KindTimeout                      // 连接超时
	KindUnreachable                  // 网络或主机不可达
	KindResolution                   // 地址解析失败
)

func (k ErrorKind) String() string {
	switch k {
	case KindRefused:
		return "refused"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindResolution:
		return "resolution"
	default:
		return "other"
	}
}

// ConnectionError 建立连接失败
type ConnectionError struct {
	Addr string
	Kind ErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: 连接 %s 失败 (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError 写入失败，Written 为失败前已交给传输层的字节数
type SendError struct {
	Written int
	Total   int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: 发送失败 (已发送 %d/%d 字节): %v", e.Written, e.Total, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// classify 根据底层错误判断连接失败原因
func classify(err error) ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindResolution
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return KindResolution
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return KindUnreachable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
