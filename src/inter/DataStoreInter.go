package inter

import "time"

// ReceivedRecord 采集端收到的一条记录及其来源信息
type ReceivedRecord struct {
	ID         int64           `json:"id"`
	Record     TelemetryRecord `json:"record"`
	Raw        []byte          `json:"raw"`         // 原始 16 字节
	Remote     string          `json:"remote"`      // 对端地址
	ReceivedAt time.Time       `json:"received_at"` // 接收时间
}

// RecordStore 定义了采集端持久化遥测记录的接口。
// 该接口旨在兼容多种存储后端（当前实现为 SQLite）。
type RecordStore interface {
	// SaveRecord 保存一条收到的记录，ID 由存储生成
	SaveRecord(rec ReceivedRecord) error

	// ListRecords 按接收顺序倒序列出指定设备的记录，limit <= 0 时不限制条数
	ListRecords(deviceID uint8, limit int) ([]ReceivedRecord, error)

	// Close 释放底层连接
	Close() error
}
