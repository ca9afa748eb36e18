package inter

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// =============================================================================
// 设备遥测记录 (DeviceData) 常量与类型定义
// =============================================================================

const (
	// RecordSize 记录固定长度 (16 Bytes)，不含任何填充
	RecordSize = 16

	// 各字段在字节流中的偏移量
	OffsetDeviceID    = 0
	OffsetSequenceNum = 1
	OffsetTimestamp   = 3
	OffsetTemperature = 7
	OffsetHumidity    = 11
	OffsetStatus      = 15
)

// ByteOrder 多字节字段统一使用小端序
var ByteOrder = binary.LittleEndian

// ErrMalformedRecord 输入字节长度不等于 RecordSize
var ErrMalformedRecord = errors.New("record: 数据长度不是 16 字节")

// TelemetryRecord 表示一条设备遥测记录，字段顺序即线上顺序
type TelemetryRecord struct {
	// DeviceID 设备 ID
	DeviceID uint8
	// SequenceNum 序列号，由调用方分配
	SequenceNum uint16
	// Timestamp 秒级时间戳 (Unix 或设备时钟)
	Timestamp uint32
	// Temperature 温度 (°C)
	Temperature float32
	// Humidity 相对湿度 (%)
	Humidity float32
	// Status 设备状态位
	Status uint8
}

func (r TelemetryRecord) String() string {
	return fmt.Sprintf(
		"DeviceData{deviceId=0x%02X, sequenceNum=%d, timestamp=%d, temperature=%.2f°C, humidity=%.2f%%, status=0x%02X}",
		r.DeviceID, r.SequenceNum, r.Timestamp, r.Temperature, r.Humidity, r.Status,
	)
}

// RecordCodec 定义了记录编码与解码的核心接口
type RecordCodec interface {
	// Encode 将记录编码为 RecordSize 字节
	Encode(rec TelemetryRecord) []byte

	// Decode 从恰好 RecordSize 字节中解析记录，长度不符时返回 ErrMalformedRecord
	Decode(b []byte) (TelemetryRecord, error)

	// Size 返回固定的记录长度
	Size() int
}
