package protocol

import (
	"fmt"
	"math"
	"strings"

	"github.com/nhirsama/Goster-Telemetry/src/inter"
	"github.com/sigurn/crc16"
)

// RecordCodec 实现 inter.RecordCodec 接口，无状态
type RecordCodec struct{}

// NewRecordCodec 创建一个新的编解码器实例
func NewRecordCodec() inter.RecordCodec {
	return &RecordCodec{}
}

func (c *RecordCodec) Encode(rec inter.TelemetryRecord) []byte { return Encode(rec) }

func (c *RecordCodec) Decode(b []byte) (inter.TelemetryRecord, error) { return Decode(b) }

func (c *RecordCodec) Size() int { return Size() }

// Size 返回记录固定长度，不依赖任何内存布局推导
func Size() int {
	return inter.RecordSize
}

// Encode 将记录按字段顺序编码为 16 字节 (小端序)
func Encode(rec inter.TelemetryRecord) []byte {
	return AppendEncode(make([]byte, 0, inter.RecordSize), rec)
}

// AppendEncode 将编码结果追加到 dst
func AppendEncode(dst []byte, rec inter.TelemetryRecord) []byte {
	// 布局 (Offset):
	// 0 DeviceID | 1-2 SequenceNum | 3-6 Timestamp | 7-10 Temperature | 11-14 Humidity | 15 Status
	dst = append(dst, rec.DeviceID)
	dst = inter.ByteOrder.AppendUint16(dst, rec.SequenceNum)
	dst = inter.ByteOrder.AppendUint32(dst, rec.Timestamp)
	dst = inter.ByteOrder.AppendUint32(dst, math.Float32bits(rec.Temperature))
	dst = inter.ByteOrder.AppendUint32(dst, math.Float32bits(rec.Humidity))
	dst = append(dst, rec.Status)
	return dst
}

// Decode 从恰好 16 字节中解析记录
func Decode(b []byte) (inter.TelemetryRecord, error) {
	if len(b) != inter.RecordSize {
		return inter.TelemetryRecord{}, fmt.Errorf("%w: 实际 %d 字节", inter.ErrMalformedRecord, len(b))
	}

	return inter.TelemetryRecord{
		DeviceID:    b[inter.OffsetDeviceID],
		SequenceNum: inter.ByteOrder.Uint16(b[inter.OffsetSequenceNum:]),
		Timestamp:   inter.ByteOrder.Uint32(b[inter.OffsetTimestamp:]),
		Temperature: math.Float32frombits(inter.ByteOrder.Uint32(b[inter.OffsetTemperature:])),
		Humidity:    math.Float32frombits(inter.ByteOrder.Uint32(b[inter.OffsetHumidity:])),
		Status:      b[inter.OffsetStatus],
	}, nil
}

// 初始化 Modbus CRC16 表
var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Digest 计算已编码记录的 CRC16 (Modbus)，仅用于收发两端日志比对，不上线
func Digest(b []byte) uint16 {
	return crc16.Checksum(b, modbusTable)
}

// HexDump 将字节转换为 "01 D2 04" 形式的十六进制字符串
func HexDump(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, x := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", x)
	}
	return sb.String()
}
