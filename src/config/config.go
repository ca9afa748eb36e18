package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 TELEMETRY_SERVER_PORT
const EnvPrefix = "TELEMETRY"

// Config 发送端与采集端共用的配置
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	Server    ServerConfig
	Record    RecordConfig
	Collector CollectorConfig
}

// ServerConfig 发送端的目标地址与超时
type ServerConfig struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// RecordConfig 发送端要发送的记录字段
type RecordConfig struct {
	DeviceID    uint8
	SequenceNum uint16
	Timestamp   uint32
	Temperature float32
	Humidity    float32
	Status      uint8
}

// CollectorConfig 采集端监听与存储配置
type CollectorConfig struct {
	Listen      string
	ReadTimeout time.Duration
	DBPath      string
}

// flag 名与配置 key 的对应关系
var flagKeys = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"connect-timeout": "server.connect_timeout",
	"write-timeout":   "server.write_timeout",
	"device-id":       "record.device_id",
	"seq":             "record.sequence_num",
	"timestamp":       "record.timestamp",
	"temperature":     "record.temperature",
	"humidity":        "record.humidity",
	"status":          "record.status",
	"listen":          "collector.listen",
	"read-timeout":    "collector.read_timeout",
	"db":              "collector.db_path",
	"log-level":       "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.connect_timeout", "0s")
	v.SetDefault("server.write_timeout", "0s")

	// 与嵌入式模拟设备的默认数据一致
	v.SetDefault("record.device_id", 0x01)
	v.SetDefault("record.sequence_num", 1234)
	v.SetDefault("record.timestamp", 1234567890)
	v.SetDefault("record.temperature", 25.5)
	v.SetDefault("record.humidity", 60.0)
	v.SetDefault("record.status", 0xAA)

	v.SetDefault("collector.listen", ":10000")
	v.SetDefault("collector.read_timeout", "10s")
	v.SetDefault("collector.db_path", "./telemetry.db")
}

// NewFlagSet 创建命令行参数，未显式设置的参数不会覆盖配置文件或环境变量
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "配置文件路径")
	fs.String("host", "", "服务端地址")
	fs.Int("port", 0, "服务端端口")
	fs.Duration("connect-timeout", 0, "连接超时")
	fs.Duration("write-timeout", 0, "写入超时")
	fs.Uint("device-id", 0, "设备 ID (0-255)")
	fs.Uint("seq", 0, "序列号 (0-65535)")
	fs.Uint32("timestamp", 0, "时间戳 (秒)")
	fs.Float32("temperature", 0, "温度 (°C)")
	fs.Float32("humidity", 0, "湿度 (%)")
	fs.Uint("status", 0, "状态字节 (0-255)")
	fs.String("listen", "", "采集端监听地址")
	fs.Duration("read-timeout", 0, "采集端读取超时")
	fs.String("db", "", "采集端 SQLite 路径")
	fs.String("log-level", "", "日志级别 (debug, info, warn, error)")
	return fs
}

// Load 按 默认值 < 配置文件 < 环境变量 < 命令行 的优先级加载配置。
// fs 可以为 nil，此时只读取配置文件与环境变量。
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfgFile string
	if fs != nil {
		cfgFile, _ = fs.GetString("config")
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("telemetry")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.goster")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config

	cfg.AppEnv = strings.TrimSpace(v.GetString("app.env"))
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid app.env %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := ParseLogLevel(v.GetString("log.level"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	cfg.Server.Host = strings.TrimSpace(v.GetString("server.host"))
	if cfg.Server.Host == "" {
		return Config{}, errors.New("server.host must not be empty")
	}
	port, err := bounded(v, "server.port", math.MaxUint16)
	if err != nil {
		return Config{}, err
	}
	if port < 1 {
		return Config{}, fmt.Errorf("invalid server.port %d (allowed: 1-65535)", port)
	}
	cfg.Server.Port = int(port)
	if cfg.Server.ConnectTimeout, err = duration(v, "server.connect_timeout"); err != nil {
		return Config{}, err
	}
	if cfg.Server.WriteTimeout, err = duration(v, "server.write_timeout"); err != nil {
		return Config{}, err
	}

	deviceID, err := bounded(v, "record.device_id", math.MaxUint8)
	if err != nil {
		return Config{}, err
	}
	seq, err := bounded(v, "record.sequence_num", math.MaxUint16)
	if err != nil {
		return Config{}, err
	}
	ts, err := bounded(v, "record.timestamp", math.MaxUint32)
	if err != nil {
		return Config{}, err
	}
	status, err := bounded(v, "record.status", math.MaxUint8)
	if err != nil {
		return Config{}, err
	}
	temp, err := float(v, "record.temperature")
	if err != nil {
		return Config{}, err
	}
	hum, err := float(v, "record.humidity")
	if err != nil {
		return Config{}, err
	}
	cfg.Record = RecordConfig{
		DeviceID:    uint8(deviceID),
		SequenceNum: uint16(seq),
		Timestamp:   uint32(ts),
		Temperature: temp,
		Humidity:    hum,
		Status:      uint8(status),
	}

	cfg.Collector.Listen = strings.TrimSpace(v.GetString("collector.listen"))
	if cfg.Collector.Listen == "" {
		return Config{}, errors.New("collector.listen must not be empty")
	}
	if cfg.Collector.ReadTimeout, err = duration(v, "collector.read_timeout"); err != nil {
		return Config{}, err
	}
	cfg.Collector.DBPath = strings.TrimSpace(v.GetString("collector.db_path"))

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.Get(key)
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, fmt.Sprint(raw), err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, d)
	}
	return d, nil
}

// bounded 读取 0..max 的整数。字符串只接受十进制或 0x 前缀的十六进制，
// 前导 0 不按八进制解释。
func bounded(v *viper.Viper, key string, max uint64) (uint64, error) {
	raw := v.Get(key)

	var (
		n   uint64
		err error
	)
	switch x := raw.(type) {
	case string:
		s := strings.TrimSpace(x)
		if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
			n, err = strconv.ParseUint(hex, 16, 64)
		} else {
			n, err = strconv.ParseUint(s, 10, 64)
		}
	case bool, nil:
		err = errors.New("not an integer")
	case float32, float64:
		f := cast.ToFloat64(x)
		if f < 0 || f != math.Trunc(f) {
			err = errors.New("not a non-negative integer")
		} else {
			n = uint64(f)
		}
	default:
		var i int64
		i, err = cast.ToInt64E(x)
		if err == nil && i < 0 {
			err = errors.New("negative")
		}
		n = uint64(i)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, fmt.Sprint(raw), err)
	}
	if n > max {
		return 0, fmt.Errorf("invalid %s %d (allowed: 0-%d)", key, n, max)
	}
	return n, nil
}

// float 读取 float32，无法解析时返回错误而不是 0
func float(v *viper.Viper, key string) (float32, error) {
	raw := v.Get(key)

	var (
		f   float32
		err error
	)
	switch x := raw.(type) {
	case string:
		var f64 float64
		f64, err = strconv.ParseFloat(strings.TrimSpace(x), 32)
		f = float32(f64)
	case bool, nil:
		err = errors.New("not a number")
	default:
		f, err = cast.ToFloat32E(x)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, fmt.Sprint(raw), err)
	}
	return f, nil
}

// ParseLogLevel 解析日志级别
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q (allowed: debug, info, warn, error)", s)
	}
}
