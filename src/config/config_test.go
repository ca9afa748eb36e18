package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 10000, cfg.Server.Port)
	assert.Zero(t, cfg.Server.ConnectTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)

	assert.Equal(t, RecordConfig{
		DeviceID:    0x01,
		SequenceNum: 1234,
		Timestamp:   1234567890,
		Temperature: 25.5,
		Humidity:    60.0,
		Status:      0xAA,
	}, cfg.Record)

	assert.Equal(t, ":10000", cfg.Collector.Listen)
	assert.Equal(t, 10*time.Second, cfg.Collector.ReadTimeout)
	assert.Equal(t, "./telemetry.db", cfg.Collector.DBPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEMETRY_SERVER_HOST", "10.0.0.7")
	t.Setenv("TELEMETRY_SERVER_PORT", "12000")
	t.Setenv("TELEMETRY_SERVER_CONNECT_TIMEOUT", "3s")
	t.Setenv("TELEMETRY_RECORD_STATUS", "0x0F")
	t.Setenv("TELEMETRY_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Server.Host)
	assert.Equal(t, 12000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ConnectTimeout)
	assert.Equal(t, uint8(0x0F), cfg.Record.Status)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("TELEMETRY_SERVER_PORT", "12000")

	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--port", "13000", "--device-id", "7", "--temperature=-12.25", "--seq", "65535"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 13000, cfg.Server.Port)
	assert.Equal(t, uint8(7), cfg.Record.DeviceID)
	assert.Equal(t, uint16(65535), cfg.Record.SequenceNum)
	assert.Equal(t, float32(-12.25), cfg.Record.Temperature)
	// 未设置的 flag 不覆盖默认值
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, float32(60.0), cfg.Record.Humidity)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	content := []byte(`
server:
  host: sensor-gw.local
  port: 10001
  write_timeout: 500ms
record:
  device_id: 3
  humidity: 45.5
collector:
  listen: 127.0.0.1:10001
  db_path: /tmp/records.db
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config", path}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "sensor-gw.local", cfg.Server.Host)
	assert.Equal(t, 10001, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.WriteTimeout)
	assert.Equal(t, uint8(3), cfg.Record.DeviceID)
	assert.Equal(t, float32(45.5), cfg.Record.Humidity)
	assert.Equal(t, "127.0.0.1:10001", cfg.Collector.Listen)
	assert.Equal(t, "/tmp/records.db", cfg.Collector.DBPath)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := Load(fs)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name, env, value string
	}{
		{"port out of range", "TELEMETRY_SERVER_PORT", "70000"},
		{"port not a number", "TELEMETRY_SERVER_PORT", "http"},
		{"device id out of range", "TELEMETRY_RECORD_DEVICE_ID", "256"},
		{"device id not a number", "TELEMETRY_RECORD_DEVICE_ID", "abc"},
		{"sequence out of range", "TELEMETRY_RECORD_SEQUENCE_NUM", "65536"},
		{"sequence fractional", "TELEMETRY_RECORD_SEQUENCE_NUM", "1.5"},
		{"timestamp not a number", "TELEMETRY_RECORD_TIMESTAMP", "yesterday"},
		{"status negative", "TELEMETRY_RECORD_STATUS", "-1"},
		{"status bad hex", "TELEMETRY_RECORD_STATUS", "0xZZ"},
		{"temperature not a number", "TELEMETRY_RECORD_TEMPERATURE", "hot"},
		{"humidity not a number", "TELEMETRY_RECORD_HUMIDITY", "wet"},
		{"negative timeout", "TELEMETRY_SERVER_CONNECT_TIMEOUT", "-1s"},
		{"timeout not a duration", "TELEMETRY_COLLECTOR_READ_TIMEOUT", "soon"},
		{"log level", "TELEMETRY_LOG_LEVEL", "verbose"},
		{"app env", "TELEMETRY_APP_ENV", "staging"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			_, err := Load(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.value)
		})
	}
}

// 前导 0 按十进制解析，不按八进制
func TestLoad_LeadingZeroIsDecimal(t *testing.T) {
	t.Setenv("TELEMETRY_RECORD_SEQUENCE_NUM", "010")
	t.Setenv("TELEMETRY_RECORD_DEVICE_ID", " 042 ")
	t.Setenv("TELEMETRY_RECORD_TIMESTAMP", "0XFF")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, uint16(10), cfg.Record.SequenceNum)
	assert.Equal(t, uint8(42), cfg.Record.DeviceID)
	assert.Equal(t, uint32(255), cfg.Record.Timestamp)
}

func TestLoad_FlagStringValues(t *testing.T) {
	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--timestamp", "0", "--humidity", "0", "--status", "255"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Zero(t, cfg.Record.Timestamp)
	assert.Zero(t, cfg.Record.Humidity)
	assert.Equal(t, uint8(255), cfg.Record.Status)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
