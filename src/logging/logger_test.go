package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhirsama/Goster-Telemetry/src/config"
)

func TestNew_ProdJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.0.0", "telemetry-sender")

	logger.Debug("hidden")
	logger.Info("记录已发送", "bytes", 16)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "记录已发送", entry["msg"])
	assert.Equal(t, "telemetry-sender", entry["app"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "prod", entry["env"])
	assert.EqualValues(t, 16, entry["bytes"])
}

func TestNew_DevText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}, "dev", "telemetry-collector")

	logger.Debug("收到记录", "device_id", 1)
	assert.Contains(t, buf.String(), "收到记录")
	assert.Contains(t, buf.String(), "telemetry-collector")
	assert.NotContains(t, buf.String(), "\x1b[")
}
