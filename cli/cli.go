package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nhirsama/Goster-Telemetry/src/DataStore"
	"github.com/nhirsama/Goster-Telemetry/src/collector"
	"github.com/nhirsama/Goster-Telemetry/src/config"
	"github.com/nhirsama/Goster-Telemetry/src/inter"
	"github.com/nhirsama/Goster-Telemetry/src/logging"
	"github.com/nhirsama/Goster-Telemetry/src/protocol"
	"github.com/nhirsama/Goster-Telemetry/src/transport"
)

var Version = "dev"

// setup 解析参数、加载配置并安装默认 logger
func setup(appName string, args []string) (config.Config, error) {
	fs := config.NewFlagSet(appName)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return config.Config{}, err
		}
		return config.Config{}, fmt.Errorf("参数错误: %w", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(logging.New(cfg, Version, appName))
	return cfg, nil
}

// RecordFromConfig 根据配置构造待发送的记录
func RecordFromConfig(rc config.RecordConfig) inter.TelemetryRecord {
	return inter.TelemetryRecord{
		DeviceID:    rc.DeviceID,
		SequenceNum: rc.SequenceNum,
		Timestamp:   rc.Timestamp,
		Temperature: rc.Temperature,
		Humidity:    rc.Humidity,
		Status:      rc.Status,
	}
}

// RunSender 模拟嵌入式设备：连接、发送一条记录、关闭。返回进程退出码。
func RunSender(args []string) int {
	cfg, err := setup("telemetry-sender", args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := RecordFromConfig(cfg.Record)
	buf := protocol.Encode(rec)
	slog.Info("准备发送的数据",
		"record", rec.String(),
		"size", protocol.Size(),
		"hex", protocol.HexDump(buf),
		"crc16", protocol.Digest(buf),
	)

	slog.Info("正在连接", "host", cfg.Server.Host, "port", cfg.Server.Port)
	err = transport.Transmit(ctx, cfg.Server.Host, cfg.Server.Port, rec, transport.Options{
		ConnectTimeout: cfg.Server.ConnectTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	if err != nil {
		var connErr *transport.ConnectionError
		var sendErr *transport.SendError
		switch {
		case errors.As(err, &connErr):
			slog.Error("连接失败", "addr", connErr.Addr, "kind", connErr.Kind.String(), "err", connErr.Err)
		case errors.As(err, &sendErr):
			slog.Error("发送数据失败", "written", sendErr.Written, "total", sendErr.Total, "err", sendErr.Err)
		default:
			slog.Error("发送数据失败", "err", err)
		}
		return 1
	}

	slog.Info("成功发送", "bytes", len(buf))
	return 0
}

// RunCollector 启动采集端，直到收到退出信号。返回进程退出码。
func RunCollector(args []string) int {
	cfg, err := setup("telemetry-collector", args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer func() {
		stop()
		slog.Info("系统正常关闭")
	}()

	var store inter.RecordStore
	if cfg.Collector.DBPath != "" {
		store, err = DataStore.NewRecordStoreSql(cfg.Collector.DBPath)
		if err != nil {
			slog.Error("打开数据库失败", "path", cfg.Collector.DBPath, "err", err)
			return 1
		}
		defer store.Close()
	}

	c := collector.New(store, collector.Options{ReadTimeout: cfg.Collector.ReadTimeout})
	if _, err := c.Listen(cfg.Collector.Listen); err != nil {
		slog.Error("无法启动采集端", "addr", cfg.Collector.Listen, "err", err)
		return 1
	}
	if err := c.Serve(ctx); err != nil {
		slog.Error("采集端异常退出", "err", err)
		return 1
	}
	return 0
}
