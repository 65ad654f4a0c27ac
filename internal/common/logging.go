package common

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jfperron/bulkstream/internal/config"
)

func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.MessageKey = "message"
	zapCfg.EncoderConfig.LevelKey = "level"
	zapCfg.EncoderConfig.CallerKey = "caller"

	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" && cfg.OutputPath != "stderr" {
		if cfg.MaxSize > 0 || cfg.MaxBackups > 0 || cfg.MaxAge > 0 {
			logWriter := &lumberjack.Logger{
				Filename:   cfg.OutputPath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
				LocalTime:  cfg.LocalTime,
			}

			var encoder zapcore.Encoder
			if cfg.Format == "console" {
				encoder = zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
			} else {
				encoder = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
			}

			core := zapcore.NewCore(encoder, zapcore.AddSync(logWriter), level)

			logger := zap.New(core, zap.AddCaller())
			logger = logger.With(
				zap.String("service", "bulkstream"),
				zap.String("version", GetVersion()),
			)
			return logger, nil
		}

		zapCfg.OutputPaths = []string{cfg.OutputPath}
		zapCfg.ErrorOutputPaths = []string{cfg.OutputPath}
	}

	zapCfg.InitialFields = map[string]interface{}{
		"service": "bulkstream",
		"version": GetVersion(),
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func GetVersion() string {
	if version := os.Getenv("BULKSTREAM_VERSION"); version != "" {
		return version
	}
	return "dev"
}

func LoggerWithComponent(logger *zap.Logger, component string) *zap.Logger {
	return logger.With(zap.String("component", component))
}
