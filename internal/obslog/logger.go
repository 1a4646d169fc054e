// Package obslog wraps zap behind a small interface so call sites depend on
// a handful of methods rather than the full zap API surface.
package obslog

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every component in this service logs through.
type Logger interface {
	Info(msg string, fields ...zapcore.Field)
	Error(msg string, fields ...zapcore.Field)
	Debug(msg string, fields ...zapcore.Field)
	Warn(msg string, fields ...zapcore.Field)
	Sync() error
	With(fields ...zapcore.Field) Logger
	Zap() *zap.Logger
}

// Config controls how New builds the underlying zap logger.
type Config struct {
	Environment string // "production" or "development"
	LogLevel    string // "debug", "info", "warn", "error", "dpanic", "panic", "fatal"
	ServiceName string
	CallerSkip  int
}

type logger struct {
	z *zap.Logger
}

// DefaultConfig returns a development-oriented configuration.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		LogLevel:    "debug",
		ServiceName: "mediavault",
	}
}

// ProductionConfig returns a production-oriented configuration.
func ProductionConfig() Config {
	return Config{
		Environment: "production",
		LogLevel:    "info",
		ServiceName: "mediavault",
	}
}

// New builds a Logger from cfg.
func New(cfg Config) (Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.Environment, "production") {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.Encoding = "console"
	}

	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.LogLevel))
	if cfg.ServiceName != "" {
		zapCfg.InitialFields = map[string]interface{}{"service": cfg.ServiceName}
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.CallerSkip > 0 {
		opts = append(opts, zap.AddCallerSkip(cfg.CallerSkip))
	}

	z, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &logger{z: z}, nil
}

// NewDefault builds a Logger with DefaultConfig().
func NewDefault() (Logger, error) {
	return New(DefaultConfig())
}

func (l *logger) Info(msg string, fields ...zapcore.Field)  { l.z.Info(msg, fields...) }
func (l *logger) Error(msg string, fields ...zapcore.Field) { l.z.Error(msg, fields...) }
func (l *logger) Debug(msg string, fields ...zapcore.Field) { l.z.Debug(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zapcore.Field)  { l.z.Warn(msg, fields...) }
func (l *logger) Sync() error                               { return l.z.Sync() }
func (l *logger) Zap() *zap.Logger                          { return l.z }

func (l *logger) With(fields ...zapcore.Field) Logger {
	return &logger{z: l.z.With(fields...)}
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
