package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 전역 로거. InitFromEnv 전에는 Nop.
var globalLogger = zap.NewNop()

// L는 전역 로거를 반환.
func L() *zap.Logger { return globalLogger }

// Set replaces the global logger. nil resets it to Nop.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger = l
}

// Named returns a child of the global logger tagged with a component field.
func Named(component string) *zap.Logger {
	return globalLogger.With(zap.String("component", component))
}

// Options mirrors the LOG_* environment variables.
type Options struct {
	Level     zapcore.Level
	Format    string
	Console   bool
	File      bool
	FilePath  string
	WithCalls bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_TO_CONSOLE, LOG_TO_FILE,
// LOG_FILE and LOG_CALLER.
func OptionsFromEnv() Options {
	o := Options{
		Level:     parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Format:    strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
		Console:   isTrue(getenvDefault("LOG_TO_CONSOLE", "true")),
		File:      isTrue(getenvDefault("LOG_TO_FILE", "true")),
		FilePath:  strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "client.log"))),
		WithCalls: isTrue(getenvDefault("LOG_CALLER", "false")),
	}
	switch o.Format {
	case "legacy", "json", "console":
	default:
		o.Format = "legacy"
	}
	return o
}

// InitFromEnv는 환경설정으로 zap 로거를 초기화하고 전역으로 등록.
func InitFromEnv() error {
	l, err := New(OptionsFromEnv())
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// New builds a tee of stdout and file cores. 둘 다 꺼져 있으면 stdout 개발용 인코더로 대체.
func New(o Options) (*zap.Logger, error) {
	var cores []zapcore.Core
	if o.Console {
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(os.Stdout), o.Level))
	}
	if o.File {
		if err := ensureDir(filepath.Dir(o.FilePath)); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(o.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(f), o.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), o.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if o.WithCalls || o.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	default:
		// legacy: "2006-01-02 15:04:05 | INFO | ..."
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		if strings.EqualFold(strings.TrimSpace(s), "warning") {
			return zapcore.WarnLevel
		}
		return zapcore.InfoLevel
	}
	return lvl
}

func isTrue(v string) bool { return strings.EqualFold(strings.TrimSpace(v), "true") }

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
