package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestOptionsFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_TO_CONSOLE", "LOG_TO_FILE", "LOG_FILE", "LOG_CALLER"} {
		t.Setenv(k, "")
	}
	o := OptionsFromEnv()
	if o.Level != zapcore.InfoLevel || o.Format != "legacy" || !o.Console || !o.File {
		t.Fatalf("unexpected defaults: %+v", o)
	}
	if o.FilePath != filepath.Join("logs", "client.log") {
		t.Fatalf("unexpected log file: %q", o.FilePath)
	}
}

func TestOptionsFromEnvUnknownFormatFallsBack(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_LEVEL", "warning")
	o := OptionsFromEnv()
	if o.Format != "legacy" || o.Level != zapcore.WarnLevel {
		t.Fatalf("got format=%q level=%v", o.Format, o.Level)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.log")
	l, err := New(Options{Level: zapcore.InfoLevel, Format: "json", File: true, FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("move_sent")
	_ = l.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"move_sent"`) {
		t.Fatalf("log line missing: %s", data)
	}
}

func TestSetNilResetsToNop(t *testing.T) {
	Set(nil)
	if L() == nil {
		t.Fatalf("global logger must never be nil")
	}
	Named("session").Info("ignored")
}
