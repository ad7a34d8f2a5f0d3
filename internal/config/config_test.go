package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/ataxx-client/internal/engine"
)

var envKeys = []string{
	"SERVER_ADDR", "PLAYER_NAME", "REDIS_URL", "DATABASE_URL", "RESULT_WEBHOOK_URL",
	"DISPLAY_MODE", "DISPLAY_PNG_PATH", "POLICY_FILE", "MESSAGES_DIR",
	"SEARCH_BRANCHING_THRESHOLD", "SEARCH_SHALLOW_DEPTH", "SEARCH_DEEP_DEPTH",
	"SEARCH_BLOCKED_IMPASSABLE", "SEARCH_NODE_CAP", "SEARCH_TIMEOUT_MS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresServerAndName(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); !errors.Is(err, ErrServerAddrRequired) {
		t.Fatalf("expected ErrServerAddrRequired, got %v", err)
	}
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	if _, err := Load(); !errors.Is(err, ErrPlayerNameRequired) {
		t.Fatalf("expected ErrPlayerNameRequired, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("PLAYER_NAME", "alice")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy != engine.DefaultPolicy() {
		t.Fatalf("unexpected policy: %+v", cfg.Policy)
	}
	if cfg.DisplayMode != DisplayLog || cfg.SearchTimeout != 0 || cfg.Manual {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadSearchEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("SEARCH_BRANCHING_THRESHOLD", "12")
	t.Setenv("SEARCH_SHALLOW_DEPTH", "2")
	t.Setenv("SEARCH_DEEP_DEPTH", "5")
	t.Setenv("SEARCH_BLOCKED_IMPASSABLE", "true")
	t.Setenv("SEARCH_NODE_CAP", "100000")
	t.Setenv("SEARCH_TIMEOUT_MS", "1500")
	t.Setenv("DISPLAY_MODE", "PNG")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := engine.Policy{BranchingThreshold: 12, ShallowDepth: 2, DeepDepth: 5, BlockedImpassable: true, NodeCap: 100000}
	if cfg.Policy != want {
		t.Fatalf("got %+v, want %+v", cfg.Policy, want)
	}
	if cfg.SearchTimeout != 1500*time.Millisecond || cfg.DisplayMode != DisplayPNG {
		t.Fatalf("timeout=%v display=%q", cfg.SearchTimeout, cfg.DisplayMode)
	}
}

func TestLoadRejectsBadSearchEnv(t *testing.T) {
	cases := map[string]string{
		"SEARCH_SHALLOW_DEPTH":       "0",
		"SEARCH_DEEP_DEPTH":          "abc",
		"SEARCH_BRANCHING_THRESHOLD": "-1",
		"SEARCH_BLOCKED_IMPASSABLE":  "maybe",
		"SEARCH_NODE_CAP":            "-5",
		"SEARCH_TIMEOUT_MS":          "1.5s",
	}
	for key, val := range cases {
		clearEnv(t)
		t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
		t.Setenv("PLAYER_NAME", "alice")
		t.Setenv(key, val)
		_, err := Load()
		if !errors.Is(err, ErrInvalidEnv) {
			t.Fatalf("%s=%q: expected ErrInvalidEnv, got %v", key, val, err)
		}
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error should name %s: %v", key, err)
		}
	}
}

func TestLoadRejectsUnknownDisplay(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("DISPLAY_MODE", "hdmi")
	if _, err := Load(); !errors.Is(err, ErrInvalidDisplayMode) {
		t.Fatalf("expected ErrInvalidDisplayMode, got %v", err)
	}
}

func TestPolicyFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := "search:\n  branching_threshold: 20\n  shallow_depth: 2\n  deep_depth: 6\n  node_cap: 5000\ntimeout_ms: 250\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("POLICY_FILE", path)
	t.Setenv("SEARCH_DEEP_DEPTH", "3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy.BranchingThreshold != 20 || cfg.Policy.ShallowDepth != 2 || cfg.Policy.NodeCap != 5000 {
		t.Fatalf("policy file not applied: %+v", cfg.Policy)
	}
	if cfg.Policy.DeepDepth != 3 {
		t.Fatalf("env should win over the policy file, got deep=%d", cfg.Policy.DeepDepth)
	}
	if cfg.SearchTimeout != 250*time.Millisecond {
		t.Fatalf("timeout not read from policy file: %v", cfg.SearchTimeout)
	}
}

func TestPolicyFileInvalidDepth(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("search:\n  shallow_depth: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SERVER_ADDR", "127.0.0.1:8080")
	t.Setenv("PLAYER_NAME", "alice")
	t.Setenv("POLICY_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestOverridesFromFlags(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithOverrides(Overrides{IP: "10.0.0.5", Port: "9000", Username: "bob", Manual: true})
	if err != nil {
		t.Fatalf("LoadWithOverrides: %v", err)
	}
	if cfg.ServerAddr != "10.0.0.5:9000" || cfg.PlayerName != "bob" || !cfg.Manual {
		t.Fatalf("flags not applied: %+v", cfg)
	}

	t.Setenv("SERVER_ADDR", "example.org:7000")
	t.Setenv("PLAYER_NAME", "alice")
	cfg, err = LoadWithOverrides(Overrides{IP: "10.0.0.5"})
	if err != nil {
		t.Fatalf("LoadWithOverrides: %v", err)
	}
	if cfg.ServerAddr != "10.0.0.5:7000" || cfg.PlayerName != "alice" {
		t.Fatalf("ip override should keep the env port: %+v", cfg)
	}
}
