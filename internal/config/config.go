package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/ataxx-client/internal/engine"
	"gopkg.in/yaml.v3"
)

const (
	DisplayLog  = "log"
	DisplayPNG  = "png"
	DisplayNone = "none"
)

var (
	ErrServerAddrRequired = errors.New("SERVER_ADDR is required")
	ErrPlayerNameRequired = errors.New("PLAYER_NAME is required")
	ErrInvalidDisplayMode = errors.New("DISPLAY_MODE must be one of log, png, none")
	ErrInvalidEnv         = errors.New("invalid environment value")
)

type AppConfig struct {
	ServerAddr string
	PlayerName string
	Manual     bool

	RedisURL         string
	DatabaseURL      string
	ResultWebhookURL string

	DisplayMode    string
	DisplayPNGPath string

	MessagesDir string

	PolicyFile    string
	Policy        engine.Policy
	SearchTimeout time.Duration
}

// Overrides carries command-line values; empty fields leave the env value alone.
type Overrides struct {
	IP       string
	Port     string
	Username string
	Manual   bool
}

// policyFile is the YAML shape of POLICY_FILE.
type policyFile struct {
	Search    engine.Policy `yaml:"search"`
	TimeoutMS int           `yaml:"timeout_ms"`
}

func Load() (*AppConfig, error) { return LoadWithOverrides(Overrides{}) }

// LoadWithOverrides: 기본값 < POLICY_FILE < 환경변수 < CLI 플래그 순서로 적용.
func LoadWithOverrides(o Overrides) (*AppConfig, error) {
	cfg := &AppConfig{
		DisplayMode:    DisplayLog,
		DisplayPNGPath: "board.png",
		Policy:         engine.DefaultPolicy(),
	}

	cfg.ServerAddr = strings.TrimSpace(os.Getenv("SERVER_ADDR"))
	cfg.PlayerName = strings.TrimSpace(os.Getenv("PLAYER_NAME"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ResultWebhookURL = strings.TrimSpace(os.Getenv("RESULT_WEBHOOK_URL"))

	if v := strings.TrimSpace(os.Getenv("DISPLAY_MODE")); v != "" {
		cfg.DisplayMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DISPLAY_PNG_PATH")); v != "" {
		cfg.DisplayPNGPath = v
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	cfg.PolicyFile = strings.TrimSpace(os.Getenv("POLICY_FILE"))
	if cfg.PolicyFile != "" {
		if err := cfg.loadPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applySearchEnv(); err != nil {
		return nil, err
	}

	cfg.applyOverrides(o)

	if cfg.ServerAddr == "" {
		return nil, ErrServerAddrRequired
	}
	if cfg.PlayerName == "" {
		return nil, ErrPlayerNameRequired
	}
	switch cfg.DisplayMode {
	case DisplayLog, DisplayPNG, DisplayNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDisplayMode, cfg.DisplayMode)
	}
	if err := engine.ValidatePolicy(cfg.Policy); err != nil {
		return nil, fmt.Errorf("search policy: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) applyOverrides(o Overrides) {
	if ip := strings.TrimSpace(o.IP); ip != "" {
		port := strings.TrimSpace(o.Port)
		if port == "" {
			// -ip만 주어지면 기존 주소의 포트를 유지
			if _, p, err := net.SplitHostPort(c.ServerAddr); err == nil {
				port = p
			}
		}
		if port != "" {
			c.ServerAddr = net.JoinHostPort(ip, port)
		} else {
			c.ServerAddr = ip
		}
	} else if port := strings.TrimSpace(o.Port); port != "" {
		if h, _, err := net.SplitHostPort(c.ServerAddr); err == nil {
			c.ServerAddr = net.JoinHostPort(h, port)
		}
	}
	if u := strings.TrimSpace(o.Username); u != "" {
		c.PlayerName = u
	}
	if o.Manual {
		c.Manual = true
	}
}

func (c *AppConfig) loadPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	pf := policyFile{Search: c.Policy}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	c.Policy = pf.Search
	if pf.TimeoutMS > 0 {
		c.SearchTimeout = time.Duration(pf.TimeoutMS) * time.Millisecond
	}
	return nil
}

// applySearchEnv overlays SEARCH_* variables. A set but unusable value is an
// error, the same as in POLICY_FILE.
func (c *AppConfig) applySearchEnv() error {
	if n, ok, err := envInt("SEARCH_BRANCHING_THRESHOLD", 0); err != nil {
		return err
	} else if ok {
		c.Policy.BranchingThreshold = n
	}
	if n, ok, err := envInt("SEARCH_SHALLOW_DEPTH", 1); err != nil {
		return err
	} else if ok {
		c.Policy.ShallowDepth = n
	}
	if n, ok, err := envInt("SEARCH_DEEP_DEPTH", 1); err != nil {
		return err
	} else if ok {
		c.Policy.DeepDepth = n
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_BLOCKED_IMPASSABLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SEARCH_BLOCKED_IMPASSABLE=%q is not a boolean", ErrInvalidEnv, v)
		}
		c.Policy.BlockedImpassable = b
	}
	if n, ok, err := envInt("SEARCH_NODE_CAP", 0); err != nil {
		return err
	} else if ok {
		c.Policy.NodeCap = int64(n)
	}
	if n, ok, err := envInt("SEARCH_TIMEOUT_MS", 0); err != nil {
		return err
	} else if ok {
		c.SearchTimeout = time.Duration(n) * time.Millisecond
	}
	return nil
}

// envInt reads an integer no smaller than floor; ok is false when key is unset.
func envInt(key string, floor int) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidEnv, key, v)
	}
	if n < floor {
		return 0, false, fmt.Errorf("%w: %s=%d must be >= %d", ErrInvalidEnv, key, n, floor)
	}
	return n, true, nil
}
