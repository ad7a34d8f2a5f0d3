package clientbuilder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/park285/ataxx-client/internal/config"
	"github.com/park285/ataxx-client/internal/display"
	"github.com/park285/ataxx-client/internal/engine"
	"github.com/park285/ataxx-client/internal/msgcat"
	"github.com/park285/ataxx-client/internal/report"
	"github.com/park285/ataxx-client/internal/session"
	"github.com/park285/ataxx-client/internal/store"
	"github.com/park285/ataxx-client/internal/transport"
	"go.uber.org/zap"
)

type Deps struct {
	Conn     transport.Conn
	Engine   *engine.Engine
	Source   session.MoveSource
	Display  display.Sink
	Live     *store.LiveStore
	Repo     store.Repository
	Reporter *report.Webhook
	Messages *msgcat.Catalog
	Logger   *zap.Logger
}

type options struct {
	in  io.Reader
	out io.Writer
}

type Option func(*options)

// WithManualIO sets where manual moves are read from and prompts written to.
func WithManualIO(in io.Reader, out io.Writer) Option {
	return func(o *options) { o.in, o.out = in, out }
}

func New(cfg *config.AppConfig, logger *zap.Logger, opts ...Option) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Deps{Logger: logger}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = msgs

	// Engine
	eng, err := engine.NewEngine(cfg.Policy, logger.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	d.Engine = eng
	if cfg.Manual {
		d.Source = session.NewManualSource(o.in, o.out).WithMessages(msgs)
	} else {
		d.Source = session.NewEngineSource(eng, cfg.SearchTimeout)
	}

	// Transport (연결은 세션이 시작할 때)
	conn, err := transport.Dial(cfg.ServerAddr, transport.Options{Logger: logger.Named("transport")})
	if err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}
	d.Conn = conn

	switch cfg.DisplayMode {
	case config.DisplayPNG:
		d.Display = display.Multi{display.NewLogSink(logger.Named("display")), display.NewPNGSink(cfg.DisplayPNGPath, display.NewPanelRenderer(8))}
	case config.DisplayNone:
		d.Display = display.Nop()
	default:
		d.Display = display.NewLogSink(logger.Named("display"))
	}

	// Live store (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		live, err := store.NewLiveStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init live store: %w", err)
		}
		d.Live = live
	}

	// Repository: Postgres when configured, otherwise in-memory
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := store.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init repository: %w", err)
		}
		if err := repo.Migrate(context.Background()); err != nil {
			_ = repo.Close()
			d.Close()
			return nil, fmt.Errorf("migrate repository: %w", err)
		}
		d.Repo = repo
	} else {
		d.Repo = store.NewMemoryRepository()
	}

	if strings.TrimSpace(cfg.ResultWebhookURL) != "" {
		d.Reporter = report.NewWebhook(cfg.ResultWebhookURL, report.WithLogger(logger.Named("report")))
	}
	return d, nil
}

// SessionDeps hands the built collaborators to a session. Unset optional
// parts stay nil interfaces.
func (d *Deps) SessionDeps() session.Deps {
	sd := session.Deps{
		Conn:    d.Conn,
		Source:  d.Source,
		Display: d.Display,
		Repo:    d.Repo,
		Logger:  d.Logger.Named("session"),
	}
	if d.Live != nil {
		sd.Live = d.Live
	}
	if d.Reporter != nil {
		sd.Reporter = d.Reporter
	}
	return sd
}

// Close releases the stores. The connection is closed by its owner.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Live != nil {
		_ = d.Live.Close()
	}
	if d.Repo != nil {
		_ = d.Repo.Close()
	}
}
