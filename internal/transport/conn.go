package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/park285/ataxx-client/pkg/wire"
	"go.uber.org/zap"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

type MessageCallback func(msg *wire.Message)

type StateCallback func(state State)

var (
	ErrNotConnected  = errors.New("transport: not connected")
	ErrUnknownScheme = errors.New("transport: unsupported address scheme")
)

// Conn is a message-oriented connection to the referee server.
// Callbacks run on the reader goroutine in arrival order.
type Conn interface {
	Connect(ctx context.Context) error
	OnMessage(cb MessageCallback) int
	RemoveMessageCallback(id int)
	OnStateChange(cb StateCallback) int
	Send(ctx context.Context, v any) error
	// Done is closed once the connection stops reading for good.
	Done() <-chan struct{}
	Err() error
	Close(ctx context.Context) error
}

type Options struct {
	DialAttempts int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.DialAttempts <= 0 {
		o.DialAttempts = 5
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Dial picks the implementation from addr: "host:port" and "tcp://host:port"
// give a TCPConn, "ws://" and "wss://" a WSConn. It does not connect.
func Dial(addr string, opts Options) (Conn, error) {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "://") {
		return NewTCPConn(addr, opts), nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp":
		return NewTCPConn(u.Host, opts), nil
	case "ws", "wss":
		return NewWSConn(addr, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
}

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// hub holds callbacks, state and the done channel shared by both transports.
type hub struct {
	state  State
	stateM sync.RWMutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextID   int
	cbM      sync.RWMutex

	done     chan struct{}
	doneOnce sync.Once
	err      error
	errM     sync.Mutex
}

func (h *hub) init() {
	h.state = StateDisconnected
	h.done = make(chan struct{})
}

func (h *hub) OnMessage(cb MessageCallback) int {
	h.cbM.Lock()
	defer h.cbM.Unlock()
	h.nextID++
	h.msgCbs = append(h.msgCbs, callbackEntry{id: h.nextID, callback: cb})
	return h.nextID
}

func (h *hub) RemoveMessageCallback(id int) {
	h.cbM.Lock()
	defer h.cbM.Unlock()
	for i, cb := range h.msgCbs {
		if cb.id == id {
			h.msgCbs = append(h.msgCbs[:i], h.msgCbs[i+1:]...)
			break
		}
	}
}

func (h *hub) OnStateChange(cb StateCallback) int {
	h.cbM.Lock()
	defer h.cbM.Unlock()
	h.nextID++
	h.stateCbs = append(h.stateCbs, stateCallbackEntry{id: h.nextID, callback: cb})
	return h.nextID
}

func (h *hub) State() State {
	h.stateM.RLock()
	defer h.stateM.RUnlock()
	return h.state
}

func (h *hub) setState(state State) {
	h.stateM.Lock()
	h.state = state
	h.stateM.Unlock()

	h.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(h.stateCbs))
	copy(callbacks, h.stateCbs)
	h.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (h *hub) dispatch(msg *wire.Message) {
	h.cbM.RLock()
	callbacks := make([]callbackEntry, len(h.msgCbs))
	copy(callbacks, h.msgCbs)
	h.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(msg)
		}
	}
}

// finish records the first terminal error and closes Done.
func (h *hub) finish(err error) {
	h.doneOnce.Do(func() {
		h.errM.Lock()
		h.err = err
		h.errM.Unlock()
		close(h.done)
	})
}

func (h *hub) Done() <-chan struct{} { return h.done }

func (h *hub) Err() error {
	h.errM.Lock()
	defer h.errM.Unlock()
	return h.err
}

func (h *hub) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ... 3.2s
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDial calls dial up to attempts times with backoff in between.
func retryDial[T any](ctx context.Context, attempts int, logger *zap.Logger, target string, dial func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c, err := dial(ctx)
		if err == nil {
			return c, nil
		}
		lastErr = err
		logger.Warn("dial_failed", zap.String("target", target), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("dial %s: %w", target, lastErr)
}
