package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/ataxx-client/pkg/wire"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSConn carries one JSON message per websocket text frame.
type WSConn struct {
	hub

	wsURL  string
	opts   Options
	logger *zap.Logger

	conn    *websocket.Conn
	connM   sync.Mutex
	writeM  sync.Mutex
	closing atomic.Bool
	wg      sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewWSConn(wsURL string, opts Options) *WSConn {
	opts = opts.withDefaults()
	c := &WSConn{wsURL: wsURL, opts: opts, logger: opts.Logger}
	c.hub.init()
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	return c
}

func (c *WSConn) Connect(ctx context.Context) error {
	if s := c.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	c.setState(StateConnecting)

	conn, err := retryDial(ctx, c.opts.DialAttempts, c.logger, c.wsURL, func(ctx context.Context) (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
		conn, _, err := websocket.Dial(dialCtx, c.wsURL, &websocket.DialOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		return conn, err
	})
	if err != nil {
		c.setState(StateFailed)
		c.finish(err)
		return err
	}

	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)
	c.logger.Info("transport_connected", zap.String("transport", "ws"), zap.String("addr", c.wsURL))

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
	return nil
}

func (c *WSConn) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		typ, data, err := conn.Read(c.rootCtx)
		if err != nil {
			c.readStopped(err)
			return
		}
		if typ != websocket.MessageText {
			c.logger.Warn("message_corrupted", zap.String("reason", "binary frame"))
			continue
		}
		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn("message_corrupted", zap.Error(err))
			continue
		}
		c.dispatch(&msg)
	}
}

func (c *WSConn) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.done:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// 연속 2회 실패 시 끊긴 것으로 본다
				c.logger.Warn("ping_failed", zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *WSConn) readStopped(err error) {
	if c.closing.Load() {
		c.setState(StateClosed)
		c.finish(nil)
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = fmt.Errorf("server disconnected: %w", err)
	}
	c.logger.Warn("transport_disconnected", zap.String("transport", "ws"), zap.Error(err))
	c.setState(StateDisconnected)
	c.finish(err)
}

func (c *WSConn) Send(ctx context.Context, v any) error {
	c.connM.Lock()
	conn := c.conn
	c.connM.Unlock()
	if conn == nil || c.isDone() {
		return ErrNotConnected
	}

	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.opts.WriteTimeout)
		defer cancel()
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if err := wsjson.Write(dctx, conn, v); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *WSConn) Close(ctx context.Context) error {
	c.closing.Store(true)
	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	if c.State() != StateClosed {
		c.setState(StateClosed)
	}
	c.finish(nil)
	return nil
}
