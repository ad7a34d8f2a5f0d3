package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/ataxx-client/pkg/wire"
	"go.uber.org/zap"
)

// TCPConn speaks newline-delimited JSON over a plain TCP socket.
type TCPConn struct {
	hub

	addr   string
	opts   Options
	logger *zap.Logger

	conn    net.Conn
	connM   sync.Mutex
	writeM  sync.Mutex
	closing atomic.Bool
	wg      sync.WaitGroup
}

func NewTCPConn(addr string, opts Options) *TCPConn {
	opts = opts.withDefaults()
	c := &TCPConn{addr: addr, opts: opts, logger: opts.Logger}
	c.hub.init()
	return c
}

func (c *TCPConn) Connect(ctx context.Context) error {
	if s := c.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	c.setState(StateConnecting)

	d := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := retryDial(ctx, c.opts.DialAttempts, c.logger, c.addr, func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", c.addr)
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
	c.logger.Info("transport_connected", zap.String("transport", "tcp"), zap.String("addr", c.addr))

	c.wg.Add(1)
	go c.readLoop(conn)
	return nil
}

func (c *TCPConn) readLoop(conn net.Conn) {
	defer c.wg.Done()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			c.readStopped(err)
			return
		}
	}
}

func (c *TCPConn) handleLine(line []byte) {
	msg, err := wire.Decode(line)
	if err != nil {
		// 깨진 메시지는 건너뛰고 계속 읽는다
		c.logger.Warn("message_corrupted", zap.Error(err))
		return
	}
	c.dispatch(&msg)
}

func (c *TCPConn) readStopped(err error) {
	if c.closing.Load() {
		c.setState(StateClosed)
		c.finish(nil)
		return
	}
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("server disconnected: %w", err)
	}
	c.logger.Warn("transport_disconnected", zap.String("transport", "tcp"), zap.Error(err))
	c.setState(StateDisconnected)
	c.finish(err)
}

// Send writes v as one JSON line. Writes are serialized.
func (c *TCPConn) Send(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	payload = append(payload, '\n')

	c.connM.Lock()
	conn := c.conn
	c.connM.Unlock()
	if conn == nil || c.isDone() {
		return ErrNotConnected
	}

	c.writeM.Lock()
	defer c.writeM.Unlock()
	deadline := time.Now().Add(c.opts.WriteTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *TCPConn) Close(ctx context.Context) error {
	c.closing.Store(true)
	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if c.State() != StateClosed {
			c.setState(StateClosed)
		}
		c.finish(nil)
		return nil
	}
}
