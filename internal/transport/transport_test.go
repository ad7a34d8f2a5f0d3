package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/ataxx-client/pkg/wire"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func collect(c Conn) <-chan wire.Message {
	ch := make(chan wire.Message, 16)
	c.OnMessage(func(m *wire.Message) { ch <- *m })
	return ch
}

func recv(t *testing.T, ch <-chan wire.Message) wire.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return wire.Message{}
}

func TestDialPicksTransport(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:9000":       "*transport.TCPConn",
		"tcp://127.0.0.1:9000": "*transport.TCPConn",
		"ws://localhost/game":  "*transport.WSConn",
		"wss://localhost/game": "*transport.WSConn",
	}
	for addr, want := range cases {
		c, err := Dial(addr, Options{})
		if err != nil {
			t.Fatalf("Dial(%q): %v", addr, err)
		}
		switch c.(type) {
		case *TCPConn:
			if want != "*transport.TCPConn" {
				t.Fatalf("Dial(%q) returned TCPConn", addr)
			}
		case *WSConn:
			if want != "*transport.WSConn" {
				t.Fatalf("Dial(%q) returned WSConn", addr)
			}
		}
	}
	if _, err := Dial("udp://127.0.0.1:9000", Options{}); !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestHubRemoveMessageCallback(t *testing.T) {
	var h hub
	h.init()
	var first, second int
	id := h.OnMessage(func(*wire.Message) { first++ })
	h.OnMessage(func(*wire.Message) { second++ })

	h.dispatch(&wire.Message{Type: wire.TypeYourTurn})
	h.RemoveMessageCallback(id)
	h.dispatch(&wire.Message{Type: wire.TypeYourTurn})
	h.RemoveMessageCallback(999)

	if first != 1 || second != 2 {
		t.Fatalf("first=%d second=%d, want 1 and 2", first, second)
	}
}

func TestTCPConnRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		got <- line
		_, _ = conn.Write([]byte("garbage\n" + `{"type":"register_ack"}` + "\n" + `{"type":"your_turn","board":["R......B"]}`))
	}()

	c := NewTCPConn(ln.Addr().String(), Options{DialAttempts: 1})
	msgs := collect(c)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Send(context.Background(), wire.NewRegister("alice")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	line := <-got
	var req wire.RegisterRequest
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &req); err != nil || req.Username != "alice" || req.Type != wire.TypeRegister {
		t.Fatalf("unexpected register line %q (%v)", line, err)
	}

	if m := recv(t, msgs); m.Type != wire.TypeRegisterAck {
		t.Fatalf("corrupted line should be skipped, got %+v", m)
	}
	// 마지막 줄은 개행 없이 끝나도 전달돼야 한다
	if m := recv(t, msgs); m.Type != wire.TypeYourTurn || len(m.Board) != 1 {
		t.Fatalf("unexpected message %+v", m)
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Done not closed after server hung up")
	}
	if c.Err() == nil {
		t.Fatalf("expected disconnect error")
	}
	if err := c.Send(context.Background(), wire.NewRegister("alice")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, got %v", err)
	}
}

func TestTCPConnCloseIsClean(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			_, _ = bufio.NewReader(conn).ReadString('\n')
		}
	}()

	c := NewTCPConn(ln.Addr().String(), Options{DialAttempts: 1})
	var states []State
	c.OnStateChange(func(s State) { states = append(states, s) })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("clean close should not record an error: %v", c.Err())
	}
	if states[0] != StateConnecting || states[len(states)-1] != StateClosed {
		t.Fatalf("unexpected state sequence %v", states)
	}
}

func TestTCPConnDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewTCPConn(addr, Options{DialAttempts: 2, DialTimeout: 200 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	if c.State() != StateFailed {
		t.Fatalf("expected failed state, got %v", c.State())
	}
	select {
	case <-c.Done():
	default:
		t.Fatalf("Done should be closed after dial failure")
	}
}

func TestWSConnRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		ctx := r.Context()
		var req wire.RegisterRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte("{"))
		_ = wsjson.Write(ctx, conn, wire.Message{Type: wire.TypeGameStart, FirstPlayer: req.Username})
	}))
	defer srv.Close()

	c := NewWSConn("ws"+strings.TrimPrefix(srv.URL, "http"), Options{DialAttempts: 1})
	msgs := collect(c)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Send(context.Background(), wire.NewRegister("bob")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	m := recv(t, msgs)
	if m.Type != wire.TypeGameStart || m.FirstPlayer != "bob" {
		t.Fatalf("unexpected message %+v", m)
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Done not closed after server closed")
	}
	if c.Err() == nil {
		t.Fatalf("expected disconnect error")
	}
}

func TestBackoffDuration(t *testing.T) {
	if backoffDuration(0) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond {
		t.Fatalf("unexpected backoff")
	}
	if backoffDuration(100) != backoffDuration(6) {
		t.Fatalf("backoff should be capped")
	}
}
