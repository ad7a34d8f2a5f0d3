package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/ataxx-client/internal/board"
	"github.com/park285/ataxx-client/internal/engine"
	"github.com/park285/ataxx-client/internal/msgcat"
)

// MoveSource decides the command to send for side on b.
type MoveSource interface {
	NextMove(ctx context.Context, b board.Board, side board.Side) (engine.Command, error)
}

// EngineSource searches with the bitboard engine.
type EngineSource struct {
	engine  *engine.Engine
	timeout time.Duration
	last    engine.Result
}

func NewEngineSource(e *engine.Engine, timeout time.Duration) *EngineSource {
	return &EngineSource{engine: e, timeout: timeout}
}

func (s *EngineSource) NextMove(ctx context.Context, b board.Board, side board.Side) (engine.Command, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.last = s.engine.Choose(ctx, engine.Request{Board: b, Side: side})
	return s.last.Command, nil
}

// Last returns the statistics of the most recent search.
func (s *EngineSource) Last() engine.Result { return s.last }

var ErrInputClosed = errors.New("manual input closed")

// ManualSource reads "r1 c1 r2 c2" lines (1-indexed, "0 0 0 0" to pass).
// Lines that are not a move on the board are reported on out and skipped.
// Input is read on its own goroutine so a cancelled ctx returns at once; that
// goroutine lives until in is exhausted.
type ManualSource struct {
	in   io.Reader
	out  io.Writer
	msgs *msgcat.Catalog

	once  sync.Once
	lines chan string
	err   error // lines가 닫히기 전에 기록됨
}

func NewManualSource(in io.Reader, out io.Writer) *ManualSource {
	if out == nil {
		out = io.Discard
	}
	return &ManualSource{in: in, out: out}
}

// WithMessages renders the prompt and error lines from c.
func (m *ManualSource) WithMessages(c *msgcat.Catalog) *ManualSource {
	m.msgs = c
	return m
}

func (m *ManualSource) start() {
	m.once.Do(func() {
		m.lines = make(chan string)
		go func() {
			defer close(m.lines)
			sc := bufio.NewScanner(m.in)
			for sc.Scan() {
				m.lines <- sc.Text()
			}
			m.err = sc.Err()
		}()
	})
}

func (m *ManualSource) NextMove(ctx context.Context, b board.Board, side board.Side) (engine.Command, error) {
	m.start()
	prompt := m.msgs.RenderOr("manual.prompt", map[string]any{"Side": side.String()},
		fmt.Sprintf("[%s] move (r1 c1 r2 c2): ", side))
	fmt.Fprintf(m.out, "%s\n%s", b.String(), prompt)
	for {
		select {
		case <-ctx.Done():
			return engine.PassCommand, ctx.Err()
		case line, ok := <-m.lines:
			if !ok {
				if m.err != nil {
					return engine.PassCommand, fmt.Errorf("read move: %w", m.err)
				}
				return engine.PassCommand, ErrInputClosed
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				msg := m.msgs.RenderOr("manual.invalid", map[string]any{"Reason": err.Error()},
					"[error] invalid move: "+err.Error())
				fmt.Fprintln(m.out, msg)
				continue
			}
			return cmd, nil
		}
	}
}

// ParseCommand parses four whitespace separated integers into a command that
// is either the pass sentinel or a clone/jump inside the board.
func ParseCommand(line string) (engine.Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return engine.Command{}, fmt.Errorf("want 4 numbers, got %d", len(fields))
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return engine.Command{}, fmt.Errorf("%q is not a number", f)
		}
		v[i] = n
	}
	cmd := engine.Command{SrcRow: v[0], SrcCol: v[1], DstRow: v[2], DstCol: v[3]}
	if cmd.IsPass() {
		return cmd, nil
	}
	mv, ok := cmd.Move()
	if !ok {
		return engine.Command{}, fmt.Errorf("coordinates must be 1..%d", board.Size)
	}
	if d := mv.Distance(); d < 1 || d > 2 {
		return engine.Command{}, fmt.Errorf("destination must be 1 or 2 cells away, got %d", d)
	}
	return cmd, nil
}
