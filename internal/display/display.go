package display

import (
	"context"

	"github.com/park285/ataxx-client/internal/board"
	"go.uber.org/zap"
)

// Score is the piece count per side shown under the board.
type Score struct {
	First  int
	Second int
}

// ScoreOf counts pieces on b.
func ScoreOf(b board.Board) Score {
	return Score{First: b.Count(board.SymbolFirst), Second: b.Count(board.SymbolSecond)}
}

// Sink receives every board the client learns about.
type Sink interface {
	Show(ctx context.Context, b board.Board, s Score) error
}

type nop struct{}

func (nop) Show(context.Context, board.Board, Score) error { return nil }

// Nop discards boards.
func Nop() Sink { return nop{} }

// LogSink writes the grid to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Show(_ context.Context, b board.Board, s Score) error {
	l.logger.Info("board",
		zap.String("grid", "\n"+b.String()),
		zap.Int("red", s.First),
		zap.Int("blue", s.Second),
	)
	return nil
}

// Multi fans a board out to several sinks and returns the first error.
type Multi []Sink

func (m Multi) Show(ctx context.Context, b board.Board, s Score) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Show(ctx, b, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
