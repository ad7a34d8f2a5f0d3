package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/ataxx-client/internal/board"
	"go.uber.org/zap"
)

// Command is the 1-indexed move sent to the referee. The zero value means pass.
type Command struct {
	SrcRow int
	SrcCol int
	DstRow int
	DstCol int
}

var PassCommand = Command{}

func (c Command) IsPass() bool { return c == PassCommand }

func (c Command) String() string {
	return fmt.Sprintf("%d %d %d %d", c.SrcRow, c.SrcCol, c.DstRow, c.DstCol)
}

// CommandFromMove converts internal squares to 1-indexed coordinates.
func CommandFromMove(m Move) Command {
	fr, fc := board.SquareToCoord(m.From)
	tr, tc := board.SquareToCoord(m.To)
	return Command{SrcRow: fr + 1, SrcCol: fc + 1, DstRow: tr + 1, DstCol: tc + 1}
}

// Move converts back to squares; ok is false for the pass sentinel or
// coordinates outside the board.
func (c Command) Move() (Move, bool) {
	if c.IsPass() {
		return Move{}, false
	}
	if !board.OnBoard(c.SrcRow-1, c.SrcCol-1) || !board.OnBoard(c.DstRow-1, c.DstCol-1) {
		return Move{}, false
	}
	return Move{
		From: board.CoordToSquare(c.SrcRow-1, c.SrcCol-1),
		To:   board.CoordToSquare(c.DstRow-1, c.DstCol-1),
	}, true
}

type Request struct {
	Board board.Board
	Side  board.Side
}

type Result struct {
	Command   Command
	Move      Move
	Pass      bool
	Score     int
	Depth     int
	RootMoves int
	// Scored counts root moves whose subtree was searched to completion.
	Scored    int
	Nodes     int64
	Truncated bool
	Duration  time.Duration
}

type Engine struct {
	policy Policy
	logger *zap.Logger
}

func NewEngine(p Policy, logger *zap.Logger) (*Engine, error) {
	if err := ValidatePolicy(p); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{policy: p, logger: logger}, nil
}

func (e *Engine) Policy() Policy { return e.policy }

// Choose searches the position for req.Side and returns the move to send.
// ctx and the node cap are only consulted between root moves; the first root
// move is always scored in full, so a result is produced for every position.
func (e *Engine) Choose(ctx context.Context, req Request) Result {
	start := time.Now()
	mine, opp := board.Encode(req.Board, req.Side)

	s := &Searcher{}
	if e.policy.BlockedImpassable {
		s.Obstacles = board.Blocked(req.Board)
	}

	moves := s.Moves(mine, opp)
	if len(moves) == 0 {
		res := Result{Command: PassCommand, Pass: true, Score: Evaluate(mine, opp), Duration: time.Since(start)}
		e.logger.Info("turn_search_pass", zap.String("side", req.Side.String()), zap.Int("score", res.Score))
		return res
	}

	depth := e.policy.DepthFor(len(moves))
	alpha, beta := -scoreInf, scoreInf
	best, bestScore := moves[0], -scoreInf
	scored := 0
	truncated := false

	for i, m := range moves {
		if i > 0 && e.shouldStop(ctx, s) {
			truncated = true
			break
		}
		nm, no := Apply(mine, opp, m)
		score := -s.Negamax(no, nm, depth-1, -beta, -alpha)
		scored++
		if score > bestScore {
			best, bestScore = m, score
		}
		if score > alpha {
			alpha = score
		}
	}

	res := Result{
		Command:   CommandFromMove(best),
		Move:      best,
		Score:     bestScore,
		Depth:     depth,
		RootMoves: len(moves),
		Scored:    scored,
		Nodes:     s.Nodes(),
		Truncated: truncated,
		Duration:  time.Since(start),
	}
	e.logger.Info("turn_search",
		zap.String("side", req.Side.String()),
		zap.Int("root_moves", res.RootMoves),
		zap.Int("depth", res.Depth),
		zap.Int("scored", res.Scored),
		zap.Int64("nodes", res.Nodes),
		zap.Int("score", res.Score),
		zap.String("move", res.Command.String()),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("elapsed", res.Duration),
	)
	return res
}

func (e *Engine) shouldStop(ctx context.Context, s *Searcher) bool {
	if e.policy.NodeCap > 0 && s.Nodes() >= e.policy.NodeCap {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
