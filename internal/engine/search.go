package engine

import "github.com/park285/ataxx-client/internal/board"

// scoreInf bounds every reachable evaluation (|score| <= 64).
const scoreInf = 1 << 20

// Searcher runs fail-soft negamax with alpha-beta pruning.
// Obstacles are squares that may never be a destination.
type Searcher struct {
	Obstacles board.Bitboard
	nodes     int64
}

// Negamax scores (mine, opp) from mine's point of view with no obstacles.
func Negamax(mine, opp board.Bitboard, depth, alpha, beta int) int {
	var s Searcher
	return s.Negamax(mine, opp, depth, alpha, beta)
}

func (s *Searcher) Negamax(mine, opp board.Bitboard, depth, alpha, beta int) int {
	s.nodes++
	if depth <= 0 {
		return Evaluate(mine, opp)
	}
	moves := generate(mine, opp, s.Obstacles)
	if len(moves) == 0 {
		return Evaluate(mine, opp)
	}
	best := -scoreInf
	for _, m := range moves {
		nm, no := Apply(mine, opp, m)
		score := -s.Negamax(no, nm, depth-1, -beta, -alpha)
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

// Moves generates with the searcher's obstacles applied.
func (s *Searcher) Moves(mine, opp board.Bitboard) []Move {
	return generate(mine, opp, s.Obstacles)
}

// Nodes reports how many positions this searcher has visited.
func (s *Searcher) Nodes() int64 { return s.nodes }
