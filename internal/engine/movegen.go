package engine

import (
	"fmt"
	"math/bits"

	"github.com/park285/ataxx-client/internal/board"
)

// Move relocates (jump) or copies (clone) a piece from From to To.
type Move struct {
	From board.Square
	To   board.Square
}

func (m Move) Distance() int {
	fr, fc := board.SquareToCoord(m.From)
	tr, tc := board.SquareToCoord(m.To)
	return max(abs(fr-tr), abs(fc-tc))
}

func (m Move) IsJump() bool { return m.Distance() == 2 }

func (m Move) String() string {
	fr, fc := board.SquareToCoord(m.From)
	tr, tc := board.SquareToCoord(m.To)
	return fmt.Sprintf("(%d,%d)->(%d,%d)", fr, fc, tr, tc)
}

// Row/col deltas in generation order: N, NE, E, SE, S, SW, W, NW.
var directions = [8][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

var (
	// targets[sq] holds distance-1 destinations followed by distance-2 ones.
	targets [board.Squares][]board.Square
	// neighbors[sq] is the mask of the on-board squares adjacent to sq.
	neighbors [board.Squares]board.Bitboard
)

func init() {
	for sq := board.Square(0); sq < board.Squares; sq++ {
		r, c := board.SquareToCoord(sq)
		list := make([]board.Square, 0, 16)
		for dist := 1; dist <= 2; dist++ {
			for _, d := range directions {
				nr, nc := r+d[0]*dist, c+d[1]*dist
				if !board.OnBoard(nr, nc) {
					continue
				}
				to := board.CoordToSquare(nr, nc)
				list = append(list, to)
				if dist == 1 {
					neighbors[sq] |= board.SquareMask(to)
				}
			}
		}
		targets[sq] = list
	}
}

// GenerateMoves lists the legal moves for mine in deterministic order.
func GenerateMoves(mine, opp board.Bitboard) []Move {
	return generate(mine, opp, 0)
}

// generate treats obstacles as occupied destinations.
func generate(mine, opp, obstacles board.Bitboard) []Move {
	occupied := mine | opp | obstacles
	moves := make([]Move, 0, 32)
	for v := uint64(mine); v != 0; v &= v - 1 {
		from := board.Square(bits.TrailingZeros64(v))
		for _, to := range targets[from] {
			if occupied.Has(to) {
				continue
			}
			moves = append(moves, Move{From: from, To: to})
		}
	}
	return moves
}

// Apply returns the masks after m is played by the owner of mine.
func Apply(mine, opp board.Bitboard, m Move) (board.Bitboard, board.Bitboard) {
	if m.IsJump() {
		mine &^= board.SquareMask(m.From)
	}
	mine |= board.SquareMask(m.To)
	flipped := neighbors[m.To] & opp
	return mine | flipped, opp &^ flipped
}

// Evaluate is the material balance from mine's point of view.
func Evaluate(mine, opp board.Bitboard) int {
	return mine.Count() - opp.Count()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
