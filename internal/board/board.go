package board

import (
	"fmt"
	"math/bits"
	"strings"
)

const (
	Size    = 8
	Squares = Size * Size
)

// Cell symbols as sent by the referee server.
const (
	SymbolFirst   byte = 'R'
	SymbolSecond  byte = 'B'
	SymbolBlocked byte = '#'
	SymbolEmpty   byte = '.'
)

// Board is the row-major 8x8 grid of cell symbols.
type Board [Size][Size]byte

// Bitboard holds one bit per square, bit i = row*8+col.
type Bitboard uint64

// Square indexes a cell in [0,63].
type Square int

// Side identifies which symbol a player controls.
type Side int

const (
	First Side = iota
	Second
)

func (s Side) Symbol() byte {
	if s == Second {
		return SymbolSecond
	}
	return SymbolFirst
}

func (s Side) Opponent() Side {
	if s == Second {
		return First
	}
	return Second
}

func (s Side) String() string {
	return string(s.Symbol())
}

// SideFromSymbol maps 'R'/'B' to a side.
func SideFromSymbol(c byte) (Side, bool) {
	switch c {
	case SymbolFirst:
		return First, true
	case SymbolSecond:
		return Second, true
	default:
		return First, false
	}
}

// MalformedBoardError reports a snapshot that is not an 8x8 grid of known symbols.
type MalformedBoardError struct {
	Reason string
	Row    int
	Col    int
}

func (e *MalformedBoardError) Error() string {
	if e.Col >= 0 {
		return fmt.Sprintf("malformed board: %s (row=%d col=%d)", e.Reason, e.Row, e.Col)
	}
	return fmt.Sprintf("malformed board: %s (row=%d)", e.Reason, e.Row)
}

// Empty returns a board with every cell set to '.'.
func Empty() Board {
	var b Board
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			b[r][c] = SymbolEmpty
		}
	}
	return b
}

// ParseRows builds a board from the server's row strings.
func ParseRows(rows []string) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, &MalformedBoardError{Reason: fmt.Sprintf("expected %d rows, got %d", Size, len(rows)), Row: len(rows), Col: -1}
	}
	for r, row := range rows {
		if len(row) != Size {
			return b, &MalformedBoardError{Reason: fmt.Sprintf("expected %d columns, got %d", Size, len(row)), Row: r, Col: -1}
		}
		for c := 0; c < Size; c++ {
			switch ch := row[c]; ch {
			case SymbolFirst, SymbolSecond, SymbolBlocked, SymbolEmpty:
				b[r][c] = ch
			default:
				return b, &MalformedBoardError{Reason: fmt.Sprintf("unknown symbol %q", ch), Row: r, Col: c}
			}
		}
	}
	return b, nil
}

// Rows renders the board back into the server's row-string form.
func (b Board) Rows() []string {
	out := make([]string, Size)
	for r := 0; r < Size; r++ {
		out[r] = string(b[r][:])
	}
	return out
}

func (b Board) String() string {
	return strings.Join(b.Rows(), "\n")
}

// Count returns how many cells hold the given symbol.
func (b Board) Count(symbol byte) int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == symbol {
				n++
			}
		}
	}
	return n
}

// Encode scans the board once and returns the masks for side and its opponent.
// Blocked and empty cells are left out of both masks.
func Encode(b Board, side Side) (mine, opp Bitboard) {
	own := side.Symbol()
	other := side.Opponent().Symbol()
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			bit := Bitboard(1) << uint(r*Size+c)
			switch b[r][c] {
			case own:
				mine |= bit
			case other:
				opp |= bit
			}
		}
	}
	return mine, opp
}

// Blocked returns the mask of '#' cells.
func Blocked(b Board) Bitboard {
	var mask Bitboard
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == SymbolBlocked {
				mask |= Bitboard(1) << uint(r*Size+c)
			}
		}
	}
	return mask
}

// Decode places the occupied squares of both masks on an empty board.
func Decode(mine, opp Bitboard, side Side) Board {
	b := Empty()
	for _, sq := range mine.Squares() {
		r, c := SquareToCoord(sq)
		b[r][c] = side.Symbol()
	}
	for _, sq := range opp.Squares() {
		r, c := SquareToCoord(sq)
		b[r][c] = side.Opponent().Symbol()
	}
	return b
}

func SquareToCoord(sq Square) (row, col int) {
	return int(sq) / Size, int(sq) % Size
}

func CoordToSquare(row, col int) Square {
	return Square(row*Size + col)
}

// OnBoard reports whether (row, col) lies inside the grid.
func OnBoard(row, col int) bool {
	return row >= 0 && row < Size && col >= 0 && col < Size
}

func (bb Bitboard) Has(sq Square) bool {
	return bb&(Bitboard(1)<<uint(sq)) != 0
}

func (bb Bitboard) Count() int {
	return bits.OnesCount64(uint64(bb))
}

// Squares lists set bits from least to most significant.
func (bb Bitboard) Squares() []Square {
	out := make([]Square, 0, bb.Count())
	for v := uint64(bb); v != 0; v &= v - 1 {
		out = append(out, Square(bits.TrailingZeros64(v)))
	}
	return out
}

func SquareMask(sq Square) Bitboard {
	return Bitboard(1) << uint(sq)
}
