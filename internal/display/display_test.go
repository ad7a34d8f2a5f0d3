package display

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/park285/ataxx-client/internal/board"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleBoard() board.Board {
	b := board.Empty()
	b[0][0] = board.SymbolFirst
	b[7][7] = board.SymbolSecond
	b[3][4] = board.SymbolBlocked
	return b
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func cellCenter(row, col int) (int, int) {
	return gridOrigin + 1 + cellPitch*col + 1, gridOrigin + 1 + cellPitch*row + 1
}

func TestPanelCellsAndGrid(t *testing.T) {
	img, err := NewPanelRenderer(1).Render(sampleBoard(), Score{First: 1, Second: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != PanelSize || img.Bounds().Dy() != PanelSize {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	checks := []struct {
		row, col int
		want     color.RGBA
	}{
		{0, 0, colorFirst},
		{7, 7, colorSecond},
		{3, 4, colorBlocked},
		{5, 5, colorEmpty},
	}
	for _, c := range checks {
		x, y := cellCenter(c.row, c.col)
		if got := rgba(img.At(x, y)); got != c.want {
			t.Fatalf("cell (%d,%d) at (%d,%d): got %v, want %v", c.row, c.col, x, y, got, c.want)
		}
	}
	if got := rgba(img.At(gridOrigin, gridOrigin)); got != colorGrid {
		t.Fatalf("grid corner: got %v", got)
	}
	if got := rgba(img.At(gridOrigin+gridExtent-1, gridOrigin+gridExtent-1)); got != colorGrid {
		t.Fatalf("far grid corner: got %v", got)
	}
	if got := rgba(img.At(1, 1)); got != colorEmpty {
		t.Fatalf("outside the grid should stay dark, got %v", got)
	}
}

func TestPanelScoreIsDrawn(t *testing.T) {
	img, err := NewPanelRenderer(1).Render(board.Empty(), Score{First: 12, Second: 34})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	lit := 0
	for y := gridOrigin + gridExtent + 2; y < PanelSize; y++ {
		for x := 0; x < PanelSize; x++ {
			if rgba(img.At(x, y)) == colorGrid {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("score text not drawn")
	}
}

func TestPanelScaling(t *testing.T) {
	data, err := NewPanelRenderer(4).RenderPNG(sampleBoard(), ScoreOf(sampleBoard()))
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != PanelSize*4 {
		t.Fatalf("unexpected width %d", img.Bounds().Dx())
	}
	x, y := cellCenter(0, 0)
	if got := rgba(img.At(x*4+1, y*4+1)); got != colorFirst {
		t.Fatalf("scaled cell colour %v", got)
	}
}

func TestPNGSinkWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "panel.png")
	sink := NewPNGSink(path, NewPanelRenderer(2))
	if err := sink.Show(context.Background(), sampleBoard(), Score{1, 1}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("not a png: %v", err)
	}
}

func TestScoreOf(t *testing.T) {
	if s := ScoreOf(sampleBoard()); s != (Score{First: 1, Second: 1}) {
		t.Fatalf("unexpected score %+v", s)
	}
}

type failingSink struct{ err error }

func (f failingSink) Show(context.Context, board.Board, Score) error { return f.err }

func TestLogSinkAndMulti(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	boom := errors.New("boom")
	m := Multi{failingSink{boom}, NewLogSink(zap.New(core)), Nop()}
	if err := m.Show(context.Background(), sampleBoard(), Score{1, 1}); !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	entries := logs.FilterMessage("board").All()
	if len(entries) != 1 {
		t.Fatalf("log sink should still run after an earlier failure, got %d entries", len(entries))
	}
	if entries[0].ContextMap()["red"] != int64(1) {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}
