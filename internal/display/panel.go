package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/park285/ataxx-client/internal/board"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	xdraw "golang.org/x/image/draw"
)

// Panel geometry, in LED pixels.
const (
	PanelSize  = 64
	gridOrigin = 3
	cellPitch  = 4
	cellSize   = 3
	gridExtent = cellPitch*board.Size + 1
)

var (
	colorFirst   = color.RGBA{R: 255, A: 255}
	colorSecond  = color.RGBA{B: 255, A: 255}
	colorBlocked = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	colorEmpty   = color.RGBA{A: 255}
	colorGrid    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func cellColor(sym byte) color.RGBA {
	switch sym {
	case board.SymbolFirst:
		return colorFirst
	case board.SymbolSecond:
		return colorSecond
	case board.SymbolBlocked:
		return colorBlocked
	case board.SymbolEmpty:
		return colorEmpty
	default:
		return colorGrid
	}
}

func hex(c color.RGBA) string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// PanelRenderer draws the board the way the 64x64 LED panel shows it.
// Scale enlarges each LED pixel in the output image.
type PanelRenderer struct {
	Scale int
}

func NewPanelRenderer(scale int) *PanelRenderer {
	if scale < 1 {
		scale = 1
	}
	return &PanelRenderer{Scale: scale}
}

// SVG returns the grid and cells as an SVG document in panel coordinates.
func (r *PanelRenderer) SVG(b board.Board) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, PanelSize, PanelSize, PanelSize, PanelSize)
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, PanelSize, PanelSize, hex(colorEmpty))
	for k := 0; k <= board.Size; k++ {
		off := gridOrigin + cellPitch*k
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="1" fill="%s"/>`, gridOrigin, off, gridExtent, hex(colorGrid))
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="1" height="%d" fill="%s"/>`, off, gridOrigin, gridExtent, hex(colorGrid))
	}
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			x := gridOrigin + 1 + cellPitch*col
			y := gridOrigin + 1 + cellPitch*row
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x, y, cellSize, cellSize, hex(cellColor(b[row][col])))
		}
	}
	sb.WriteString(`</svg>`)
	return []byte(sb.String())
}

// Render rasterizes the panel and writes the score under the grid.
func (r *PanelRenderer) Render(b board.Board, s Score) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(r.SVG(b)))
	if err != nil {
		return nil, fmt.Errorf("parse panel svg: %w", err)
	}
	icon.SetTarget(0, 0, PanelSize, PanelSize)

	panel := image.NewRGBA(image.Rect(0, 0, PanelSize, PanelSize))
	draw.Draw(panel, panel.Bounds(), image.NewUniform(colorEmpty), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(PanelSize, PanelSize, panel, panel.Bounds())
	raster := rasterx.NewDasher(PanelSize, PanelSize, scanner)
	icon.Draw(raster, 1.0)

	drawScore(panel, s)

	if r.Scale <= 1 {
		return panel, nil
	}
	size := PanelSize * r.Scale
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), panel, panel.Bounds(), xdraw.Src, nil)
	return out, nil
}

// drawScore puts "R:NN" and "B:NN" on two lines; a 7px face cannot fit both on one.
func drawScore(dst *image.RGBA, s Score) {
	top := gridOrigin + gridExtent + 2
	draw.Draw(dst, image.Rect(gridOrigin, top, PanelSize, PanelSize), image.NewUniform(colorEmpty), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(colorGrid), Face: face}
	lineHeight := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	lines := []string{fmt.Sprintf("R:%02d", s.First), fmt.Sprintf("B:%02d", s.Second)}
	for i, text := range lines {
		drawer.Dot = fixed.P(gridOrigin, top+ascent+i*lineHeight)
		drawer.DrawString(text)
	}
}

// RenderPNG encodes Render's output.
func (r *PanelRenderer) RenderPNG(b board.Board, s Score) ([]byte, error) {
	img, err := r.Render(b, s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGSink rewrites one PNG file on every update.
type PNGSink struct {
	path     string
	renderer *PanelRenderer
}

func NewPNGSink(path string, renderer *PanelRenderer) *PNGSink {
	if renderer == nil {
		renderer = NewPanelRenderer(8)
	}
	return &PNGSink{path: path, renderer: renderer}
}

func (p *PNGSink) Show(_ context.Context, b board.Board, s Score) error {
	data, err := p.renderer.RenderPNG(b, s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create display dir: %w", err)
		}
	}
	// 반쯤 쓴 파일을 읽지 않도록 임시 파일 후 rename
	tmp, err := os.CreateTemp(dir, ".panel-*.png")
	if err != nil {
		return fmt.Errorf("create temp png: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close png: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace png: %w", err)
	}
	return nil
}
