// Package render draws board frames to PNG. It is used for previews, the
// CLI and server-side snapshots; the interactive board itself is drawn by the
// host from the JSON state.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/chessboard-core/internal/board"
)

type BoardRenderer interface {
	RenderPNG(ctx context.Context, f Frame) ([]byte, error)
}

type PNGRenderer struct {
	squareSize int
	pieceRatio float64
}

type Option func(*PNGRenderer)

func WithSquareSize(px int) Option {
	return func(r *PNGRenderer) {
		if px > 0 {
			r.squareSize = px
		}
	}
}

func New(opts ...Option) *PNGRenderer {
	r := &PNGRenderer{squareSize: 64, pieceRatio: 0.9}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	lightSquare  = color.RGBA{233, 207, 163, 255}
	darkSquare   = color.RGBA{187, 136, 96, 255}
	lastMoveFill = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	selectedFill = color.NRGBA{R: 148, G: 207, B: 255, A: 150}
	targetColor  = color.NRGBA{R: 20, G: 85, B: 30, A: 110}
	checkColor   = color.NRGBA{R: 230, G: 40, B: 40, A: 170}
	coordOnLight = color.NRGBA{R: 187, G: 136, B: 96, A: 255}
	coordOnDark  = color.NRGBA{R: 233, G: 207, B: 163, A: 255}
)

func (r *PNGRenderer) RenderPNG(ctx context.Context, f Frame) ([]byte, error) {
	if f.GridSize < 1 {
		return nil, fmt.Errorf("grid size must be positive, got %d", f.GridSize)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	g := board.Grid{Size: f.GridSize}
	size := r.squareSize * g.Size
	dc := gg.NewContext(size, size)

	r.drawSquares(dc, g, f)
	r.drawCoordinates(dc, g, f.Orientation)

	for _, sp := range f.Sprites {
		if err := r.drawSprite(dc, sp); err != nil {
			return nil, err
		}
	}
	r.drawTargets(dc, g, f)
	if f.Ghost != nil {
		if err := r.drawSprite(dc, *f.Ghost); err != nil {
			return nil, err
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PNGRenderer) drawSquares(dc *gg.Context, g board.Grid, f Frame) {
	cell := float64(r.squareSize)
	for i, sq := range g.VisualOrder(f.Orientation) {
		x, y := float64(i%g.Size)*cell, float64(i/g.Size)*cell
		dc.DrawRectangle(x, y, cell, cell)
		dc.SetColor(squareColor(g, sq))
		dc.Fill()

		var overlay color.Color
		switch {
		case sq == f.Selected:
			overlay = selectedFill
		case f.LastMove != nil && (sq == f.LastMove.From || sq == f.LastMove.To):
			overlay = lastMoveFill
		}
		if overlay != nil {
			dc.DrawRectangle(x, y, cell, cell)
			dc.SetColor(overlay)
			dc.Fill()
		}
		if sq == f.Check {
			dc.DrawCircle(x+cell/2, y+cell/2, cell*0.45)
			dc.SetColor(checkColor)
			dc.Fill()
		}
	}
}

// 파일 라벨은 아래 줄, 랭크 라벨은 오른쪽 열
func (r *PNGRenderer) drawCoordinates(dc *gg.Context, g board.Grid, o board.Orientation) {
	dc.SetFontFace(basicfont.Face7x13)
	cell := float64(r.squareSize)
	for i, sq := range g.VisualOrder(o) {
		showFile, showRank := g.Labels(sq, o)
		if !showFile && !showRank {
			continue
		}
		pos, err := g.Position(sq)
		if err != nil {
			continue
		}
		x, y := float64(i%g.Size)*cell, float64(i/g.Size)*cell
		if isLight(g, sq) {
			dc.SetColor(coordOnLight)
		} else {
			dc.SetColor(coordOnDark)
		}
		if showFile {
			dc.DrawStringAnchored(string(pos.File), x+3, y+cell-3, 0, 0)
		}
		if showRank {
			dc.DrawStringAnchored(strconv.Itoa(pos.Rank), x+cell-3, y+3, 1, 1)
		}
	}
}

func (r *PNGRenderer) drawTargets(dc *gg.Context, g board.Grid, f Frame) {
	cell := float64(r.squareSize)
	dc.SetColor(targetColor)
	for _, sq := range f.Targets {
		p, err := g.SquareToPixel(sq, f.Orientation)
		if err != nil {
			continue
		}
		cx, cy := p.X/100*cell*float64(g.Size), p.Y/100*cell*float64(g.Size)
		if f.Occupied[sq] {
			dc.SetLineWidth(cell * 0.08)
			dc.DrawCircle(cx, cy, cell*0.44)
			dc.Stroke()
			continue
		}
		dc.DrawCircle(cx, cy, cell*0.15)
		dc.Fill()
	}
}

func (r *PNGRenderer) drawSprite(dc *gg.Context, sp Sprite) error {
	if sp.Opacity <= 0 || sp.Scale <= 0 {
		return nil
	}
	px := int(math.Round(float64(r.squareSize) * r.pieceRatio * sp.Scale))
	if px < 1 {
		return nil
	}
	img, err := renderPieceImage(sp.Piece, px)
	if err != nil {
		return err
	}
	if sp.Opacity < 1 {
		img = fade(img, sp.Opacity)
	}
	total := float64(dc.Width())
	cx, cy := sp.Pos.X/100*total, sp.Pos.Y/100*total
	dc.DrawImageAnchored(img, int(math.Round(cx)), int(math.Round(cy)), 0.5, 0.5)
	return nil
}

func fade(src image.Image, opacity float64) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	draw.DrawMask(dst, b, src, b.Min, mask, image.Point{}, draw.Over)
	return dst
}

func isLight(g board.Grid, sq board.Square) bool {
	f, r, err := g.Coords(sq)
	if err != nil {
		return false
	}
	return (f+r)%2 == 1
}

func squareColor(g board.Grid, sq board.Square) color.Color {
	if isLight(g, sq) {
		return lightSquare
	}
	return darkSquare
}
