package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/chessboard-core/internal/board"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

// oksvg는 "fill: #fff" 형태의 공백을 못 읽음
var svgStyleFix = strings.NewReplacer(
	"fill: #", "fill:#",
	"stroke: #", "stroke:#",
	"fill:000000", "fill:#000000",
)

type glyphKey struct {
	piece board.Piece
	size  int
}

// glyphSet rasterizes piece SVGs on demand and keeps every size it has drawn.
// Renderers share one set; the images it hands out are never written to.
type glyphSet struct {
	mu     sync.Mutex
	images map[glyphKey]*image.RGBA
}

var glyphs = &glyphSet{images: map[glyphKey]*image.RGBA{}}

func renderPieceImage(piece board.Piece, size int) (image.Image, error) {
	img, err := glyphs.get(piece, size)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (g *glyphSet) get(piece board.Piece, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("piece size must be positive, got %d", size)
	}
	key := glyphKey{piece: piece, size: size}
	g.mu.Lock()
	img, ok := g.images[key]
	g.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := rasterizePiece(piece, size)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.images[key] = img
	g.mu.Unlock()
	return img, nil
}

func rasterizePiece(piece board.Piece, size int) (*image.RGBA, error) {
	name, err := pieceAssetName(piece)
	if err != nil {
		return nil, err
	}
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svgStyleFix.Replace(string(data)))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	// NewRGBA starts fully transparent
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img, nil
}

func pieceAssetName(piece board.Piece) (string, error) {
	letter := piece.Type.Letter()
	if letter == 0 {
		return "", fmt.Errorf("no asset for piece %s", piece)
	}
	return fmt.Sprintf("assets/pieces/%s%s.svg", piece.Color.Letter(), strings.ToUpper(string(letter))), nil
}
