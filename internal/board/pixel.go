package board

import "math"

// Point is a position inside the board container. The transform works in
// percent (0..100 on both axes); pointer input in pixels goes through Percent.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Percent converts a pixel point inside a width x height container to percent.
func Percent(p Point, width, height float64) Point {
	if width <= 0 || height <= 0 {
		return Point{X: -1, Y: -1}
	}
	return Point{X: p.X / width * 100, Y: p.Y / height * 100}
}

// Orientation is the side drawn at the bottom of the board.
type Orientation = Color

// visualCell maps a square to its drawn column/row (row 0 is the top).
func (g Grid) visualCell(sq Square, o Orientation) (col, row int, err error) {
	f, r, err := g.Coords(sq)
	if err != nil {
		return 0, 0, err
	}
	col, row = f, g.Size-1-r
	if o == Black {
		col, row = g.Size-1-col, g.Size-1-row
	}
	return col, row, nil
}

func (g Grid) cellSquare(col, row int, o Orientation) Square {
	if o == Black {
		col, row = g.Size-1-col, g.Size-1-row
	}
	return g.At(col, g.Size-1-row)
}

// SquareToPixel returns the center of sq in percent of the container.
func (g Grid) SquareToPixel(sq Square, o Orientation) (Point, error) {
	col, row, err := g.visualCell(sq, o)
	if err != nil {
		return Point{}, err
	}
	cell := 100 / float64(g.Size)
	return Point{X: (float64(col) + 0.5) * cell, Y: (float64(row) + 0.5) * cell}, nil
}

// PixelToSquare maps a percent point back to a square. The far edges (100%)
// belong to the last column and row.
func (g Grid) PixelToSquare(x, y float64, o Orientation) (Square, bool) {
	if g.Size < 1 || math.IsNaN(x) || math.IsNaN(y) || x < 0 || x > 100 || y < 0 || y > 100 {
		return "", false
	}
	col := int(x * float64(g.Size) / 100)
	row := int(y * float64(g.Size) / 100)
	if col >= g.Size {
		col = g.Size - 1
	}
	if row >= g.Size {
		row = g.Size - 1
	}
	return g.cellSquare(col, row, o), true
}

// VisualOrder lists squares top-left to bottom-right as drawn.
func (g Grid) VisualOrder(o Orientation) []Square {
	out := make([]Square, 0, g.Size*g.Size)
	for row := 0; row < g.Size; row++ {
		for col := 0; col < g.Size; col++ {
			out = append(out, g.cellSquare(col, row, o))
		}
	}
	return out
}

// Labels reports whether sq carries the file label (bottom visual row) and the
// rank label (right visual column).
func (g Grid) Labels(sq Square, o Orientation) (file, rank bool) {
	col, row, err := g.visualCell(sq, o)
	if err != nil {
		return false, false
	}
	return row == g.Size-1, col == g.Size-1
}

func SquareToPixel(sq Square, gridSize int, o Orientation) (Point, error) {
	g, err := NewGrid(gridSize)
	if err != nil {
		return Point{}, err
	}
	return g.SquareToPixel(sq, o)
}

func PixelToSquare(x, y float64, gridSize int, o Orientation) (Square, bool) {
	g, err := NewGrid(gridSize)
	if err != nil {
		return "", false
	}
	return g.PixelToSquare(x, y, o)
}

func SquaresInVisualOrder(o Orientation) []Square { return Standard.VisualOrder(o) }
