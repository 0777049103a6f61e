package board

import (
	"errors"
	"math"
	"testing"
)

func TestSquarePositionRoundTrip(t *testing.T) {
	for _, sq := range Standard.Squares() {
		p, err := SquareToPosition(sq)
		if err != nil {
			t.Fatalf("SquareToPosition(%s): %v", sq, err)
		}
		back, err := PositionToSquare(p)
		if err != nil {
			t.Fatalf("PositionToSquare(%v): %v", p, err)
		}
		if back != sq {
			t.Fatalf("round trip %s -> %v -> %s", sq, p, back)
		}
	}
	if n := len(Standard.Squares()); n != 64 {
		t.Fatalf("expected 64 squares, got %d", n)
	}
}

func TestInvalidNotation(t *testing.T) {
	bad := []string{"", "e", "e0", "e9", "i1", "E4", "e44", "4e", "e+4", "e-1", "a08"}
	for _, s := range bad {
		if _, err := SquareToPosition(Square(s)); !errors.Is(err, ErrInvalidNotation) {
			t.Fatalf("%q: expected ErrInvalidNotation, got %v", s, err)
		}
	}
	if _, err := PositionToSquare(Position{File: 'z', Rank: 1}); !errors.Is(err, ErrInvalidNotation) {
		t.Fatalf("expected ErrInvalidNotation for z1, got %v", err)
	}
	g, _ := NewGrid(12)
	if _, err := g.ParseSquare("l12"); err != nil {
		t.Fatalf("l12 on 12x12: %v", err)
	}
}

func TestSquareToPixelCenters(t *testing.T) {
	p, err := SquareToPixel("a8", 8, White)
	if err != nil {
		t.Fatalf("SquareToPixel: %v", err)
	}
	if p.X != 6.25 || p.Y != 6.25 {
		t.Fatalf("a8 white: got %+v", p)
	}
	p, _ = SquareToPixel("a8", 8, Black)
	if p.X != 93.75 || p.Y != 93.75 {
		t.Fatalf("a8 black: got %+v", p)
	}
	p, _ = SquareToPixel("b2", 3, White)
	if math.Abs(p.X-50) > 1e-9 || math.Abs(p.Y-50) > 1e-9 {
		t.Fatalf("b2 on 3x3 should be center, got %+v", p)
	}
}

func TestOrientationSymmetry(t *testing.T) {
	for n := 1; n <= 12; n++ {
		g, err := NewGrid(n)
		if err != nil {
			t.Fatalf("NewGrid(%d): %v", n, err)
		}
		for _, o := range []Orientation{White, Black} {
			for _, sq := range g.Squares() {
				p, err := g.SquareToPixel(sq, o)
				if err != nil {
					t.Fatalf("n=%d %s: %v", n, sq, err)
				}
				got, ok := PixelToSquare(p.X, p.Y, n, o)
				if !ok || got != sq {
					t.Fatalf("n=%d o=%s: %s -> %+v -> %s (ok=%v)", n, o, sq, p, got, ok)
				}
			}
		}
	}
}

func TestPixelToSquareBounds(t *testing.T) {
	cases := []struct{ x, y float64 }{{-0.1, 50}, {50, -1}, {100.01, 50}, {50, 250}}
	for _, c := range cases {
		if sq, ok := PixelToSquare(c.x, c.y, 8, White); ok {
			t.Fatalf("(%v,%v) expected none, got %s", c.x, c.y, sq)
		}
	}
	if sq, ok := PixelToSquare(100, 100, 8, White); !ok || sq != "h1" {
		t.Fatalf("far corner: got %s ok=%v", sq, ok)
	}
	if sq, ok := PixelToSquare(0, 0, 8, Black); !ok || sq != "h1" {
		t.Fatalf("black top-left: got %s ok=%v", sq, ok)
	}
}

func TestPercentFromPixels(t *testing.T) {
	p := Percent(Point{X: 390, Y: 27}, 480, 360)
	if math.Abs(p.X-81.25) > 1e-9 || math.Abs(p.Y-7.5) > 1e-9 {
		t.Fatalf("percent = %+v", p)
	}
	if sq, ok := PixelToSquare(p.X, p.Y, 8, White); !ok || sq != "g8" {
		t.Fatalf("square = %s ok=%v", sq, ok)
	}
	if p := Percent(Point{X: 10, Y: 10}, 0, 480); p.X >= 0 || p.Y >= 0 {
		t.Fatalf("zero width should land off the board, got %+v", p)
	}
}

func TestSquaresInVisualOrder(t *testing.T) {
	w := SquaresInVisualOrder(White)
	if w[0] != "a8" || w[7] != "h8" || w[8] != "a7" || w[63] != "h1" {
		t.Fatalf("white order: %v...%v", w[:9], w[63])
	}
	b := SquaresInVisualOrder(Black)
	if b[0] != "h1" || b[7] != "a1" || b[63] != "a8" {
		t.Fatalf("black order: %v...%v", b[:8], b[63])
	}
}

func TestLabelEdges(t *testing.T) {
	tests := []struct {
		sq         Square
		o          Orientation
		file, rank bool
	}{
		{"a1", White, true, false},
		{"h1", White, true, true},
		{"h8", White, false, true},
		{"a8", Black, true, true},
		{"a1", Black, false, true},
		{"h8", Black, true, false},
	}
	for _, tt := range tests {
		f, r := Standard.Labels(tt.sq, tt.o)
		if f != tt.file || r != tt.rank {
			t.Fatalf("%s/%s: got file=%v rank=%v", tt.sq, tt.o, f, r)
		}
	}
}

func TestGridFileLabels(t *testing.T) {
	g, _ := NewGrid(6)
	labels := g.FileLabels()
	if len(labels) != 6 || labels[0] != "a" || labels[5] != "f" {
		t.Fatalf("labels: %v", labels)
	}
	if _, err := NewGrid(0); err == nil {
		t.Fatalf("expected error for zero grid")
	}
	if g.Contains("g1") {
		t.Fatalf("g1 is off a 6x6 grid")
	}
}

func TestPieceFEN(t *testing.T) {
	p, ok := PieceFromFEN('N')
	if !ok || p.Type != Knight || p.Color != White {
		t.Fatalf("N: %+v ok=%v", p, ok)
	}
	if p.FEN() != 'N' {
		t.Fatalf("FEN(): %c", p.FEN())
	}
	if _, ok := PieceFromFEN('x'); ok {
		t.Fatalf("x should not decode")
	}
	if tp, err := ParsePieceType("queen"); err != nil || tp != Queen {
		t.Fatalf("ParsePieceType(queen): %v %v", tp, err)
	}
}
