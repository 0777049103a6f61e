package board

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidNotation reports a square string or position outside the grid.
var ErrInvalidNotation = errors.New("invalid square notation")

const (
	StandardSize = 8
	MaxGridSize  = 26
)

// Square is the textual form "<file><rank>", e.g. "e4".
type Square string

func (s Square) String() string { return string(s) }

// Position is the structured form of a Square. Rank is 1-based.
type Position struct {
	File rune `json:"file"`
	Rank int  `json:"rank"`
}

func (p Position) String() string { return fmt.Sprintf("%c%d", p.File, p.Rank) }

// Grid is an N x N board. The zero value is not usable; see NewGrid and Standard.
type Grid struct {
	Size int
}

// Standard is the 8x8 chess grid.
var Standard = Grid{Size: StandardSize}

func NewGrid(size int) (Grid, error) {
	if size < 1 || size > MaxGridSize {
		return Grid{}, fmt.Errorf("grid size %d out of range [1,%d]", size, MaxGridSize)
	}
	return Grid{Size: size}, nil
}

func SquareToPosition(sq Square) (Position, error) { return Standard.Position(sq) }

func PositionToSquare(p Position) (Square, error) { return Standard.Square(p) }

func ParseSquare(s string) (Square, error) { return Standard.ParseSquare(s) }

func (g Grid) ParseSquare(s string) (Square, error) {
	p, err := g.Position(Square(s))
	if err != nil {
		return "", err
	}
	return g.Square(p)
}

func (g Grid) Position(sq Square) (Position, error) {
	s := string(sq)
	if len(s) < 2 || len(s) > 3 {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Position{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
		}
	}
	if s[1] == '0' {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	rank, _ := strconv.Atoi(s[1:])
	p := Position{File: rune(s[0]), Rank: rank}
	if !g.containsPosition(p) {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	return p, nil
}

func (g Grid) Square(p Position) (Square, error) {
	if !g.containsPosition(p) {
		return "", fmt.Errorf("%w: %c%d", ErrInvalidNotation, p.File, p.Rank)
	}
	return Square(p.String()), nil
}

func (g Grid) containsPosition(p Position) bool {
	return p.File >= 'a' && p.File < 'a'+rune(g.Size) && p.Rank >= 1 && p.Rank <= g.Size
}

func (g Grid) Contains(sq Square) bool {
	_, err := g.Position(sq)
	return err == nil
}

// Coords returns zero-based file and rank indexes (a1 = 0,0).
func (g Grid) Coords(sq Square) (file, rank int, err error) {
	p, err := g.Position(sq)
	if err != nil {
		return 0, 0, err
	}
	return int(p.File - 'a'), p.Rank - 1, nil
}

// At returns the square at zero-based file and rank, or "" when off the grid.
func (g Grid) At(file, rank int) Square {
	if file < 0 || file >= g.Size || rank < 0 || rank >= g.Size {
		return ""
	}
	return Square(fmt.Sprintf("%c%d", 'a'+rune(file), rank+1))
}

// Squares enumerates the grid from a1, file-major within each rank.
func (g Grid) Squares() []Square {
	out := make([]Square, 0, g.Size*g.Size)
	for r := 0; r < g.Size; r++ {
		for f := 0; f < g.Size; f++ {
			out = append(out, g.At(f, r))
		}
	}
	return out
}

// FileLabels returns the first Size letters of the alphabet.
func (g Grid) FileLabels() []string {
	out := make([]string, g.Size)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}
