// Package puzzle loads tactics puzzles and checks attempted solutions.
package puzzle

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("puzzle not found")

type Puzzle struct {
	ID  string `json:"id" yaml:"id"`
	FEN string `json:"fen" yaml:"fen"`
	// SolutionMoves alternate sides starting with the side to move in FEN.
	// Entries may be UCI or SAN.
	SolutionMoves []string  `json:"solution_moves" yaml:"solution_moves"`
	Themes        []string  `json:"themes" yaml:"themes"`
	Rating        int       `json:"rating" yaml:"rating"`
	Description   string    `json:"description" yaml:"description"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

func (p Puzzle) HasTheme(theme string) bool {
	for _, t := range p.Themes {
		if strings.EqualFold(t, theme) {
			return true
		}
	}
	return false
}

const (
	DefaultMinRating = 1000
	DefaultMaxRating = 2000
	DefaultLimit     = 10
)

// Query filters puzzles by rating range and themes (any theme matches).
type Query struct {
	MinRating int
	MaxRating int
	Themes    []string
	Limit     int
	Offset    int
}

// Normalized fills zero values with the defaults.
func (q Query) Normalized() Query {
	if q.MinRating <= 0 {
		q.MinRating = DefaultMinRating
	}
	if q.MaxRating <= 0 {
		q.MaxRating = DefaultMaxRating
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	themes := q.Themes[:0:0]
	for _, t := range q.Themes {
		if t = strings.TrimSpace(t); t != "" {
			themes = append(themes, t)
		}
	}
	q.Themes = themes
	return q
}

func (q Query) Match(p Puzzle) bool {
	if p.Rating < q.MinRating || p.Rating > q.MaxRating {
		return false
	}
	if len(q.Themes) == 0 {
		return true
	}
	for _, t := range q.Themes {
		if p.HasTheme(t) {
			return true
		}
	}
	return false
}

type Stats struct {
	TotalPuzzles  int `json:"totalPuzzles"`
	AverageRating int `json:"averageRating"`
	MinRating     int `json:"minRating"`
	MaxRating     int `json:"maxRating"`
}

type Repository interface {
	Random(ctx context.Context, q Query) (*Puzzle, error)
	ByID(ctx context.Context, id string) (*Puzzle, error)
	List(ctx context.Context, q Query) ([]Puzzle, error)
	Search(ctx context.Context, term string, limit int) ([]Puzzle, error)
	Themes(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}
