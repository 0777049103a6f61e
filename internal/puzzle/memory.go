package puzzle

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed samples.yaml
var samplesYAML []byte

// MemoryRepository serves puzzles from memory. It is used in development and
// whenever no database or remote API is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	puzzles []Puzzle
	byID    map[string]int
	intn    func(n int) int
}

func NewMemoryRepository(puzzles ...Puzzle) *MemoryRepository {
	m := &MemoryRepository{byID: make(map[string]int), intn: rand.IntN}
	for _, p := range puzzles {
		m.Add(p)
	}
	return m
}

// NewSampleRepository returns a repository with the built-in samples.
func NewSampleRepository() (*MemoryRepository, error) {
	return loadYAML(samplesYAML)
}

// LoadFile reads a YAML list of puzzles.
func LoadFile(path string) (*MemoryRepository, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read puzzle file: %w", err)
	}
	return loadYAML(b)
}

func loadYAML(b []byte) (*MemoryRepository, error) {
	var list []Puzzle
	if err := yaml.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse puzzles: %w", err)
	}
	return NewMemoryRepository(list...), nil
}

// Add inserts or replaces p by id.
func (m *MemoryRepository) Add(p Puzzle) {
	p = clonePuzzle(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[p.ID]; ok {
		m.puzzles[i] = p
		return
	}
	m.byID[p.ID] = len(m.puzzles)
	m.puzzles = append(m.puzzles, p)
}

func (m *MemoryRepository) matching(q Query) []Puzzle {
	out := make([]Puzzle, 0)
	for _, p := range m.puzzles {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating < out[j].Rating })
	return out
}

func (m *MemoryRepository) Random(ctx context.Context, q Query) (*Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.matching(q.Normalized())
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	p := clonePuzzle(list[m.intn(len(list))])
	return &p, nil
}

func (m *MemoryRepository) ByID(ctx context.Context, id string) (*Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	p := clonePuzzle(m.puzzles[i])
	return &p, nil
}

func (m *MemoryRepository) List(ctx context.Context, q Query) ([]Puzzle, error) {
	q = q.Normalized()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.matching(q), q.Offset, q.Limit), nil
}

func (m *MemoryRepository) Search(ctx context.Context, term string, limit int) ([]Puzzle, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Puzzle, 0)
	for _, p := range m.puzzles {
		if strings.Contains(strings.ToLower(p.Description), term) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating < out[j].Rating })
	return page(out, 0, limit), nil
}

func (m *MemoryRepository) Themes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := map[string]struct{}{}
	for _, p := range m.puzzles {
		for _, t := range p.Themes {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRepository) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	sum := 0
	for i, p := range m.puzzles {
		sum += p.Rating
		if i == 0 || p.Rating < s.MinRating {
			s.MinRating = p.Rating
		}
		if p.Rating > s.MaxRating {
			s.MaxRating = p.Rating
		}
	}
	s.TotalPuzzles = len(m.puzzles)
	if s.TotalPuzzles > 0 {
		s.AverageRating = (sum + s.TotalPuzzles/2) / s.TotalPuzzles
	}
	return s, nil
}

func page(list []Puzzle, offset, limit int) []Puzzle {
	if offset >= len(list) {
		return []Puzzle{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	out := make([]Puzzle, 0, end-offset)
	for _, p := range list[offset:end] {
		out = append(out, clonePuzzle(p))
	}
	return out
}

func clonePuzzle(p Puzzle) Puzzle {
	p.SolutionMoves = append([]string(nil), p.SolutionMoves...)
	p.Themes = append([]string(nil), p.Themes...)
	return p
}
