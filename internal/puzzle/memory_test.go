package puzzle

import (
	"context"
	"errors"
	"testing"
)

func TestSampleRepository(t *testing.T) {
	repo, err := NewSampleRepository()
	if err != nil {
		t.Fatalf("NewSampleRepository: %v", err)
	}
	ctx := context.Background()

	st, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalPuzzles != 4 || st.MinRating != 1000 || st.MaxRating != 1600 || st.AverageRating != 1225 {
		t.Fatalf("stats: %+v", st)
	}

	p, err := repo.ByID(ctx, "sample_2")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if p.Rating != 1200 || len(p.SolutionMoves) != 1 || p.CreatedAt.IsZero() {
		t.Fatalf("sample_2: %+v", p)
	}
	p.SolutionMoves[0] = "tampered"
	again, _ := repo.ByID(ctx, "sample_2")
	if again.SolutionMoves[0] != "h5f7" {
		t.Fatalf("repository returned shared slices")
	}

	if _, err := repo.ByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	repo, _ := NewSampleRepository()
	ctx := context.Background()

	list, err := repo.List(ctx, Query{Themes: []string{"checkmate"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "sample_3" || list[1].ID != "sample_2" {
		t.Fatalf("checkmate themes sorted by rating: %+v", list)
	}

	list, _ = repo.List(ctx, Query{MinRating: 1100, MaxRating: 1300})
	if len(list) != 2 {
		t.Fatalf("rating window: %d", len(list))
	}
	list, _ = repo.List(ctx, Query{Limit: 2, Offset: 3})
	if len(list) != 1 || list[0].ID != "sample_4" {
		t.Fatalf("paging: %+v", list)
	}
	list, _ = repo.List(ctx, Query{Offset: 10})
	if len(list) != 0 {
		t.Fatalf("offset past end: %+v", list)
	}

	if _, err := repo.Random(ctx, Query{MinRating: 2500, MaxRating: 3000}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	repo.intn = func(n int) int { return n - 1 }
	p, err := repo.Random(ctx, Query{Themes: []string{"opening"}})
	if err != nil || p.ID != "sample_4" {
		t.Fatalf("Random: %+v %v", p, err)
	}
}

func TestSearchAndThemes(t *testing.T) {
	repo, _ := NewSampleRepository()
	ctx := context.Background()
	list, err := repo.Search(ctx, "MATE", 5)
	if err != nil || len(list) != 2 {
		t.Fatalf("Search: %d %v", len(list), err)
	}
	if _, err := repo.Search(ctx, "  ", 5); err == nil {
		t.Fatalf("empty search term should fail")
	}
	themes, _ := repo.Themes(ctx)
	if len(themes) == 0 || themes[0] != "back_rank" {
		t.Fatalf("themes: %v", themes)
	}
}

func TestFilterSQL(t *testing.T) {
	where, args := filterSQL(Query{MinRating: 1000, MaxRating: 2000})
	if where != "rating >= $1 AND rating <= $2" || len(args) != 2 {
		t.Fatalf("no themes: %q %v", where, args)
	}
	where, args = filterSQL(Query{MinRating: 1000, MaxRating: 2000, Themes: []string{"fork"}})
	if where != "rating >= $1 AND rating <= $2 AND themes && $3" || len(args) != 3 {
		t.Fatalf("themes: %q %v", where, args)
	}
}

func TestQueryNormalized(t *testing.T) {
	q := Query{Themes: []string{" fork ", ""}, Offset: -3}.Normalized()
	if q.MinRating != DefaultMinRating || q.MaxRating != DefaultMaxRating || q.Limit != DefaultLimit || q.Offset != 0 {
		t.Fatalf("defaults: %+v", q)
	}
	if len(q.Themes) != 1 || q.Themes[0] != "fork" {
		t.Fatalf("themes: %v", q.Themes)
	}
}
