package puzzle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Schema creates the puzzles table. solution_moves and themes are text arrays.
const Schema = `CREATE TABLE IF NOT EXISTS puzzles (
    id             TEXT PRIMARY KEY,
    fen            TEXT NOT NULL,
    solution_moves TEXT[] NOT NULL DEFAULT '{}',
    themes         TEXT[] NOT NULL DEFAULT '{}',
    rating         INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS puzzles_rating_idx ON puzzles (rating);`

const puzzleColumns = `id, fen, solution_moves, themes, rating, description, created_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Upsert stores p, replacing a puzzle with the same id.
func (r *PostgresRepository) Upsert(ctx context.Context, p Puzzle) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO puzzles (`+puzzleColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
          fen=EXCLUDED.fen,
          solution_moves=EXCLUDED.solution_moves,
          themes=EXCLUDED.themes,
          rating=EXCLUDED.rating,
          description=EXCLUDED.description`,
		p.ID, p.FEN, pq.Array(p.SolutionMoves), pq.Array(p.Themes), p.Rating, p.Description, created,
	)
	return err
}

// filterSQL builds the WHERE clause shared by Random and List. Theme matching
// is "any of" through array overlap.
func filterSQL(q Query) (string, []any) {
	where := "rating >= $1 AND rating <= $2"
	args := []any{q.MinRating, q.MaxRating}
	if len(q.Themes) > 0 {
		args = append(args, pq.Array(q.Themes))
		where += fmt.Sprintf(" AND themes && $%d", len(args))
	}
	return where, args
}

func (r *PostgresRepository) Random(ctx context.Context, q Query) (*Puzzle, error) {
	where, args := filterSQL(q.Normalized())
	row := r.db.QueryRowContext(ctx, `SELECT `+puzzleColumns+` FROM puzzles WHERE `+where+` ORDER BY random() LIMIT 1`, args...)
	return scanOne(row)
}

func (r *PostgresRepository) ByID(ctx context.Context, id string) (*Puzzle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+puzzleColumns+` FROM puzzles WHERE id = $1`, strings.TrimSpace(id))
	return scanOne(row)
}

func (r *PostgresRepository) List(ctx context.Context, q Query) ([]Puzzle, error) {
	q = q.Normalized()
	where, args := filterSQL(q)
	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s FROM puzzles WHERE %s ORDER BY rating ASC LIMIT $%d OFFSET $%d`,
		puzzleColumns, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (r *PostgresRepository) Search(ctx context.Context, term string, limit int) ([]Puzzle, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("search term is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+puzzleColumns+` FROM puzzles
        WHERE description ILIKE '%' || $1 || '%' ORDER BY rating ASC LIMIT $2`, term, limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (r *PostgresRepository) Themes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT unnest(themes) AS theme FROM puzzles ORDER BY theme`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var (
		s                    Stats
		avg                  sql.NullFloat64
		minRating, maxRating sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(rating), MIN(rating), MAX(rating) FROM puzzles`).
		Scan(&s.TotalPuzzles, &avg, &minRating, &maxRating)
	if err != nil {
		return Stats{}, err
	}
	s.AverageRating = int(avg.Float64 + 0.5)
	s.MinRating, s.MaxRating = int(minRating.Int64), int(maxRating.Int64)
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPuzzle(sc rowScanner) (Puzzle, error) {
	var p Puzzle
	err := sc.Scan(&p.ID, &p.FEN, pq.Array(&p.SolutionMoves), pq.Array(&p.Themes), &p.Rating, &p.Description, &p.CreatedAt)
	return p, err
}

func scanOne(row *sql.Row) (*Puzzle, error) {
	p, err := scanPuzzle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanAll(rows *sql.Rows) ([]Puzzle, error) {
	defer rows.Close()
	out := make([]Puzzle, 0)
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
