// Package session persists board sessions in Redis as an initial FEN plus the
// UCI move list. The authoritative state is always rebuilt by replaying those
// moves through the rules engine, so a stored record can never hold a position
// the engine would not reach.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/rules"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict means another writer changed the session between read and write.
	ErrConflict       = errors.New("session changed concurrently")
	ErrEngineMismatch = errors.New("session belongs to another rules engine")
)

const defaultTTL = time.Hour

type Record struct {
	ID          string    `json:"id"`
	Engine      string    `json:"engine"`
	InitialFEN  string    `json:"initial_fen"`
	Moves       []string  `json:"moves"`
	Orientation string    `json:"orientation"`
	PuzzleID    string    `json:"puzzle_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ply is the number of half-moves stored.
func (r *Record) Ply() int { return len(r.Moves) }

type Store struct {
	rdb    *redis.Client
	engine rules.Engine
	ttl    time.Duration
	now    func() time.Time
}

// NewStore connects to redisURL and pings it.
func NewStore(redisURL string, engine rules.Engine, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session store")
	}
	// rediss:// 는 TLS, user:pass@ 는 ACL 사용자로 처리됨
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStoreWithClient(rdb, engine, ttl), nil
}

func NewStoreWithClient(rdb *redis.Client, engine rules.Engine, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, engine: engine, ttl: ttl, now: time.Now}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Engine() rules.Engine { return s.engine }

// Create stores a new session. An empty fen means the engine start position.
func (s *Store) Create(ctx context.Context, fen, orientation, puzzleID string) (*Record, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = s.engine.StartFEN()
	}
	if _, err := s.engine.Validate(fen); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := &Record{
		ID:          uuid.NewString(),
		Engine:      s.engine.Name(),
		InitialFEN:  fen,
		Moves:       []string{},
		Orientation: orientation,
		PuzzleID:    puzzleID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	obslog.L().Info("board_session_created",
		zap.String("session_id", rec.ID),
		zap.String("engine", rec.Engine),
		zap.String("puzzle_id", puzzleID),
	)
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.decode(raw)
}

// Restore loads the record and replays it into a fresh adapter.
func (s *Store) Restore(ctx context.Context, id string) (*Record, *game.Adapter, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	a, err := game.Replay(s.engine, rec.InitialFEN, rec.Moves)
	if err != nil {
		return nil, nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	return rec, a, nil
}

// Append applies uci on top of the stored moves. ply is the move count the
// caller last saw; a mismatch means someone else moved first and yields
// ErrConflict. Illegal moves surface the game package errors unchanged.
func (s *Store) Append(ctx context.Context, id string, ply int, uci string) (*Record, game.GameState, error) {
	var (
		out   *Record
		state game.GameState
	)
	err := s.update(ctx, id, func(cur *Record) error {
		if cur.Ply() != ply {
			return redis.TxFailedErr
		}
		a, err := game.Replay(s.engine, cur.InitialFEN, cur.Moves)
		if err != nil {
			return err
		}
		mv, err := rules.ParseUCI(uci, a.Grid())
		if err != nil {
			return err
		}
		st, err := a.ApplyMove(mv)
		if err != nil {
			return err
		}
		// 엔진이 승급 기본값을 채울 수 있으므로 기록된 UCI를 저장
		cur.Moves = st.MovesUCI()
		out, state = cur, st
		return nil
	})
	if err != nil {
		return nil, game.GameState{}, err
	}
	return out, state, nil
}

// Save overwrites the stored line with the adapter's current state, used after
// undo, reset and load. ply has the same meaning as in Append.
func (s *Store) Save(ctx context.Context, id string, ply int, st game.GameState) (*Record, error) {
	var out *Record
	err := s.update(ctx, id, func(cur *Record) error {
		if ply >= 0 && cur.Ply() != ply {
			return redis.TxFailedErr
		}
		cur.InitialFEN = st.InitialFEN
		cur.Moves = st.MovesUCI()
		out = cur
		return nil
	})
	return out, err
}

func (s *Store) SetOrientation(ctx context.Context, id, orientation string) error {
	return s.update(ctx, id, func(cur *Record) error {
		cur.Orientation = orientation
		return nil
	})
}

// SetPuzzle tags the session with the puzzle being solved; empty clears it.
func (s *Store) SetPuzzle(ctx context.Context, id, puzzleID string) error {
	return s.update(ctx, id, func(cur *Record) error {
		cur.PuzzleID = puzzleID
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// update runs fn inside WATCH/MULTI and writes the mutated record with a
// refreshed TTL.
func (s *Store) update(ctx context.Context, id string, fn func(cur *Record) error) error {
	key := sessionKey(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := s.decode(raw)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		cur.UpdatedAt = s.now().UTC()
		newRaw, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		obslog.L().Warn("board_session_conflict", zap.String("session_id", id))
		return ErrConflict
	}
	return err
}

func (s *Store) put(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(rec.ID), raw, s.ttl).Err()
}

func (s *Store) decode(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if rec.Engine != s.engine.Name() {
		return nil, fmt.Errorf("%w: %s", ErrEngineMismatch, rec.Engine)
	}
	if rec.Moves == nil {
		rec.Moves = []string{}
	}
	return &rec, nil
}

func sessionKey(id string) string { return "board:session:" + strings.TrimSpace(id) }
