package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/rules"
)

var (
	ErrInvalidFEN  = rules.ErrInvalidFEN
	ErrIllegalMove = rules.ErrIllegalMove
	ErrGameOver    = errors.New("game is over")
)

// Adapter owns the authoritative GameState. It is the only writer; readers get
// deep copies, and a failed call leaves the state untouched.
type Adapter struct {
	mu     sync.RWMutex
	engine rules.Engine
	grid   board.Grid
	state  GameState
	// previous states, newest last, for Undo and repetition counting
	stack []GameState
}

// New creates an adapter at the engine's start position.
func New(engine rules.Engine) (*Adapter, error) {
	a := &Adapter{engine: engine, grid: board.Grid{Size: engine.GridSize()}}
	pos, err := engine.Validate(engine.StartFEN())
	if err != nil {
		return nil, fmt.Errorf("engine %s start position: %w", engine.Name(), err)
	}
	a.install(pos)
	return a, nil
}

// Replay loads fen (which must be valid) and applies the UCI moves in order.
func Replay(engine rules.Engine, fen string, moves []string) (*Adapter, error) {
	a, err := New(engine)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fen) != "" {
		if _, err := a.Load(fen); err != nil {
			return nil, err
		}
	}
	for i, m := range moves {
		mv, err := rules.ParseUCI(m, a.grid)
		if err != nil {
			return nil, fmt.Errorf("replay move %d %q: %w", i+1, m, err)
		}
		if _, err := a.ApplyMove(mv); err != nil {
			return nil, fmt.Errorf("replay move %d %q: %w", i+1, m, err)
		}
	}
	return a, nil
}

func (a *Adapter) Engine() rules.Engine { return a.engine }

func (a *Adapter) Grid() board.Grid { return a.grid }

func (a *Adapter) State() GameState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.clone()
}

// Load replaces the game with fen. On an invalid FEN the adapter falls back to
// the engine's start position and returns the fallback state together with
// an error wrapping ErrInvalidFEN.
func (a *Adapter) Load(fen string) (GameState, error) {
	pos, err := a.engine.Validate(fen)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		start, serr := a.engine.Validate(a.engine.StartFEN())
		if serr != nil {
			return a.state.clone(), fmt.Errorf("load fallback: %w", serr)
		}
		a.install(start)
		obslog.L().Warn("board_invalid_fen",
			zap.String("engine", a.engine.Name()),
			zap.String("fen", fen),
			zap.Error(err),
		)
		if !errors.Is(err, ErrInvalidFEN) {
			err = fmt.Errorf("%w: %v", ErrInvalidFEN, err)
		}
		return a.state.clone(), err
	}
	a.install(pos)
	return a.state.clone(), nil
}

// Reset reinitializes to the start position or the supplied FEN, clearing
// history and the captured log.
func (a *Adapter) Reset(fen ...string) error {
	target := a.engine.StartFEN()
	if len(fen) > 0 && strings.TrimSpace(fen[0]) != "" {
		target = fen[0]
	}
	_, err := a.Load(target)
	return err
}

// install must be called with mu held (or before the adapter is shared).
func (a *Adapter) install(pos *rules.Position) {
	squares := make(map[board.Square]Piece, len(pos.Pieces))
	for sq, pc := range pos.Pieces {
		squares[sq] = Piece{ID: initialID(pc, sq), Type: pc.Type, Color: pc.Color}
	}
	st := GameState{
		ID:            uuid.NewString(),
		Engine:        a.engine.Name(),
		GridSize:      a.grid.Size,
		Snapshot:      Snapshot{size: a.grid.Size, squares: squares},
		CurrentPlayer: pos.Turn,
		FEN:           pos.FEN,
		InitialFEN:    pos.FEN,
		HalfmoveClock: pos.HalfmoveClock,
		MoveHistory:   []MoveRecord{},
		Captured:      []CapturedPiece{},
	}
	a.stack = nil
	a.state = GameState{}
	a.setStatus(&st, pos)
	a.state = st
}

// ValidMoves returns legal destinations for the piece on sq. It is empty for
// an empty square, a piece of the side not to move, or a finished game.
func (a *Adapter) ValidMoves(sq board.Square) []board.Square {
	a.mu.RLock()
	st := a.state
	a.mu.RUnlock()
	if st.Terminal() {
		return nil
	}
	pc, ok := st.Snapshot.At(sq)
	if !ok || pc.Color != st.CurrentPlayer {
		return nil
	}
	targets, err := a.engine.LegalTargets(st.FEN, sq)
	if err != nil {
		obslog.L().Debug("board_valid_moves_failed", zap.String("square", string(sq)), zap.Error(err))
		return nil
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// ApplyMove validates mv through the engine and, on success, swaps in the new
// state. ErrGameOver and ErrIllegalMove leave the state unchanged.
func (a *Adapter) ApplyMove(mv MoveRequest) (GameState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.state
	if cur.Terminal() {
		return cur.clone(), ErrGameOver
	}
	pc, ok := cur.Snapshot.At(mv.From)
	if !ok {
		return cur.clone(), fmt.Errorf("%w: no piece on %s", ErrIllegalMove, mv.From)
	}
	if pc.Color != cur.CurrentPlayer {
		return cur.clone(), fmt.Errorf("%w: %s is not to move", ErrIllegalMove, pc.Color)
	}
	out, err := a.engine.Apply(cur.FEN, mv)
	if err != nil {
		if !errors.Is(err, ErrIllegalMove) {
			err = fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
		return cur.clone(), err
	}

	next := a.advance(cur, mv, out)
	a.stack = append(a.stack, cur)
	a.state = next

	obslog.L().Debug("board_move_applied",
		zap.String("game_id", next.ID),
		zap.String("uci", next.LastMove.UCI),
		zap.String("san", next.LastMove.SAN),
		zap.String("status", string(next.Status)),
	)
	return next.clone(), nil
}

// Undo restores the state before the last move. It returns false when there
// is no history.
func (a *Adapter) Undo() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.stack) == 0 {
		return false
	}
	a.state = a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return true
}

func (a *Adapter) advance(cur GameState, mv MoveRequest, out *rules.Outcome) GameState {
	ply := len(cur.MoveHistory) + 1
	squares := cur.Snapshot.clone()
	mover := squares[mv.From]
	delete(squares, mv.From)

	rec := MoveRecord{
		Ply:       ply,
		From:      mv.From,
		To:        mv.To,
		UCI:       out.UCI,
		SAN:       out.SAN,
		PieceID:   mover.ID,
		Piece:     mover.Kind(),
		Promotion: out.Promotion,
		Castle:    out.Castle,
		EnPassant: out.EnPassant,
		Check:     out.Check,
		FENBefore: cur.FEN,
		FENAfter:  out.Position.FEN,
	}

	captured := append(make([]CapturedPiece, 0, len(cur.Captured)+1), cur.Captured...)
	if out.Capture {
		if victim, ok := squares[out.CapturedOn]; ok && victim.Color != mover.Color {
			cp := CapturedPiece{PieceID: victim.ID, Color: victim.Color, Type: victim.Type, Square: out.CapturedOn, Ply: ply}
			delete(squares, out.CapturedOn)
			captured = append(captured, cp)
			rec.Captured = &cp
		}
	}
	if out.Castle {
		if rook, ok := squares[out.RookFrom]; ok {
			delete(squares, out.RookFrom)
			squares[out.RookTo] = rook
			rec.RookID, rec.RookFrom, rec.RookTo = rook.ID, out.RookFrom, out.RookTo
		}
	}
	if out.Promotion != board.NoPieceType {
		mover = Piece{ID: promotedID(mover.Color, out.Promotion, mv.To, ply), Type: out.Promotion, Color: mover.Color}
		rec.PromotedID = mover.ID
	}
	squares[mv.To] = mover
	reconcile(squares, out.Position.Pieces, ply)

	history := append(make([]MoveRecord, 0, len(cur.MoveHistory)+1), cur.MoveHistory...)
	history = append(history, rec)

	next := GameState{
		ID:            cur.ID,
		Engine:        cur.Engine,
		GridSize:      cur.GridSize,
		Snapshot:      Snapshot{size: cur.GridSize, squares: squares},
		CurrentPlayer: out.Position.Turn,
		MoveHistory:   history,
		Captured:      captured,
		FEN:           out.Position.FEN,
		InitialFEN:    cur.InitialFEN,
		HalfmoveClock: out.Position.HalfmoveClock,
	}
	next.LastMove = &next.MoveHistory[len(next.MoveHistory)-1]
	a.setStatus(&next, out.Position)
	return next
}

// reconcile forces the snapshot to agree with the engine's placement. Pieces
// that already match keep their ids; anything else gets a fresh one.
func reconcile(squares map[board.Square]Piece, want map[board.Square]board.Piece, ply int) {
	for _, sq := range sortedSquares(squares) {
		if k, ok := want[sq]; !ok || k != squares[sq].Kind() {
			delete(squares, sq)
		}
	}
	for sq, k := range want {
		if _, ok := squares[sq]; !ok {
			squares[sq] = Piece{ID: fmt.Sprintf("%s-%s-%s-r%d", k.Color, k.Type, sq, ply), Type: k.Type, Color: k.Color}
		}
	}
}

// setStatus applies status priority: checkmate > stalemate > draw > check > playing.
// Repetition and the fifty-move rule are tracked here because engines only see one FEN.
func (a *Adapter) setStatus(st *GameState, pos *rules.Position) {
	st.Status, st.DrawReason, st.Result = pos.Status, pos.DrawReason, nil
	if !st.Status.Terminal() {
		switch {
		case pos.HalfmoveClock >= 100:
			st.Status, st.DrawReason = rules.StatusDraw, rules.DrawFiftyMove
		case a.repetitions(pos.RepetitionKey()) >= 2:
			st.Status, st.DrawReason = rules.StatusDraw, rules.DrawThreefold
		}
	}
	if !st.Status.Terminal() {
		return
	}
	res := &Result{Status: st.Status, Reason: st.DrawReason}
	switch st.Status {
	case rules.StatusCheckmate:
		res.Winner = st.CurrentPlayer.Opposite().String()
		res.Reason = "checkmate"
	case rules.StatusStalemate:
		res.Reason = "stalemate"
	}
	st.Result = res
}

// repetitions counts earlier occurrences of key; the current state makes one more.
func (a *Adapter) repetitions(key string) int {
	n := 0
	for _, s := range a.stack {
		if repetitionKey(s.FEN) == key {
			n++
		}
	}
	if cur := a.state.FEN; cur != "" && repetitionKey(cur) == key {
		n++
	}
	return n
}

func repetitionKey(fen string) string {
	f := strings.Fields(fen)
	if len(f) > 4 {
		f = f[:4]
	}
	return strings.Join(f, " ")
}

func initialID(pc board.Piece, sq board.Square) string {
	return fmt.Sprintf("%s-%s-%s", pc.Color, pc.Type, sq)
}

func promotedID(c board.Color, t board.PieceType, sq board.Square, ply int) string {
	return fmt.Sprintf("%s-%s-%s-p%d", c, t, sq, ply)
}
