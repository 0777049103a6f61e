package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/interaction"
	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/puzzle"
	"github.com/park285/chessboard-core/internal/rules"
	"github.com/park285/chessboard-core/internal/session"
)

const (
	outBuffer    = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	storeTimeout = 3 * time.Second
)

// conn is one WebSocket client. Inbound events and every hook except
// OnChange run on the read goroutine; OnChange may also come from animation
// timers, so it only marks the state dirty.
type conn struct {
	srv       *Server
	ctrl      atomic.Pointer[interaction.Controller]
	sessionID string

	mu     sync.Mutex
	solver *puzzle.Solver

	// followUps run after the current event, outside any hook.
	followUps []func(ctx context.Context)

	out          chan Frame
	statePending atomic.Bool
	done         <-chan struct{}
}

func (s *Server) open(ctx context.Context, sessionID, orientation string) (*conn, error) {
	o := s.deps.Controller.Orientation
	if v := strings.TrimSpace(orientation); v != "" {
		if parsed, err := board.ParseColor(v); err == nil {
			o = parsed
		}
	}
	c := &conn{srv: s, out: make(chan Frame, outBuffer), done: make(chan struct{})}

	var (
		a   *game.Adapter
		rec *session.Record
		err error
	)
	st := s.deps.Store
	switch {
	case st != nil && strings.TrimSpace(sessionID) != "":
		rec, a, err = st.Restore(ctx, sessionID)
		if errors.Is(err, session.ErrNotFound) {
			c.notice("board.session.expired", nil)
			rec, a, err = c.createSession(ctx, o)
		}
	case st != nil:
		rec, a, err = c.createSession(ctx, o)
	default:
		a, err = game.Replay(s.deps.Engine, s.startFEN(), nil)
	}
	if err != nil {
		return nil, err
	}
	if rec != nil {
		c.sessionID = rec.ID
		if parsed, perr := board.ParseColor(rec.Orientation); perr == nil {
			o = parsed
		}
	}
	ctrl := c.install(a, o)
	if rec != nil && rec.PuzzleID != "" {
		c.restorePuzzle(ctx, ctrl, rec)
	}
	return c, nil
}

func (c *conn) createSession(ctx context.Context, o board.Orientation) (*session.Record, *game.Adapter, error) {
	rec, err := c.srv.deps.Store.Create(ctx, c.srv.startFEN(), o.String(), "")
	if err != nil {
		return nil, nil, err
	}
	a, err := game.Replay(c.srv.deps.Engine, rec.InitialFEN, nil)
	return rec, a, err
}

// install builds a controller around a and makes it current.
func (c *conn) install(a *game.Adapter, o board.Orientation) *interaction.Controller {
	opts := c.srv.deps.Controller
	opts.Orientation = o
	ctrl := interaction.NewController(a, opts, interaction.Hooks{
		OnMoveApplied:    c.onMoveApplied,
		OnInvalidAttempt: c.onInvalid,
		OnGameEnded:      c.onEnded,
		OnInvalidFEN:     c.onInvalidFEN,
		OnCue:            func(cue interaction.Cue) { c.send(Frame{Type: FrameCue, Cue: cue}) },
		OnChange:         c.markDirty,
	})
	c.ctrl.Store(ctrl)
	return ctrl
}

func (c *conn) controller() *interaction.Controller { return c.ctrl.Load() }

func (c *conn) serve(ctx context.Context, ws *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ws.Close(websocket.StatusNormalClosure, "")
	c.done = ctx.Done()

	go func() {
		if err := c.writeLoop(ctx, ws); err != nil && ctx.Err() == nil {
			obslog.L().Warn("board_ws_write_failed", zap.String("session_id", c.sessionID), zap.Error(err))
			cancel()
		}
	}()
	go func() {
		if err := c.pingLoop(ctx, ws); err != nil && ctx.Err() == nil {
			cancel()
		}
	}()

	c.send(Frame{Type: FrameSession, SessionID: c.sessionID, Orientation: c.controller().Orientation().String()})
	c.markDirty()
	if p := c.puzzleStatus(""); p != nil {
		c.send(Frame{Type: FramePuzzle, Puzzle: p})
	}

	for {
		var ev Event
		if err := wsjson.Read(ctx, ws, &ev); err != nil {
			return err
		}
		c.handle(ctx, ev)
	}
}

func (c *conn) writeLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.out:
			if f.Type == FrameState && f.State == nil {
				c.statePending.Store(false)
				f = c.snapshot()
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, ws, f)
			cancel()
			if err != nil {
				return fmt.Errorf("write %s frame: %w", f.Type, err)
			}
		}
	}
}

func (c *conn) pingLoop(ctx context.Context, ws *websocket.Conn) error {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := ws.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// send queues f, giving up once the connection is gone. Frames queued before
// serve starts wait in the buffer.
func (c *conn) send(f Frame) {
	select {
	case c.out <- f:
	case <-c.done:
	}
}

// markDirty queues one state frame; further changes before it is written
// collapse into it.
func (c *conn) markDirty() {
	if c.statePending.CompareAndSwap(false, true) {
		c.send(Frame{Type: FrameState})
	}
}

func (c *conn) snapshot() Frame {
	ctrl := c.controller()
	st := ctrl.State()
	f := Frame{
		Type:        FrameState,
		State:       &st,
		Pieces:      ctrl.Pieces(),
		Orientation: ctrl.Orientation().String(),
		SessionID:   c.sessionID,
	}
	if s, ok := ctrl.Session(); ok {
		f.Drag = &s
	}
	return f
}

func (c *conn) notice(key string, data any) {
	c.send(Frame{Type: FrameMessage, Message: c.srv.deps.Messages.Text(key, data)})
}

func (c *conn) fail(msg string) {
	c.send(Frame{Type: FrameError, Message: msg})
}

func (c *conn) colorName(col board.Color) string {
	return c.srv.deps.Messages.Text("board.color."+col.String(), nil)
}

func (c *conn) handle(ctx context.Context, ev Event) {
	ctrl := c.controller()
	switch ev.Type {
	case EventDown:
		ctrl.PointerDown(ev.point())
	case EventMove:
		ctrl.PointerMove(ev.point())
	case EventUp:
		ctrl.PointerUp(ev.point())
	case EventLeave:
		ctrl.PointerLeave()
	case EventEscape:
		ctrl.Escape()
	case EventClick:
		sq, err := ctrl.Grid().ParseSquare(ev.Square)
		if err != nil {
			c.fail(err.Error())
			return
		}
		ctrl.SelectOrMove(sq)
	case EventFlip:
		o := ctrl.Flip()
		c.persist(ctx, func(ctx context.Context, st *session.Store) error {
			return st.SetOrientation(ctx, c.sessionID, o.String())
		})
	case EventUndo:
		if ctrl.Undo() {
			c.dropPuzzle(ctx, ctrl)
			c.saveLine(ctx, ctrl)
		}
	case EventReset:
		c.dropPuzzle(ctx, ctrl)
		if ev.FEN != "" {
			_ = ctrl.Reset(ev.FEN)
		} else {
			_ = ctrl.Reset(c.srv.startFEN())
		}
		c.saveLine(ctx, ctrl)
	case EventLoad:
		c.dropPuzzle(ctx, ctrl)
		_ = ctrl.Load(ev.FEN)
		c.saveLine(ctx, ctrl)
	case EventPuzzle:
		c.startPuzzle(ctx, ctrl, ev)
	case EventHint:
		c.hint()
	default:
		c.fail(fmt.Sprintf("unknown event type %q", ev.Type))
	}
	c.runFollowUps(ctx)
}

func (c *conn) runFollowUps(ctx context.Context) {
	for len(c.followUps) > 0 {
		f := c.followUps[0]
		c.followUps = c.followUps[1:]
		f(ctx)
	}
}

func (c *conn) later(f func(ctx context.Context)) { c.followUps = append(c.followUps, f) }

func (c *conn) onMoveApplied(rec game.MoveRecord) {
	key := "board.move.applied"
	if rec.Piece.Color == board.Black {
		key = "board.move.applied_black"
	}
	c.notice(key, map[string]any{"No": (rec.Ply + 1) / 2, "SAN": rec.SAN})
	if c.srv.deps.Store != nil {
		c.later(func(ctx context.Context) { c.appendMove(ctx, rec) })
	}
	if s := c.currentSolver(); s != nil {
		c.advancePuzzle(s, rec)
	}
}

func (c *conn) onInvalid(r interaction.Reason) {
	st := c.controller().State()
	c.send(Frame{
		Type:    FrameInvalid,
		Reason:  r,
		Message: c.srv.deps.Messages.Text("board.invalid."+string(r), map[string]any{"Color": c.colorName(st.CurrentPlayer)}),
	})
	if r == interaction.ReasonRejected && c.currentSolver() != nil {
		c.notice("puzzle.incorrect", nil)
		c.send(Frame{Type: FramePuzzle, Puzzle: c.puzzleStatus(puzzle.VerdictIncorrect)})
	}
}

func (c *conn) onEnded(res game.Result) {
	c.send(Frame{Type: FrameEnded, Result: &res, Message: c.statusText(res)})
}

func (c *conn) statusText(res game.Result) string {
	data := map[string]any{}
	if res.Winner != "" {
		if col, err := board.ParseColor(res.Winner); err == nil {
			data["Winner"] = c.colorName(col)
		}
	}
	if res.Reason != "" {
		data["Reason"] = c.srv.deps.Messages.Text("board.draw_reason."+res.Reason, nil)
	}
	return c.srv.deps.Messages.Text("board.status."+string(res.Status), data)
}

func (c *conn) onInvalidFEN(err error) {
	obslog.L().Info("board_invalid_fen", zap.String("session_id", c.sessionID), zap.Error(err))
	c.notice("board.fen.invalid", nil)
}

func (c *conn) persist(ctx context.Context, fn func(ctx context.Context, st *session.Store) error) {
	st := c.srv.deps.Store
	if st == nil || c.sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := fn(ctx, st); err != nil {
		obslog.L().Error("board_session_persist_failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

func (c *conn) saveLine(ctx context.Context, ctrl *interaction.Controller) {
	c.persist(ctx, func(ctx context.Context, st *session.Store) error {
		_, err := st.Save(ctx, c.sessionID, -1, ctrl.State())
		return err
	})
}

func (c *conn) appendMove(ctx context.Context, rec game.MoveRecord) {
	st := c.srv.deps.Store
	if st == nil || c.sessionID == "" {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	_, _, err := st.Append(sctx, c.sessionID, rec.Ply-1, rec.UCI)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrConflict), errors.Is(err, rules.ErrIllegalMove), errors.Is(err, game.ErrGameOver):
		// 다른 연결이 먼저 수를 둠: 저장된 기보로 다시 맞춤
		c.resync(sctx)
	default:
		obslog.L().Error("board_session_append_failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

// resync replaces the controller with one rebuilt from the stored line.
func (c *conn) resync(ctx context.Context) {
	rec, a, err := c.srv.deps.Store.Restore(ctx, c.sessionID)
	if err != nil {
		obslog.L().Error("board_session_resync_failed", zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}
	o := c.controller().Orientation()
	if parsed, perr := board.ParseColor(rec.Orientation); perr == nil {
		o = parsed
	}
	c.setSolver(nil)
	c.install(a, o)
	c.notice("board.session.conflict", nil)
	c.markDirty()
}

func (c *conn) currentSolver() *puzzle.Solver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solver
}

func (c *conn) setSolver(s *puzzle.Solver) {
	c.mu.Lock()
	c.solver = s
	c.mu.Unlock()
}

func (c *conn) startPuzzle(ctx context.Context, ctrl *interaction.Controller, ev Event) {
	repo := c.srv.deps.Puzzles
	if repo == nil {
		c.notice("puzzle.unavailable", nil)
		return
	}
	var (
		p   *puzzle.Puzzle
		err error
	)
	if id := strings.TrimSpace(ev.Puzzle); id != "" {
		p, err = repo.ByID(ctx, id)
	} else {
		q := puzzle.Query{}
		if ev.Theme != "" {
			q.Themes = []string{ev.Theme}
		}
		p, err = repo.Random(ctx, q)
	}
	if errors.Is(err, puzzle.ErrNotFound) {
		c.notice("puzzle.empty", nil)
		return
	}
	if err != nil {
		obslog.L().Error("puzzle_fetch_failed", zap.String("puzzle_id", ev.Puzzle), zap.Error(err))
		c.fail(err.Error())
		return
	}
	solver, err := puzzle.NewSolver(c.srv.deps.Engine, *p)
	if err != nil {
		obslog.L().Warn("puzzle_invalid", zap.String("puzzle_id", p.ID), zap.Error(err))
		c.fail(err.Error())
		return
	}

	if err := ctrl.Load(p.FEN); err != nil {
		return
	}
	ctrl.SetOrientation(solver.Player())
	ctrl.SetMoveFilter(solver.Allow)
	c.setSolver(solver)
	c.saveLine(ctx, ctrl)
	c.persist(ctx, func(ctx context.Context, st *session.Store) error {
		if err := st.SetOrientation(ctx, c.sessionID, solver.Player().String()); err != nil {
			return err
		}
		return st.SetPuzzle(ctx, c.sessionID, p.ID)
	})

	obslog.L().Info("puzzle_started", zap.String("session_id", c.sessionID), zap.String("puzzle_id", p.ID))
	c.notice("puzzle.loaded", map[string]any{"ID": p.ID, "Rating": p.Rating, "Color": c.colorName(solver.Player())})
	c.send(Frame{Type: FramePuzzle, Puzzle: c.puzzleStatus("")})
}

// restorePuzzle rebuilds solver progress for a reconnecting session.
func (c *conn) restorePuzzle(ctx context.Context, ctrl *interaction.Controller, rec *session.Record) {
	repo := c.srv.deps.Puzzles
	if repo == nil {
		return
	}
	p, err := repo.ByID(ctx, rec.PuzzleID)
	if err != nil || strings.TrimSpace(p.FEN) != strings.TrimSpace(rec.InitialFEN) {
		return
	}
	solver, err := puzzle.NewSolver(c.srv.deps.Engine, *p)
	if err != nil {
		return
	}
	for _, m := range ctrl.State().MoveHistory {
		if solver.Advance(m) == puzzle.VerdictIncorrect {
			return
		}
	}
	ctrl.SetMoveFilter(solver.Allow)
	c.setSolver(solver)
}

func (c *conn) dropPuzzle(ctx context.Context, ctrl *interaction.Controller) {
	if c.currentSolver() == nil {
		return
	}
	c.setSolver(nil)
	ctrl.SetMoveFilter(nil)
	c.persist(ctx, func(ctx context.Context, st *session.Store) error {
		return st.SetPuzzle(ctx, c.sessionID, "")
	})
}

func (c *conn) advancePuzzle(s *puzzle.Solver, rec game.MoveRecord) {
	v := s.Advance(rec)
	switch v {
	case puzzle.VerdictComplete:
		c.notice("puzzle.complete", nil)
	case puzzle.VerdictCorrect:
		if rec.Piece.Color == s.Player() {
			c.notice("puzzle.correct", nil)
		}
		c.later(func(context.Context) { c.reply(s) })
	case puzzle.VerdictIncorrect:
		return
	}
	c.send(Frame{Type: FramePuzzle, Puzzle: c.puzzleStatus(v)})
}

// reply plays the opponent's scripted answer.
func (c *conn) reply(s *puzzle.Solver) {
	if c.currentSolver() != s {
		return
	}
	ctrl := c.controller()
	mv, ok := s.Reply(ctrl.State())
	if !ok {
		return
	}
	if err := ctrl.Play(mv); err != nil {
		obslog.L().Warn("puzzle_reply_failed", zap.String("uci", mv.UCI()), zap.Error(err))
	}
}

func (c *conn) hint() {
	s := c.currentSolver()
	if s == nil {
		c.notice("puzzle.unavailable", nil)
		return
	}
	if mv, ok := s.Hint(); ok {
		c.notice("puzzle.hint", map[string]any{"Move": mv})
	}
}

func (c *conn) puzzleStatus(v puzzle.Verdict) *PuzzleStatus {
	s := c.currentSolver()
	if s == nil {
		return nil
	}
	p := s.Puzzle()
	done, total, mistakes := s.Progress()
	return &PuzzleStatus{
		ID:       p.ID,
		Rating:   p.Rating,
		Themes:   p.Themes,
		Player:   s.Player().String(),
		Done:     done,
		Total:    total,
		Mistakes: mistakes,
		Verdict:  string(v),
	}
}
