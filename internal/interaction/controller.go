// Package interaction turns pointer gestures into moves. One Controller serves
// one board: it recognizes click-to-move and press-drag-release on the same
// pointer stream, keeps the DragSession read model for highlights and the
// ghost piece, and drives the decorative piece pool.
//
// Rejected gestures never surface as errors. They are reported through
// Hooks.OnInvalidAttempt together with an invalid cue, and GameState is left
// as it was.
package interaction

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/obslog"
)

// PromotionPicker chooses the piece for a pawn reaching the last rank.
type PromotionPicker func(from, to board.Square, color board.Color) board.PieceType

// MoveFilter can veto a legal move before it reaches the adapter (puzzle mode).
type MoveFilter func(mv game.MoveRequest, st game.GameState) bool

type Options struct {
	Orientation board.Orientation
	// BoardPixels is the rendered board edge; DragThreshold is in pixels and is
	// converted to board percent with it.
	BoardPixels      float64
	DragThreshold    float64
	CaptureAnimation time.Duration
	MoveAnimation    time.Duration
	Scheduler        Scheduler
	Promotion        PromotionPicker
}

func DefaultOptions() Options {
	return Options{
		Orientation:      board.White,
		BoardPixels:      480,
		DragThreshold:    5,
		CaptureAnimation: 180 * time.Millisecond,
		MoveAnimation:    250 * time.Millisecond,
		Scheduler:        SystemScheduler,
		Promotion:        func(board.Square, board.Square, board.Color) board.PieceType { return board.Queen },
	}
}

// Hooks are called after the controller lock is released, in the order the
// events happened. A hook may call back into the controller.
type Hooks struct {
	OnMoveApplied    func(game.MoveRecord)
	OnInvalidAttempt func(Reason)
	OnGameEnded      func(game.Result)
	OnInvalidFEN     func(error)
	OnCue            func(Cue)
	OnChange         func()
}

type Controller struct {
	mu          sync.Mutex
	adapter     *game.Adapter
	grid        board.Grid
	opts        Options
	hooks       Hooks
	orientation board.Orientation
	session     *DragSession
	press       *press
	filter      MoveFilter
	pool        *Pool
	queued      []func()
}

func NewController(adapter *game.Adapter, opts Options, hooks Hooks) *Controller {
	def := DefaultOptions()
	if opts.BoardPixels <= 0 {
		opts.BoardPixels = def.BoardPixels
	}
	if opts.DragThreshold <= 0 {
		opts.DragThreshold = def.DragThreshold
	}
	if opts.CaptureAnimation <= 0 {
		opts.CaptureAnimation = def.CaptureAnimation
	}
	if opts.MoveAnimation <= 0 {
		opts.MoveAnimation = def.MoveAnimation
	}
	if opts.Scheduler == nil {
		opts.Scheduler = def.Scheduler
	}
	if opts.Promotion == nil {
		opts.Promotion = def.Promotion
	}
	c := &Controller{
		adapter:     adapter,
		grid:        adapter.Grid(),
		opts:        opts,
		hooks:       hooks,
		orientation: opts.Orientation,
	}
	c.pool = NewPool(c.grid, c.orientation, opts.Scheduler, opts.CaptureAnimation, opts.MoveAnimation)
	c.pool.SetOnChange(hooks.OnChange)
	c.pool.Reset(adapter.State().Snapshot)
	return c
}

// run executes fn under the lock and then dispatches queued hooks.
func (c *Controller) run(fn func()) {
	c.mu.Lock()
	fn()
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()
	for _, f := range queued {
		f()
	}
}

func (c *Controller) emitCue(cue Cue) {
	if h := c.hooks.OnCue; h != nil {
		c.queued = append(c.queued, func() { h(cue) })
	}
}

func (c *Controller) emitChange() {
	if h := c.hooks.OnChange; h != nil {
		c.queued = append(c.queued, h)
	}
}

func (c *Controller) reject(r Reason) {
	obslog.L().Debug("board_invalid_attempt", zap.String("reason", string(r)))
	if h := c.hooks.OnInvalidAttempt; h != nil {
		c.queued = append(c.queued, func() { h(r) })
	}
	c.emitCue(CueInvalid)
}

func (c *Controller) thresholdPct() float64 {
	return c.opts.DragThreshold / c.opts.BoardPixels * 100
}

func (c *Controller) selectPiece(sq board.Square, pc game.Piece, at board.Point) {
	c.clear()
	c.session = &DragSession{
		Piece:        pc,
		From:         sq,
		ValidTargets: c.adapter.ValidMoves(sq),
		Origin:       at,
		Cursor:       at,
		Phase:        PhaseSelecting,
	}
	c.emitCue(CueSelect)
	c.emitChange()
}

func (c *Controller) startDragging(at board.Point) {
	c.session.Phase = PhaseDragging
	c.session.Cursor = at
	c.pool.Lift(c.session.Piece.ID)
	c.emitChange()
}

// clear returns to Idle. A lifted piece goes back to its square.
func (c *Controller) clear() {
	if c.session != nil && c.session.Phase == PhaseDragging {
		c.pool.Drop(c.session.Piece.ID)
	}
	c.session, c.press = nil, nil
}

// drop clears the gesture and reports the change when a selection was showing.
func (c *Controller) drop() {
	had := c.session != nil
	c.clear()
	if had {
		c.emitChange()
	}
}

// click handles a completed click on sq: select, deselect, reselect or move.
func (c *Controller) click(sq board.Square, at board.Point) {
	st := c.adapter.State()
	if st.Terminal() {
		c.drop()
		c.reject(ReasonGameOver)
		return
	}
	pc, occupied := st.Snapshot.At(sq)
	friendly := occupied && pc.Color == st.CurrentPlayer
	s := c.session
	switch {
	case s == nil && friendly:
		c.selectPiece(sq, pc, at)
	case s == nil && occupied:
		c.reject(ReasonNotYourTurn)
	case s == nil:
	case sq == s.From:
		c.clear()
		c.emitChange()
	case friendly:
		c.selectPiece(sq, pc, at)
	default:
		c.attempt(st, *s, sq)
	}
}

// attempt tries s.From -> to and always ends in Idle.
func (c *Controller) attempt(st game.GameState, s DragSession, to board.Square) {
	c.clear()
	c.emitChange()
	if !s.CanReach(to) {
		c.reject(ReasonIllegalMove)
		return
	}
	mv := game.MoveRequest{From: s.From, To: to}
	if c.promotes(s.Piece, to) {
		mv.Promotion = c.opts.Promotion(s.From, to, s.Piece.Color)
	}
	if c.filter != nil && !c.filter(mv, st) {
		c.reject(ReasonRejected)
		return
	}
	_ = c.commit(mv)
}

// commit applies mv through the adapter and queues the resulting effects.
// Failures are reported as invalid attempts and returned.
func (c *Controller) commit(mv game.MoveRequest) error {
	next, err := c.adapter.ApplyMove(mv)
	switch {
	case errors.Is(err, game.ErrGameOver):
		c.reject(ReasonGameOver)
		return err
	case err != nil:
		c.reject(ReasonIllegalMove)
		return err
	}

	rec := *next.LastMove
	c.pool.Animate(rec, next.Snapshot)
	if h := c.hooks.OnMoveApplied; h != nil {
		c.queued = append(c.queued, func() { h(rec) })
	}
	if rec.Captured != nil {
		c.emitCue(CueCapture)
	} else {
		c.emitCue(CueMove)
	}
	if next.Terminal() {
		c.emitCue(CueGameEnd)
		if h := c.hooks.OnGameEnded; h != nil && next.Result != nil {
			res := *next.Result
			c.queued = append(c.queued, func() { h(res) })
		}
	} else if rec.Check {
		c.emitCue(CueCheck)
	}
	c.emitChange()
	return nil
}

func (c *Controller) promotes(pc game.Piece, to board.Square) bool {
	if pc.Type != board.Pawn {
		return false
	}
	_, r, err := c.grid.Coords(to)
	if err != nil {
		return false
	}
	if pc.Color == board.White {
		return r == c.grid.Size-1
	}
	return r == 0
}

func (c *Controller) endDrag(target *board.Square) {
	s := c.session
	if s == nil || s.Phase != PhaseDragging {
		return
	}
	if target == nil || *target == s.From {
		c.clear()
		c.emitChange()
		return
	}
	st := c.adapter.State()
	if st.Terminal() {
		c.clear()
		c.emitChange()
		c.reject(ReasonGameOver)
		return
	}
	if pc, ok := st.Snapshot.At(*target); ok && pc.Color == s.Piece.Color {
		c.clear()
		c.emitChange()
		c.reject(ReasonOwnPiece)
		return
	}
	c.attempt(st, *s, *target)
}

// SelectOrMove is a completed click on sq.
func (c *Controller) SelectOrMove(sq board.Square) {
	c.run(func() {
		at, err := c.grid.SquareToPixel(sq, c.orientation)
		if err != nil {
			return
		}
		c.click(sq, at)
	})
}

// StartDrag begins dragging the piece on sq. It returns false, and creates no
// session, unless sq holds a piece of the side to move in a live game.
func (c *Controller) StartDrag(sq board.Square, at board.Point) bool {
	started := false
	c.run(func() {
		st := c.adapter.State()
		pc, ok := st.Snapshot.At(sq)
		switch {
		case st.Terminal():
			c.reject(ReasonGameOver)
		case !ok:
		case pc.Color != st.CurrentPlayer:
			c.reject(ReasonNotYourTurn)
		default:
			c.selectPiece(sq, pc, at)
			c.startDragging(at)
			started = true
		}
	})
	return started
}

func (c *Controller) UpdateDragPosition(at board.Point) {
	c.run(func() {
		if c.session != nil && c.session.Phase == PhaseDragging {
			c.session.Cursor = at
			c.emitChange()
		}
	})
}

// EndDrag drops the dragged piece on target; nil cancels.
func (c *Controller) EndDrag(target *board.Square) {
	c.run(func() { c.endDrag(target) })
}

// Play applies mv without a gesture (scripted replies, remote moves). Any
// selection is dropped first; the move filter does not apply.
func (c *Controller) Play(mv game.MoveRequest) error {
	var err error
	c.run(func() {
		if c.session != nil {
			c.clear()
			c.emitChange()
		}
		err = c.commit(mv)
	})
	return err
}

// CancelDrag drops any selection or drag without side effects.
func (c *Controller) CancelDrag() {
	c.run(func() {
		if c.session != nil {
			c.clear()
			c.emitChange()
		}
	})
}

// PointerDown starts a gesture at a board percent point.
func (c *Controller) PointerDown(at board.Point) {
	c.run(func() {
		sq, ok := c.grid.PixelToSquare(at.X, at.Y, c.orientation)
		if !ok {
			return
		}
		s := c.session
		if s != nil && s.Phase == PhaseDragging {
			return
		}
		st := c.adapter.State()
		if st.Terminal() {
			c.drop()
			c.reject(ReasonGameOver)
			return
		}
		pc, occupied := st.Snapshot.At(sq)
		friendly := occupied && pc.Color == st.CurrentPlayer
		switch {
		case s == nil && friendly:
			c.selectPiece(sq, pc, at)
			c.press = &press{square: sq, origin: at}
		case s == nil && occupied:
			c.reject(ReasonNotYourTurn)
		case s == nil:
		case sq == s.From:
			s.Origin = at
			c.press = &press{square: sq, origin: at, wasSelected: true}
		case friendly:
			c.selectPiece(sq, pc, at)
			c.press = &press{square: sq, origin: at}
		default:
			c.press = &press{square: sq, origin: at}
		}
	})
}

// PointerMove turns a press on the selected piece into a drag once it passes
// the threshold, then tracks the cursor.
func (c *Controller) PointerMove(at board.Point) {
	c.run(func() {
		s := c.session
		if s == nil {
			return
		}
		if s.Phase == PhaseDragging {
			s.Cursor = at
			c.emitChange()
			return
		}
		if c.press == nil || c.press.square != s.From {
			return
		}
		if at.Dist(c.press.origin) > c.thresholdPct() {
			c.startDragging(at)
		}
	})
}

// PointerUp finishes the gesture: a drop when dragging, otherwise a click.
func (c *Controller) PointerUp(at board.Point) {
	c.run(func() {
		p := c.press
		c.press = nil
		s := c.session
		if s == nil {
			return
		}
		if s.Phase == PhaseDragging {
			var target *board.Square
			if sq, ok := c.grid.PixelToSquare(at.X, at.Y, c.orientation); ok {
				target = &sq
			}
			c.endDrag(target)
			return
		}
		if p == nil {
			return
		}
		switch {
		case p.square == s.From && p.wasSelected:
			c.clear()
			c.emitChange()
		case p.square == s.From:
			// first click of click-to-move; wait for the destination
		default:
			c.click(p.square, at)
		}
	})
}

// PointerLeave cancels a drag in progress. A plain selection survives.
func (c *Controller) PointerLeave() {
	c.run(func() {
		c.press = nil
		if c.session != nil && c.session.Phase == PhaseDragging {
			c.clear()
			c.emitChange()
		}
	})
}

func (c *Controller) Escape() { c.CancelDrag() }

// Flip swaps the orientation and redraws the pool.
func (c *Controller) Flip() board.Orientation {
	var o board.Orientation
	c.run(func() {
		c.orientation = c.orientation.Opposite()
		c.pool.Flip(c.orientation)
		o = c.orientation
		c.emitChange()
	})
	return o
}

func (c *Controller) SetOrientation(o board.Orientation) {
	c.run(func() {
		if o == c.orientation {
			return
		}
		c.orientation = o
		c.pool.Flip(o)
		c.emitChange()
	})
}

func (c *Controller) SetMoveFilter(f MoveFilter) {
	c.run(func() { c.filter = f })
}

func (c *Controller) Undo() bool {
	ok := false
	c.run(func() {
		c.clear()
		if ok = c.adapter.Undo(); ok {
			c.pool.Sync(c.adapter.State().Snapshot)
		}
		c.emitChange()
	})
	return ok
}

// Reset restarts from the start position or fen. An invalid fen falls back to
// the start position and is reported through OnInvalidFEN.
func (c *Controller) Reset(fen ...string) error {
	var err error
	c.run(func() {
		c.clear()
		err = c.adapter.Reset(fen...)
		c.reload(err)
	})
	return err
}

func (c *Controller) Load(fen string) error {
	var err error
	c.run(func() {
		c.clear()
		_, err = c.adapter.Load(fen)
		c.reload(err)
	})
	return err
}

func (c *Controller) reload(err error) {
	c.pool.Reset(c.adapter.State().Snapshot)
	if err != nil {
		if h := c.hooks.OnInvalidFEN; h != nil {
			c.queued = append(c.queued, func() { h(err) })
		}
	}
	c.emitChange()
}

func (c *Controller) State() game.GameState { return c.adapter.State() }

func (c *Controller) Adapter() *game.Adapter { return c.adapter }

func (c *Controller) Grid() board.Grid { return c.grid }

// Session returns a copy of the current DragSession, if any.
func (c *Controller) Session() (DragSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return DragSession{}, false
	}
	return c.session.copy(), true
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return PhaseIdle
	}
	return c.session.Phase
}

func (c *Controller) Orientation() board.Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

func (c *Controller) Pieces() []VisualPiece { return c.pool.Pieces() }

func (c *Controller) Piece(id string) (VisualPiece, bool) { return c.pool.Get(id) }
