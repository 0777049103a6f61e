package interaction

import (
	"sort"
	"sync"
	"time"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
)

// Timer is the part of *time.Timer the pool needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Tests swap in a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemScheduler uses time.AfterFunc.
var SystemScheduler Scheduler = clockScheduler{}

const flightOpacity = 0.6

// VisualPiece is the decorative state of one piece. It may lag GameState
// while animations run; GameState stays authoritative.
type VisualPiece struct {
	ID        string          `json:"id"`
	Type      board.PieceType `json:"type"`
	Color     board.Color     `json:"color"`
	Square    board.Square    `json:"square"`
	Pos       board.Point     `json:"pos"`
	Opacity   float64         `json:"opacity"`
	Scale     float64         `json:"scale"`
	InFlight  bool            `json:"inFlight,omitempty"`
	Capturing bool            `json:"capturing,omitempty"`
	Lifted    bool            `json:"lifted,omitempty"`

	gen uint64
}

// Pool keeps one VisualPiece per piece id. Animation timers fire on their own
// goroutines; a timer for a piece that is gone or has been touched since is
// dropped.
type Pool struct {
	mu          sync.Mutex
	grid        board.Grid
	orientation board.Orientation
	pieces      map[string]*VisualPiece
	sched       Scheduler
	capture     time.Duration
	flight      time.Duration
	gen         uint64
	onChange    func()
}

func NewPool(grid board.Grid, o board.Orientation, sched Scheduler, capture, flight time.Duration) *Pool {
	if sched == nil {
		sched = SystemScheduler
	}
	return &Pool{
		grid:        grid,
		orientation: o,
		pieces:      map[string]*VisualPiece{},
		sched:       sched,
		capture:     capture,
		flight:      flight,
	}
}

// SetOnChange registers f, called without the pool lock after a timer changes
// visual state.
func (p *Pool) SetOnChange(f func()) {
	p.mu.Lock()
	p.onChange = f
	p.mu.Unlock()
}

func (p *Pool) center(sq board.Square) board.Point {
	pt, err := p.grid.SquareToPixel(sq, p.orientation)
	if err != nil {
		return board.Point{X: -1, Y: -1}
	}
	return pt
}

func (p *Pool) nextGen() uint64 {
	p.gen++
	return p.gen
}

// Reset drops every piece (pending timers become no-ops) and places the
// snapshot without animation.
func (p *Pool) Reset(snap game.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pieces = make(map[string]*VisualPiece, snap.Len())
	p.syncLocked(snap)
}

func (p *Pool) syncLocked(snap game.Snapshot) {
	live := make(map[string]bool, snap.Len())
	for _, pp := range snap.Pieces() {
		live[pp.Piece.ID] = true
		vp, ok := p.pieces[pp.Piece.ID]
		if !ok {
			vp = &VisualPiece{ID: pp.Piece.ID, Opacity: 1, Scale: 1}
			p.pieces[vp.ID] = vp
		}
		vp.Type, vp.Color, vp.Square = pp.Piece.Type, pp.Piece.Color, pp.Square
		if !vp.InFlight {
			vp.Pos, vp.Opacity, vp.Scale = p.center(pp.Square), 1, 1
		}
	}
	for id, vp := range p.pieces {
		if !live[id] && !vp.Capturing {
			delete(p.pieces, id)
		}
	}
}

// Sync places pieces at their snapshot squares without animation.
func (p *Pool) Sync(snap game.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, vp := range p.pieces {
		if vp.Capturing {
			delete(p.pieces, id)
			continue
		}
		vp.InFlight, vp.Lifted = false, false
		vp.gen = p.nextGen()
	}
	p.syncLocked(snap)
}

// Animate applies a move: the captured piece fades and shrinks before it is
// removed, moving pieces fly to their destination at reduced opacity. Nothing
// here blocks; a new move may start while timers are pending.
func (p *Pool) Animate(rec game.MoveRecord, snap game.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rec.Captured != nil {
		if vp, ok := p.pieces[rec.Captured.PieceID]; ok {
			vp.Capturing, vp.InFlight, vp.Lifted = true, false, false
			vp.Opacity, vp.Scale = 0, 0.1
			vp.gen = p.nextGen()
			p.after(p.capture, vp, func(vp *VisualPiece) {
				delete(p.pieces, vp.ID)
			})
		}
	}

	if rec.PromotedID != "" {
		// pawn hands over to the promoted piece at the destination
		delete(p.pieces, rec.PieceID)
		p.fly(rec.PromotedID, rec.To)
	} else {
		p.fly(rec.PieceID, rec.To)
	}
	if rec.Castle && rec.RookID != "" {
		p.fly(rec.RookID, rec.RookTo)
	}
	p.syncLocked(snap)
}

func (p *Pool) fly(id string, to board.Square) {
	vp, ok := p.pieces[id]
	if !ok {
		vp = &VisualPiece{ID: id, Opacity: 1, Scale: 1}
		p.pieces[id] = vp
	}
	vp.Square, vp.Pos, vp.Lifted = to, p.center(to), false
	vp.InFlight, vp.Opacity, vp.Scale = true, flightOpacity, 1
	vp.gen = p.nextGen()
	p.after(p.flight, vp, func(vp *VisualPiece) {
		vp.InFlight, vp.Opacity = false, 1
	})
}

// after schedules f for vp. f runs under the pool lock and only if vp is still
// in the pool and untouched since scheduling.
func (p *Pool) after(d time.Duration, vp *VisualPiece, f func(vp *VisualPiece)) {
	gen := vp.gen
	p.sched.AfterFunc(d, func() {
		p.mu.Lock()
		cur, ok := p.pieces[vp.ID]
		if !ok || cur != vp || cur.gen != gen {
			p.mu.Unlock()
			return
		}
		f(cur)
		notify := p.onChange
		p.mu.Unlock()
		if notify != nil {
			notify()
		}
	})
}

// Lift marks the piece as following the pointer.
func (p *Pool) Lift(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vp, ok := p.pieces[id]; ok {
		vp.Lifted = true
	}
}

// Drop returns a lifted piece to its square.
func (p *Pool) Drop(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vp, ok := p.pieces[id]; ok && vp.Lifted {
		vp.Lifted = false
		vp.Pos = p.center(vp.Square)
	}
}

// Flip redraws every piece for the new orientation.
func (p *Pool) Flip(o board.Orientation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orientation = o
	for _, vp := range p.pieces {
		vp.Pos = p.center(vp.Square)
	}
}

func (p *Pool) Get(id string) (VisualPiece, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vp, ok := p.pieces[id]
	if !ok {
		return VisualPiece{}, false
	}
	return *vp, true
}

// Pieces returns copies sorted by id.
func (p *Pool) Pieces() []VisualPiece {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]VisualPiece, 0, len(p.pieces))
	for _, vp := range p.pieces {
		out = append(out, *vp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
