package render

import (
	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/interaction"
	"github.com/park285/chessboard-core/internal/rules"
)

const (
	liftedOpacity = 0.35
	ghostOpacity  = 0.9
)

// Sprite is one drawn piece. Pos is the piece center in board percent.
type Sprite struct {
	Piece   board.Piece
	Pos     board.Point
	Opacity float64
	Scale   float64
}

type MoveHighlight struct {
	From board.Square
	To   board.Square
}

// Frame is everything needed to draw one picture of the board.
type Frame struct {
	GridSize    int
	Orientation board.Orientation
	Sprites     []Sprite
	LastMove    *MoveHighlight
	Selected    board.Square
	// Targets are drawn as dots, or rings when the square is occupied.
	Targets  []board.Square
	Occupied map[board.Square]bool
	Check    board.Square
	Ghost    *Sprite
}

// FromState draws the authoritative position with no interaction overlay.
func FromState(st game.GameState, o board.Orientation) Frame {
	g := board.Grid{Size: st.GridSize}
	f := Frame{GridSize: st.GridSize, Orientation: o, Occupied: map[board.Square]bool{}}
	for _, pp := range st.Snapshot.Pieces() {
		pos, err := g.SquareToPixel(pp.Square, o)
		if err != nil {
			continue
		}
		f.Occupied[pp.Square] = true
		f.Sprites = append(f.Sprites, Sprite{Piece: pp.Piece.Kind(), Pos: pos, Opacity: 1, Scale: 1})
	}
	decorate(&f, st)
	return f
}

// FromController draws the visual pool, so in-flight and fading pieces show
// where the animation currently has them, plus the selection and ghost.
func FromController(c *interaction.Controller) Frame {
	st := c.State()
	f := Frame{GridSize: st.GridSize, Orientation: c.Orientation(), Occupied: map[board.Square]bool{}}
	for _, vp := range c.Pieces() {
		sp := Sprite{
			Piece:   board.Piece{Type: vp.Type, Color: vp.Color},
			Pos:     vp.Pos,
			Opacity: vp.Opacity,
			Scale:   vp.Scale,
		}
		if vp.Lifted {
			sp.Opacity = liftedOpacity
		}
		f.Sprites = append(f.Sprites, sp)
	}
	for _, pp := range st.Snapshot.Pieces() {
		f.Occupied[pp.Square] = true
	}
	decorate(&f, st)

	if s, ok := c.Session(); ok {
		f.Selected = s.From
		f.Targets = s.ValidTargets
		if s.Phase == interaction.PhaseDragging {
			f.Ghost = &Sprite{Piece: s.Piece.Kind(), Pos: s.Cursor, Opacity: ghostOpacity, Scale: 1}
		}
	}
	return f
}

func decorate(f *Frame, st game.GameState) {
	if lm := st.LastMove; lm != nil {
		f.LastMove = &MoveHighlight{From: lm.From, To: lm.To}
	}
	if st.Status == rules.StatusCheck || st.Status == rules.StatusCheckmate {
		for _, pp := range st.Snapshot.Pieces() {
			if pp.Piece.Type == board.King && pp.Piece.Color == st.CurrentPlayer {
				f.Check = pp.Square
				break
			}
		}
	}
}
