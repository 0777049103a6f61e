package interaction

import (
	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelecting Phase = "selecting"
	PhaseDragging  Phase = "dragging"
)

// Reason explains why a gesture did not produce a move. Reasons are reported
// through OnInvalidAttempt and never returned as errors.
type Reason string

const (
	ReasonIllegalMove Reason = "illegal_move"
	ReasonOwnPiece    Reason = "own_piece"
	ReasonGameOver    Reason = "game_over"
	ReasonNotYourTurn Reason = "not_your_turn"
	// ReasonRejected is reported when a MoveFilter vetoes an otherwise legal move.
	ReasonRejected Reason = "rejected"
)

// Cue is an audio/visual trigger. Playback belongs to the host.
type Cue string

const (
	CueSelect  Cue = "select"
	CueMove    Cue = "move"
	CueCapture Cue = "capture"
	CueCheck   Cue = "check"
	CueInvalid Cue = "invalid"
	CueGameEnd Cue = "game_end"
)

// DragSession is the read model for highlights and the ghost piece. It exists
// only while a piece is selected or dragged.
type DragSession struct {
	Piece        game.Piece     `json:"piece"`
	From         board.Square   `json:"from"`
	ValidTargets []board.Square `json:"validTargets"`
	// Origin and Cursor are in board percent (0..100).
	Origin board.Point `json:"origin"`
	Cursor board.Point `json:"cursor"`
	Phase  Phase       `json:"phase"`
}

func (s DragSession) CanReach(sq board.Square) bool {
	for _, t := range s.ValidTargets {
		if t == sq {
			return true
		}
	}
	return false
}

func (s DragSession) copy() DragSession {
	c := s
	c.ValidTargets = append([]board.Square(nil), s.ValidTargets...)
	return c
}

// press tracks a pointer-down until the matching pointer-up.
type press struct {
	square board.Square
	origin board.Point
	// wasSelected is false when this press created the selection, so the
	// release must not deselect it again.
	wasSelected bool
}
