package bridge

import (
	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/interaction"
)

// Inbound event types. Pointer coordinates are in board percent unless the
// event carries the container size, in which case they are pixels.
const (
	EventDown   = "down"
	EventMove   = "move"
	EventUp     = "up"
	EventLeave  = "leave"
	EventEscape = "escape"
	EventClick  = "click"
	EventFlip   = "flip"
	EventUndo   = "undo"
	EventReset  = "reset"
	EventLoad   = "load"
	EventPuzzle = "puzzle"
	EventHint   = "hint"
)

type Event struct {
	Type   string  `json:"type"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Square string  `json:"square,omitempty"`
	FEN    string  `json:"fen,omitempty"`
	// Puzzle selects a puzzle by id; empty asks for a random one.
	Puzzle string `json:"puzzle,omitempty"`
	Theme  string `json:"theme,omitempty"`
}

func (e Event) point() board.Point {
	p := board.Point{X: e.X, Y: e.Y}
	if e.Width > 0 || e.Height > 0 {
		return board.Percent(p, e.Width, e.Height)
	}
	return p
}

// Outbound frame types.
const (
	FrameState   = "state"
	FrameSession = "session"
	FrameCue     = "cue"
	FrameInvalid = "invalid"
	FrameEnded   = "ended"
	FrameMessage = "message"
	FramePuzzle  = "puzzle"
	FrameError   = "error"
)

type Frame struct {
	Type string `json:"type"`

	State       *game.GameState           `json:"state,omitempty"`
	Drag        *interaction.DragSession  `json:"drag,omitempty"`
	Pieces      []interaction.VisualPiece `json:"pieces,omitempty"`
	Orientation string                    `json:"orientation,omitempty"`
	SessionID   string                    `json:"sessionId,omitempty"`
	Cue         interaction.Cue           `json:"cue,omitempty"`
	Reason      interaction.Reason        `json:"reason,omitempty"`
	Result      *game.Result              `json:"result,omitempty"`
	Puzzle      *PuzzleStatus             `json:"puzzle,omitempty"`
	Message     string                    `json:"message,omitempty"`
}

type PuzzleStatus struct {
	ID       string   `json:"id"`
	Rating   int      `json:"rating"`
	Themes   []string `json:"themes,omitempty"`
	Player   string   `json:"player"`
	Done     int      `json:"done"`
	Total    int      `json:"total"`
	Mistakes int      `json:"mistakes"`
	Verdict  string   `json:"verdict,omitempty"`
}
