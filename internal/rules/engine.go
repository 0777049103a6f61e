package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chessboard-core/internal/board"
)

var (
	ErrInvalidFEN  = errors.New("invalid fen")
	ErrIllegalMove = errors.New("illegal move")
)

type Status string

const (
	StatusPlaying   Status = "playing"
	StatusCheck     Status = "check"
	StatusCheckmate Status = "checkmate"
	StatusStalemate Status = "stalemate"
	StatusDraw      Status = "draw"
)

// Terminal reports whether no further moves are accepted.
func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusStalemate || s == StatusDraw
}

// Draw reasons reported in Position.DrawReason.
const (
	DrawInsufficientMaterial = "insufficient_material"
	DrawFiftyMove            = "fifty_move"
	DrawThreefold            = "threefold_repetition"
)

// Engine is the rules capability the game adapter depends on. Implementations
// are stateless: every call takes the full position as FEN.
type Engine interface {
	Name() string
	GridSize() int
	// StartFEN is the position used when a load fails.
	StartFEN() string
	Validate(fen string) (*Position, error)
	LegalTargets(fen string, from board.Square) ([]board.Square, error)
	Apply(fen string, mv MoveRequest) (*Outcome, error)
}

type MoveRequest struct {
	From      board.Square    `json:"from"`
	To        board.Square    `json:"to"`
	Promotion board.PieceType `json:"promotion,omitempty"`
}

// UCI renders the request as long algebraic notation, e.g. "e7e8q".
func (m MoveRequest) UCI() string {
	s := string(m.From) + string(m.To)
	if l := m.Promotion.Letter(); l != 0 {
		s += string(l)
	}
	return s
}

// ParseUCI decodes "e2e4" / "e7e8q" against a grid. Ranks may be two digits on large grids.
func ParseUCI(s string, g board.Grid) (MoveRequest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var mv MoveRequest
	if n := len(s); n >= 5 && strings.IndexByte("qrbn", s[n-1]) >= 0 && s[n-2] >= '0' && s[n-2] <= '9' {
		mv.Promotion, _ = board.ParsePieceType(s[n-1:])
		s = s[:n-1]
	}
	// split at the second letter
	cut := -1
	for i := 1; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			cut = i
			break
		}
	}
	if cut < 0 {
		return MoveRequest{}, fmt.Errorf("%w: %q", ErrIllegalMove, s)
	}
	from, err := g.ParseSquare(s[:cut])
	if err != nil {
		return MoveRequest{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	to, err := g.ParseSquare(s[cut:])
	if err != nil {
		return MoveRequest{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	mv.From, mv.To = from, to
	return mv, nil
}

// Outcome is the result of a successful Apply.
type Outcome struct {
	Position *Position
	UCI      string
	SAN      string

	Piece     board.Piece
	Capture   bool
	Captured  board.Piece
	// CapturedOn differs from the destination only for en passant.
	CapturedOn board.Square
	EnPassant  bool
	Castle     bool
	RookFrom   board.Square
	RookTo     board.Square
	Promotion  board.PieceType
	Check      bool
}

// WithDefaultPromotion fills in a queen when a pawn reaches the last rank
// without an explicit choice.
func WithDefaultPromotion(prev *Position, mv MoveRequest) MoveRequest {
	if mv.Promotion != board.NoPieceType {
		return mv
	}
	pc, ok := prev.Pieces[mv.From]
	if !ok || pc.Type != board.Pawn {
		return mv
	}
	_, r, err := prev.Grid().Coords(mv.To)
	if err != nil {
		return mv
	}
	if (pc.Color == board.White && r == prev.Size-1) || (pc.Color == board.Black && r == 0) {
		mv.Promotion = board.Queen
	}
	return mv
}
