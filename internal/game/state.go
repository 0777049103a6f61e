package game

import (
	"encoding/json"
	"sort"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/rules"
)

type MoveRequest = rules.MoveRequest

// Piece is a board piece with a stable identity. The ID survives moves and is
// replaced only on promotion.
type Piece struct {
	ID    string          `json:"id"`
	Type  board.PieceType `json:"type"`
	Color board.Color     `json:"color"`
}

func (p Piece) Kind() board.Piece { return board.Piece{Type: p.Type, Color: p.Color} }

type PlacedPiece struct {
	Square board.Square `json:"square"`
	Piece  Piece        `json:"piece"`
}

// Snapshot maps every square of the grid to a piece or nothing. It is never
// mutated after construction, so copies share storage safely.
type Snapshot struct {
	size    int
	squares map[board.Square]Piece
}

func (s Snapshot) Size() int { return s.size }

func (s Snapshot) At(sq board.Square) (Piece, bool) {
	p, ok := s.squares[sq]
	return p, ok
}

// Find returns the square holding the piece with the given id.
func (s Snapshot) Find(id string) (board.Square, bool) {
	for sq, p := range s.squares {
		if p.ID == id {
			return sq, true
		}
	}
	return "", false
}

// Pieces lists occupied squares in a1..h8 order.
func (s Snapshot) Pieces() []PlacedPiece {
	out := make([]PlacedPiece, 0, len(s.squares))
	for _, sq := range (board.Grid{Size: s.size}).Squares() {
		if p, ok := s.squares[sq]; ok {
			out = append(out, PlacedPiece{Square: sq, Piece: p})
		}
	}
	return out
}

func (s Snapshot) Len() int { return len(s.squares) }

// Placement renders the snapshot as the first FEN field.
func (s Snapshot) Placement() string {
	kinds := make(map[board.Square]board.Piece, len(s.squares))
	for sq, p := range s.squares {
		kinds[sq] = p.Kind()
	}
	return rules.FormatPlacement(kinds, board.Grid{Size: s.size})
}

func (s Snapshot) clone() map[board.Square]Piece {
	out := make(map[board.Square]Piece, len(s.squares))
	for k, v := range s.squares {
		out[k] = v
	}
	return out
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	m := make(map[string]Piece, len(s.squares))
	for sq, p := range s.squares {
		m[string(sq)] = p
	}
	return json.Marshal(m)
}

type CapturedPiece struct {
	PieceID string          `json:"pieceId"`
	Color   board.Color     `json:"color"`
	Type    board.PieceType `json:"type"`
	Square  board.Square    `json:"capturedOnSquare"`
	Ply     int             `json:"ply"`
}

type MoveRecord struct {
	Ply       int             `json:"ply"`
	From      board.Square    `json:"from"`
	To        board.Square    `json:"to"`
	UCI       string          `json:"uci"`
	SAN       string          `json:"san"`
	PieceID   string          `json:"pieceId"`
	Piece     board.Piece     `json:"piece"`
	Promotion board.PieceType `json:"promotion,omitempty"`
	// PromotedID is the id of the piece created by promotion.
	PromotedID string         `json:"promotedId,omitempty"`
	Captured   *CapturedPiece `json:"captured,omitempty"`
	Castle     bool           `json:"castle,omitempty"`
	RookID     string         `json:"rookId,omitempty"`
	RookFrom   board.Square   `json:"rookFrom,omitempty"`
	RookTo     board.Square   `json:"rookTo,omitempty"`
	EnPassant  bool           `json:"enPassant,omitempty"`
	Check      bool           `json:"check,omitempty"`
	FENBefore  string         `json:"fenBefore"`
	FENAfter   string         `json:"fenAfter"`
}

type Result struct {
	Status rules.Status `json:"status"`
	// Winner is empty for draws and stalemates.
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type GameState struct {
	ID            string          `json:"id"`
	Engine        string          `json:"engine"`
	GridSize      int             `json:"gridSize"`
	Snapshot      Snapshot        `json:"snapshot"`
	CurrentPlayer board.Color     `json:"currentPlayer"`
	Status        rules.Status    `json:"status"`
	DrawReason    string          `json:"drawReason,omitempty"`
	LastMove      *MoveRecord     `json:"lastMove,omitempty"`
	MoveHistory   []MoveRecord    `json:"moveHistory"`
	Captured      []CapturedPiece `json:"captured"`
	FEN           string          `json:"fen"`
	InitialFEN    string          `json:"initialFen"`
	HalfmoveClock int             `json:"halfmoveClock"`
	Result        *Result         `json:"result,omitempty"`
}

func (s GameState) Terminal() bool { return s.Status.Terminal() }

// MovesUCI lists the history in UCI form.
func (s GameState) MovesUCI() []string {
	out := make([]string, len(s.MoveHistory))
	for i, m := range s.MoveHistory {
		out[i] = m.UCI
	}
	return out
}

// clone copies the slices and pointers a consumer could otherwise alias.
func (s GameState) clone() GameState {
	c := s
	c.MoveHistory = append(make([]MoveRecord, 0, len(s.MoveHistory)), s.MoveHistory...)
	c.Captured = append(make([]CapturedPiece, 0, len(s.Captured)), s.Captured...)
	c.LastMove = nil
	if n := len(c.MoveHistory); n > 0 {
		c.LastMove = &c.MoveHistory[n-1]
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	for i := range c.MoveHistory {
		if cp := c.MoveHistory[i].Captured; cp != nil {
			v := *cp
			c.MoveHistory[i].Captured = &v
		}
	}
	return c
}

func sortedSquares(m map[board.Square]Piece) []board.Square {
	out := make([]board.Square, 0, len(m))
	for sq := range m {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
