package rules

import (
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
	"github.com/park285/chessboard-core/internal/board"
)

// DragonEngine implements Engine on dragontoothmg's bitboard move generator.
// SAN strings come from SAN so both engines report identical notation.
type DragonEngine struct{}

func NewDragonEngine() *DragonEngine { return &DragonEngine{} }

func (e *DragonEngine) Name() string     { return "dragontooth" }
func (e *DragonEngine) GridSize() int    { return board.StandardSize }
func (e *DragonEngine) StartFEN() string { return StartFEN }

func (e *DragonEngine) load(fen string) (b dragontoothmg.Board, err error) {
	fen = strings.TrimSpace(fen)
	if err := CheckFEN(fen); err != nil {
		return b, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidFEN, r)
		}
	}()
	return dragontoothmg.ParseFen(fen), nil
}

func (e *DragonEngine) Validate(fen string) (*Position, error) {
	b, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	return e.position(&b, fen)
}

func (e *DragonEngine) position(b *dragontoothmg.Board, fen string) (*Position, error) {
	pos, err := ParseFEN(fen, board.Standard)
	if err != nil {
		return nil, err
	}
	pos.InCheck = b.OurKingInCheck()
	classify(pos, len(b.GenerateLegalMoves()), InsufficientMaterial(pos.Pieces, board.Standard))
	return pos, nil
}

// splitMove reads dragontoothmg's long algebraic String() output.
func splitMove(m dragontoothmg.Move) (from, to board.Square, promo board.PieceType) {
	s := m.String()
	if len(s) < 4 {
		return "", "", board.NoPieceType
	}
	from, to = board.Square(s[0:2]), board.Square(s[2:4])
	if len(s) > 4 {
		promo, _ = board.ParsePieceType(s[4:5])
	}
	return from, to, promo
}

func (e *DragonEngine) LegalTargets(fen string, from board.Square) ([]board.Square, error) {
	b, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	var out []board.Square
	seen := make(map[board.Square]bool)
	for _, m := range b.GenerateLegalMoves() {
		f, to, _ := splitMove(m)
		if f != from || seen[to] {
			continue
		}
		seen[to] = true
		out = append(out, to)
	}
	return out, nil
}

func (e *DragonEngine) Apply(fen string, req MoveRequest) (*Outcome, error) {
	b, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	prev, err := ParseFEN(fen, board.Standard)
	if err != nil {
		return nil, err
	}
	req = WithDefaultPromotion(prev, req)

	var (
		chosen dragontoothmg.Move
		found  bool
	)
	for _, m := range b.GenerateLegalMoves() {
		f, to, promo := splitMove(m)
		if f == req.From && to == req.To && promo == req.Promotion {
			chosen, found = m, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, req.UCI())
	}

	out := Describe(prev, req)
	out.SAN = SAN(prev.FEN, req.UCI())
	b.Apply(chosen)
	next, err := e.position(&b, b.ToFen())
	if err != nil {
		return nil, err
	}
	out.Position = next
	out.Check = next.InCheck
	return &out, nil
}
