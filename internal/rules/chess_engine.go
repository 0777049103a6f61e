package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessboard-core/internal/board"
)

// ChessEngine is the default Engine, backed by corentings/chess.
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (e *ChessEngine) Name() string     { return "corentings" }
func (e *ChessEngine) GridSize() int    { return board.StandardSize }
func (e *ChessEngine) StartFEN() string { return StartFEN }

func (e *ChessEngine) load(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if err := CheckFEN(fen); err != nil {
		return nil, err
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func (e *ChessEngine) Validate(fen string) (*Position, error) {
	game, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	return e.position(game)
}

func (e *ChessEngine) position(game *nchess.Game) (*Position, error) {
	pos, err := ParseFEN(game.FEN(), board.Standard)
	if err != nil {
		return nil, err
	}
	pos.InCheck = InCheck(pos.Pieces, board.Standard, pos.Turn)
	// 기물 부족 무승부는 라이브러리 판정을 그대로 사용
	classify(pos, len(game.ValidMoves()), game.Method() == nchess.InsufficientMaterial)
	return pos, nil
}

func (e *ChessEngine) LegalTargets(fen string, from board.Square) ([]board.Square, error) {
	game, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	var out []board.Square
	seen := make(map[board.Square]bool)
	for _, mv := range game.ValidMoves() {
		if board.Square(mv.S1().String()) != from {
			continue
		}
		to := board.Square(mv.S2().String())
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	return out, nil
}

func (e *ChessEngine) Apply(fen string, req MoveRequest) (*Outcome, error) {
	game, err := e.load(fen)
	if err != nil {
		return nil, err
	}
	prev, err := ParseFEN(game.FEN(), board.Standard)
	if err != nil {
		return nil, err
	}
	req = WithDefaultPromotion(prev, req)
	if !e.legal(game, req) {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, req.UCI())
	}

	pos := game.Position()
	if err := game.PushNotationMove(req.UCI(), nchess.UCINotation{}, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	out := Describe(prev, req)
	out.SAN = req.UCI()
	if last := lastMove(game); last != nil {
		out.SAN = nchess.AlgebraicNotation{}.Encode(pos, last)
	}
	next, err := e.position(game)
	if err != nil {
		return nil, err
	}
	out.Position = next
	out.Check = next.InCheck
	return &out, nil
}

func (e *ChessEngine) legal(game *nchess.Game, req MoveRequest) bool {
	for _, mv := range game.ValidMoves() {
		if board.Square(mv.S1().String()) != req.From || board.Square(mv.S2().String()) != req.To {
			continue
		}
		if pieceTypeFrom(mv.Promo()) == req.Promotion {
			return true
		}
	}
	return false
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func pieceTypeFrom(t nchess.PieceType) board.PieceType {
	switch t {
	case nchess.King:
		return board.King
	case nchess.Queen:
		return board.Queen
	case nchess.Rook:
		return board.Rook
	case nchess.Bishop:
		return board.Bishop
	case nchess.Knight:
		return board.Knight
	case nchess.Pawn:
		return board.Pawn
	}
	return board.NoPieceType
}

// SAN renders a legal UCI move from fen in standard algebraic notation. It
// falls back to the UCI text when the library cannot replay the move.
func SAN(fen, uci string) string {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return uci
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return uci
	}
	if last := lastMove(game); last != nil {
		return nchess.AlgebraicNotation{}.Encode(pos, last)
	}
	return uci
}
