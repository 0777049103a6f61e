package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/park285/chessboard-core/internal/board"
)

// StartFEN is the standard chess starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an engine-neutral view of a FEN.
type Position struct {
	FEN           string
	Size          int
	Turn          board.Color
	Pieces        map[board.Square]board.Piece
	Castling      string
	EnPassant     string
	HalfmoveClock int
	Fullmove      int

	InCheck    bool
	LegalMoves int
	Status     Status
	DrawReason string
}

func (p *Position) PieceAt(sq board.Square) (board.Piece, bool) {
	pc, ok := p.Pieces[sq]
	return pc, ok
}

func (p *Position) Grid() board.Grid { return board.Grid{Size: p.Size} }

// RepetitionKey identifies the position for repetition counting (placement,
// side to move, castling rights, en passant square).
func (p *Position) RepetitionKey() string {
	f := strings.Fields(p.FEN)
	if len(f) > 4 {
		f = f[:4]
	}
	return strings.Join(f, " ")
}

// ParsePlacement decodes the first FEN field for an N x N grid. Empty runs may
// use more than one digit when N > 9.
func ParsePlacement(s string, g board.Grid) (map[board.Square]board.Piece, error) {
	rows := strings.Split(s, "/")
	if len(rows) != g.Size {
		return nil, fmt.Errorf("%w: expected %d ranks, got %d", ErrInvalidFEN, g.Size, len(rows))
	}
	out := make(map[board.Square]board.Piece)
	for i, row := range rows {
		rank := g.Size - 1 - i
		file := 0
		run := 0
		flush := func() {
			file += run
			run = 0
		}
		for _, r := range row {
			if r >= '0' && r <= '9' {
				run = run*10 + int(r-'0')
				continue
			}
			flush()
			pc, ok := board.PieceFromFEN(r)
			if !ok {
				return nil, fmt.Errorf("%w: bad piece %q", ErrInvalidFEN, r)
			}
			if file >= g.Size {
				return nil, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, rank+1)
			}
			out[g.At(file, rank)] = pc
			file++
		}
		flush()
		if file != g.Size {
			return nil, fmt.Errorf("%w: rank %d has %d files", ErrInvalidFEN, rank+1, file)
		}
	}
	return out, nil
}

func FormatPlacement(pieces map[board.Square]board.Piece, g board.Grid) string {
	var b strings.Builder
	for rank := g.Size - 1; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < g.Size; file++ {
			pc, ok := pieces[g.At(file, rank)]
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteRune(pc.FEN())
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			b.WriteByte('/')
		}
	}
	return b.String()
}

// ParseFEN reads a FEN leniently: missing trailing fields take their defaults.
func ParseFEN(fen string, g board.Grid) (*Position, error) {
	f := strings.Fields(fen)
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	defaults := []string{"", "w", "-", "-", "0", "1"}
	for len(f) < len(defaults) {
		f = append(f, defaults[len(f)])
	}
	pieces, err := ParsePlacement(f[0], g)
	if err != nil {
		return nil, err
	}
	turn, err := board.ParseColor(f[1])
	if err != nil || len(f[1]) != 1 {
		return nil, fmt.Errorf("%w: side to move %q", ErrInvalidFEN, f[1])
	}
	half, err := strconv.Atoi(f[4])
	if err != nil || half < 0 {
		return nil, fmt.Errorf("%w: halfmove clock %q", ErrInvalidFEN, f[4])
	}
	full, err := strconv.Atoi(f[5])
	if err != nil || full < 1 {
		return nil, fmt.Errorf("%w: fullmove number %q", ErrInvalidFEN, f[5])
	}
	return &Position{
		FEN:           strings.Join(f[:6], " "),
		Size:          g.Size,
		Turn:          turn,
		Pieces:        pieces,
		Castling:      f[2],
		EnPassant:     f[3],
		HalfmoveClock: half,
		Fullmove:      full,
	}, nil
}

// CheckFEN applies the strict checks a standard chess position must pass
// before it is handed to a rules library.
func CheckFEN(fen string) error {
	f := strings.Fields(fen)
	if len(f) != 6 {
		return fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidFEN, len(f))
	}
	pos, err := ParseFEN(fen, board.Standard)
	if err != nil {
		return err
	}
	if !validCastling(f[2]) {
		return fmt.Errorf("%w: castling %q", ErrInvalidFEN, f[2])
	}
	if f[3] != "-" {
		sq, err := board.ParseSquare(f[3])
		if err != nil {
			return fmt.Errorf("%w: en passant %q", ErrInvalidFEN, f[3])
		}
		want := "6"
		if pos.Turn == board.Black {
			want = "3"
		}
		if string(sq)[1:] != want {
			return fmt.Errorf("%w: en passant %q on wrong rank", ErrInvalidFEN, f[3])
		}
	}
	kings := map[board.Color]int{}
	for sq, pc := range pos.Pieces {
		switch pc.Type {
		case board.King:
			kings[pc.Color]++
		case board.Pawn:
			if r := string(sq)[1]; r == '1' || r == '8' {
				return fmt.Errorf("%w: pawn on %s", ErrInvalidFEN, sq)
			}
		}
	}
	if kings[board.White] != 1 || kings[board.Black] != 1 {
		return fmt.Errorf("%w: need exactly one king per side", ErrInvalidFEN)
	}
	if InCheck(pos.Pieces, board.Standard, pos.Turn.Opposite()) {
		return fmt.Errorf("%w: side not to move is in check", ErrInvalidFEN)
	}
	return nil
}

func validCastling(s string) bool {
	if s == "-" {
		return true
	}
	order := "KQkq"
	last := -1
	for _, r := range s {
		i := strings.IndexRune(order, r)
		if i <= last {
			return false
		}
		last = i
	}
	return s != ""
}

// sortedSquares returns the occupied squares in a stable order.
func sortedSquares(pieces map[board.Square]board.Piece) []board.Square {
	out := make([]board.Square, 0, len(pieces))
	for sq := range pieces {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
