// Package sandbox provides rules for the small synthetic boards (3x3, 6x6)
// used by drag tests and puzzle previews. Pieces move as in chess on an N x N
// grid; there is no castling, no en passant and pawns advance one square.
package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/rules"
)

type Preset struct {
	Name string
	Size int
	FEN  string
}

var presets = map[string]Preset{
	"drag-test":   {Name: "drag-test", Size: 3, FEN: "k1q/3/P1P w - - 0 1"},
	"mobile-test": {Name: "mobile-test", Size: 6, FEN: "kq4/6/6/6/6/4QK w - - 0 1"},
}

func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Engine implements rules.Engine for an N x N sandbox.
type Engine struct {
	grid  board.Grid
	start string
}

func NewEngine(size int, startFEN string) (*Engine, error) {
	g, err := board.NewGrid(size)
	if err != nil {
		return nil, err
	}
	e := &Engine{grid: g, start: strings.TrimSpace(startFEN)}
	if e.start == "" {
		e.start = rules.FormatPlacement(nil, g) + " w - - 0 1"
	}
	if _, err := e.Validate(e.start); err != nil {
		return nil, fmt.Errorf("sandbox start position: %w", err)
	}
	return e, nil
}

func FromPreset(name string) (*Engine, error) {
	p, ok := LookupPreset(name)
	if !ok {
		return nil, fmt.Errorf("unknown sandbox preset %q", name)
	}
	return NewEngine(p.Size, p.FEN)
}

func (e *Engine) Name() string     { return fmt.Sprintf("sandbox-%dx%d", e.grid.Size, e.grid.Size) }
func (e *Engine) GridSize() int    { return e.grid.Size }
func (e *Engine) StartFEN() string { return e.start }

func (e *Engine) parse(fen string) (*rules.Position, error) {
	pos, err := rules.ParseFEN(fen, e.grid)
	if err != nil {
		return nil, err
	}
	kings := map[board.Color]int{}
	for _, pc := range pos.Pieces {
		if pc.Type == board.King {
			kings[pc.Color]++
		}
	}
	if kings[board.White] > 1 || kings[board.Black] > 1 {
		return nil, fmt.Errorf("%w: more than one king per side", rules.ErrInvalidFEN)
	}
	return pos, nil
}

func (e *Engine) Validate(fen string) (*rules.Position, error) {
	pos, err := e.parse(fen)
	if err != nil {
		return nil, err
	}
	e.classify(pos)
	return pos, nil
}

func (e *Engine) classify(pos *rules.Position) {
	pos.InCheck = rules.InCheck(pos.Pieces, e.grid, pos.Turn)
	legal := 0
	for sq, pc := range pos.Pieces {
		if pc.Color == pos.Turn {
			legal += len(e.targets(pos, sq))
		}
	}
	pos.LegalMoves = legal
	switch {
	case legal == 0 && pos.InCheck:
		pos.Status = rules.StatusCheckmate
	case legal == 0:
		pos.Status = rules.StatusStalemate
	case pos.InCheck:
		pos.Status = rules.StatusCheck
	default:
		pos.Status = rules.StatusPlaying
	}
}

func (e *Engine) LegalTargets(fen string, from board.Square) ([]board.Square, error) {
	pos, err := e.parse(fen)
	if err != nil {
		return nil, err
	}
	pc, ok := pos.Pieces[from]
	if !ok || pc.Color != pos.Turn {
		return nil, nil
	}
	return e.targets(pos, from), nil
}

// targets lists moves for the piece on from that do not leave its own king attacked.
func (e *Engine) targets(pos *rules.Position, from board.Square) []board.Square {
	pc := pos.Pieces[from]
	var out []board.Square
	for _, to := range e.reach(pos.Pieces, from, pc) {
		next := movePieces(pos.Pieces, from, to, board.NoPieceType)
		if !rules.InCheck(next, e.grid, pc.Color) {
			out = append(out, to)
		}
	}
	return out
}

// reach is the pseudo-legal move set.
func (e *Engine) reach(pieces map[board.Square]board.Piece, from board.Square, pc board.Piece) []board.Square {
	f, r, err := e.grid.Coords(from)
	if err != nil {
		return nil
	}
	var out []board.Square
	open := func(sq board.Square) bool {
		if sq == "" {
			return false
		}
		occ, ok := pieces[sq]
		return !ok || occ.Color != pc.Color
	}
	step := func(dirs [][2]int) {
		for _, d := range dirs {
			if sq := e.grid.At(f+d[0], r+d[1]); open(sq) {
				out = append(out, sq)
			}
		}
	}
	slide := func(dirs [4][2]int) {
		for _, d := range dirs {
			for i := 1; ; i++ {
				sq := e.grid.At(f+d[0]*i, r+d[1]*i)
				if !open(sq) {
					break
				}
				out = append(out, sq)
				if _, occupied := pieces[sq]; occupied {
					break
				}
			}
		}
	}
	switch pc.Type {
	case board.King:
		step(rules.KingSteps[:])
	case board.Knight:
		step(rules.KnightJumps[:])
	case board.Bishop:
		slide(rules.Diagonals)
	case board.Rook:
		slide(rules.Straights)
	case board.Queen:
		slide(rules.Diagonals)
		slide(rules.Straights)
	case board.Pawn:
		dir := rules.PawnDir(pc.Color)
		if sq := e.grid.At(f, r+dir); sq != "" {
			if _, occupied := pieces[sq]; !occupied {
				out = append(out, sq)
			}
		}
		for _, df := range []int{-1, 1} {
			sq := e.grid.At(f+df, r+dir)
			if occ, ok := pieces[sq]; ok && occ.Color != pc.Color {
				out = append(out, sq)
			}
		}
	}
	return out
}

func movePieces(src map[board.Square]board.Piece, from, to board.Square, promo board.PieceType) map[board.Square]board.Piece {
	next := make(map[board.Square]board.Piece, len(src))
	for k, v := range src {
		next[k] = v
	}
	pc := next[from]
	delete(next, from)
	if promo != board.NoPieceType {
		pc.Type = promo
	}
	next[to] = pc
	return next
}

func (e *Engine) Apply(fen string, req rules.MoveRequest) (*rules.Outcome, error) {
	prev, err := e.parse(fen)
	if err != nil {
		return nil, err
	}
	pc, ok := prev.Pieces[req.From]
	if !ok || pc.Color != prev.Turn {
		return nil, fmt.Errorf("%w: %s", rules.ErrIllegalMove, req.UCI())
	}
	legal := false
	for _, to := range e.targets(prev, req.From) {
		if to == req.To {
			legal = true
			break
		}
	}
	if !legal {
		return nil, fmt.Errorf("%w: %s", rules.ErrIllegalMove, req.UCI())
	}
	promoting := rules.WithDefaultPromotion(prev, rules.MoveRequest{From: req.From, To: req.To}).Promotion != board.NoPieceType
	switch {
	case !promoting && req.Promotion != board.NoPieceType,
		promoting && (req.Promotion == board.King || req.Promotion == board.Pawn):
		return nil, fmt.Errorf("%w: bad promotion %s", rules.ErrIllegalMove, req.UCI())
	case promoting && req.Promotion == board.NoPieceType:
		req.Promotion = board.Queen
	}

	out := rules.Describe(prev, req)
	pieces := movePieces(prev.Pieces, req.From, req.To, req.Promotion)

	half := prev.HalfmoveClock + 1
	if pc.Type == board.Pawn || out.Capture {
		half = 0
	}
	full := prev.Fullmove
	if prev.Turn == board.Black {
		full++
	}
	nextFEN := fmt.Sprintf("%s %s - - %d %d", rules.FormatPlacement(pieces, e.grid), prev.Turn.Opposite().Letter(), half, full)
	next, err := e.parse(nextFEN)
	if err != nil {
		return nil, err
	}
	e.classify(next)
	out.Position = next
	out.Check = next.InCheck
	out.SAN = san(out, req, next.Status)
	return &out, nil
}

// san writes a short algebraic form. Disambiguation is not needed for the
// small piece sets these boards use, so it is omitted.
func san(out rules.Outcome, req rules.MoveRequest, status rules.Status) string {
	var b strings.Builder
	if out.Piece.Type != board.Pawn {
		b.WriteByte(out.Piece.Type.Letter() - 'a' + 'A')
	} else if out.Capture {
		b.WriteByte(string(req.From)[0])
	}
	if out.Capture {
		b.WriteByte('x')
	}
	b.WriteString(string(req.To))
	if req.Promotion != board.NoPieceType {
		b.WriteByte('=')
		b.WriteByte(req.Promotion.Letter() - 'a' + 'A')
	}
	switch {
	case status == rules.StatusCheckmate:
		b.WriteByte('#')
	case out.Check:
		b.WriteByte('+')
	}
	return b.String()
}
