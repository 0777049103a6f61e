package rules

import "github.com/park285/chessboard-core/internal/board"

var (
	KnightJumps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	KingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	Diagonals   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	Straights   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

// PawnDir is the rank step of a pawn of color c.
func PawnDir(c board.Color) int {
	if c == board.White {
		return 1
	}
	return -1
}

// Attacked reports whether any piece of color by attacks target.
func Attacked(pieces map[board.Square]board.Piece, g board.Grid, target board.Square, by board.Color) bool {
	tf, tr, err := g.Coords(target)
	if err != nil {
		return false
	}
	is := func(f, r int, types ...board.PieceType) bool {
		pc, ok := pieces[g.At(f, r)]
		if !ok || pc.Color != by {
			return false
		}
		for _, t := range types {
			if pc.Type == t {
				return true
			}
		}
		return false
	}
	for _, d := range KnightJumps {
		if is(tf+d[0], tr+d[1], board.Knight) {
			return true
		}
	}
	for _, d := range KingSteps {
		if is(tf+d[0], tr+d[1], board.King) {
			return true
		}
	}
	// a pawn of color by sits one step behind the target in its own direction
	pr := tr - PawnDir(by)
	if is(tf-1, pr, board.Pawn) || is(tf+1, pr, board.Pawn) {
		return true
	}
	slide := func(dirs [4][2]int, types ...board.PieceType) bool {
		for _, d := range dirs {
			f, r := tf+d[0], tr+d[1]
			for {
				sq := g.At(f, r)
				if sq == "" {
					break
				}
				if _, occupied := pieces[sq]; occupied {
					if is(f, r, types...) {
						return true
					}
					break
				}
				f, r = f+d[0], r+d[1]
			}
		}
		return false
	}
	return slide(Diagonals, board.Bishop, board.Queen) || slide(Straights, board.Rook, board.Queen)
}

func KingSquare(pieces map[board.Square]board.Piece, c board.Color) (board.Square, bool) {
	for sq, pc := range pieces {
		if pc.Type == board.King && pc.Color == c {
			return sq, true
		}
	}
	return "", false
}

// InCheck reports whether c's king is attacked. Positions without a king of
// color c are never in check.
func InCheck(pieces map[board.Square]board.Piece, g board.Grid, c board.Color) bool {
	k, ok := KingSquare(pieces, c)
	if !ok {
		return false
	}
	return Attacked(pieces, g, k, c.Opposite())
}

// InsufficientMaterial covers K v K, K+minor v K and bishops all on one square color.
func InsufficientMaterial(pieces map[board.Square]board.Piece, g board.Grid) bool {
	minors := 0
	bishopShade := -1
	mixedBishops := false
	for _, sq := range sortedSquares(pieces) {
		pc := pieces[sq]
		switch pc.Type {
		case board.King:
		case board.Knight:
			minors++
		case board.Bishop:
			minors++
			f, r, _ := g.Coords(sq)
			shade := (f + r) % 2
			if bishopShade >= 0 && shade != bishopShade {
				mixedBishops = true
			}
			bishopShade = shade
		default:
			return false
		}
	}
	if minors <= 1 {
		return true
	}
	for _, pc := range pieces {
		if pc.Type == board.Knight {
			return false
		}
	}
	return !mixedBishops
}

// classify fills Status from the check flag, the legal move count and the
// engine's own insufficient-material verdict.
func classify(p *Position, legal int, insufficient bool) {
	p.LegalMoves = legal
	switch {
	case legal == 0 && p.InCheck:
		p.Status = StatusCheckmate
	case legal == 0:
		p.Status = StatusStalemate
	case insufficient:
		p.Status = StatusDraw
		p.DrawReason = DrawInsufficientMaterial
	case p.InCheck:
		p.Status = StatusCheck
	default:
		p.Status = StatusPlaying
	}
}

// Describe derives the piece-level effects of a legal move from the position
// before it: captures (including en passant), castling rook travel, promotion.
func Describe(prev *Position, mv MoveRequest) Outcome {
	g := prev.Grid()
	out := Outcome{UCI: mv.UCI(), Promotion: mv.Promotion}
	pc, ok := prev.Pieces[mv.From]
	if !ok {
		return out
	}
	out.Piece = pc
	ff, fr, _ := g.Coords(mv.From)
	tf, _, _ := g.Coords(mv.To)
	if victim, ok := prev.Pieces[mv.To]; ok && victim.Color != pc.Color {
		out.Capture = true
		out.Captured = victim
		out.CapturedOn = mv.To
	}
	if pc.Type == board.Pawn && ff != tf && !out.Capture {
		epSq := g.At(tf, fr)
		if victim, ok := prev.Pieces[epSq]; ok && victim.Type == board.Pawn && victim.Color != pc.Color {
			out.Capture = true
			out.EnPassant = true
			out.Captured = victim
			out.CapturedOn = epSq
		}
	}
	if pc.Type == board.King && (tf-ff == 2 || ff-tf == 2) {
		out.Castle = true
		if tf > ff {
			out.RookFrom, out.RookTo = g.At(g.Size-1, fr), g.At(tf-1, fr)
		} else {
			out.RookFrom, out.RookTo = g.At(0, fr), g.At(tf+1, fr)
		}
	}
	return out
}
