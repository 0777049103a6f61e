package rules

import (
	"errors"
	"sort"
	"testing"

	"github.com/park285/chessboard-core/internal/board"
)

func engines() []Engine {
	return []Engine{NewChessEngine(), NewDragonEngine()}
}

func mustApply(t *testing.T, e Engine, fen, uci string) *Outcome {
	t.Helper()
	mv, err := ParseUCI(uci, board.Standard)
	if err != nil {
		t.Fatalf("ParseUCI(%s): %v", uci, err)
	}
	out, err := e.Apply(fen, mv)
	if err != nil {
		t.Fatalf("%s Apply(%s): %v", e.Name(), uci, err)
	}
	return out
}

func TestStartPositionTargets(t *testing.T) {
	for _, e := range engines() {
		got, err := e.LegalTargets(StartFEN, "e2")
		if err != nil {
			t.Fatalf("%s LegalTargets: %v", e.Name(), err)
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if len(got) != 2 || got[0] != "e3" || got[1] != "e4" {
			t.Fatalf("%s e2 targets: %v", e.Name(), got)
		}
		knight, _ := e.LegalTargets(StartFEN, "g1")
		if len(knight) != 2 {
			t.Fatalf("%s g1 targets: %v", e.Name(), knight)
		}
		none, _ := e.LegalTargets(StartFEN, "e4")
		if len(none) != 0 {
			t.Fatalf("%s empty square targets: %v", e.Name(), none)
		}
	}
}

func TestApplyPawnPush(t *testing.T) {
	for _, e := range engines() {
		out := mustApply(t, e, StartFEN, "e2e4")
		p := out.Position
		if p.Turn != board.Black {
			t.Fatalf("%s: expected black to move, fen=%s", e.Name(), p.FEN)
		}
		if pc, ok := p.PieceAt("e4"); !ok || pc != (board.Piece{Type: board.Pawn, Color: board.White}) {
			t.Fatalf("%s: e4 = %+v ok=%v", e.Name(), pc, ok)
		}
		if _, ok := p.PieceAt("e2"); ok {
			t.Fatalf("%s: e2 should be empty", e.Name())
		}
		if out.SAN != "e4" {
			t.Fatalf("%s: SAN = %q", e.Name(), out.SAN)
		}
		if p.Status != StatusPlaying {
			t.Fatalf("%s: status %s", e.Name(), p.Status)
		}
	}
}

func TestScholarsMate(t *testing.T) {
	moves := []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"}
	for _, e := range engines() {
		fen := StartFEN
		var out *Outcome
		for _, m := range moves {
			out = mustApply(t, e, fen, m)
			fen = out.Position.FEN
		}
		if out.Position.Status != StatusCheckmate {
			t.Fatalf("%s: expected checkmate, got %s (%s)", e.Name(), out.Position.Status, fen)
		}
		if !out.Capture || out.Captured.Type != board.Pawn || out.CapturedOn != "f7" {
			t.Fatalf("%s: capture flags %+v", e.Name(), out)
		}
		if out.SAN != "Qxf7#" {
			t.Fatalf("%s: SAN = %q", e.Name(), out.SAN)
		}
	}
}

func TestIllegalAndInvalid(t *testing.T) {
	for _, e := range engines() {
		if _, err := e.Apply(StartFEN, MoveRequest{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%s: expected ErrIllegalMove, got %v", e.Name(), err)
		}
		if _, err := e.Apply(StartFEN, MoveRequest{From: "e7", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%s: moving out of turn should be illegal, got %v", e.Name(), err)
		}
		for _, fen := range []string{"", "not a fen", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1", "8/8/8/8/8/8/8/8 w - - 0 1"} {
			if _, err := e.Validate(fen); !errors.Is(err, ErrInvalidFEN) {
				t.Fatalf("%s: %q expected ErrInvalidFEN, got %v", e.Name(), fen, err)
			}
		}
	}
}

func TestEnPassantAndCastle(t *testing.T) {
	ep := "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3"
	castle := "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"
	for _, e := range engines() {
		out := mustApply(t, e, ep, "e5d6")
		if !out.EnPassant || out.CapturedOn != "d5" {
			t.Fatalf("%s: en passant flags %+v", e.Name(), out)
		}
		if _, ok := out.Position.PieceAt("d5"); ok {
			t.Fatalf("%s: d5 should be empty after en passant", e.Name())
		}
		out = mustApply(t, e, castle, "e1g1")
		if !out.Castle || out.RookFrom != "h1" || out.RookTo != "f1" {
			t.Fatalf("%s: castle flags %+v", e.Name(), out)
		}
		if pc, ok := out.Position.PieceAt("f1"); !ok || pc.Type != board.Rook {
			t.Fatalf("%s: rook not on f1", e.Name())
		}
	}
}

func TestDefaultPromotion(t *testing.T) {
	fen := "8/P6k/8/8/8/8/8/K7 w - - 0 1"
	for _, e := range engines() {
		out := mustApply(t, e, fen, "a7a8")
		if out.Promotion != board.Queen {
			t.Fatalf("%s: promotion %v", e.Name(), out.Promotion)
		}
		if pc, _ := out.Position.PieceAt("a8"); pc.Type != board.Queen {
			t.Fatalf("%s: a8 = %+v", e.Name(), pc)
		}
		out = mustApply(t, e, fen, "a7a8n")
		if pc, _ := out.Position.PieceAt("a8"); pc.Type != board.Knight {
			t.Fatalf("%s: underpromotion a8 = %+v", e.Name(), pc)
		}
	}
}

func TestStalemateAndMaterial(t *testing.T) {
	for _, e := range engines() {
		p, err := e.Validate("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
		if err != nil {
			t.Fatalf("%s: %v", e.Name(), err)
		}
		if p.Status != StatusStalemate {
			t.Fatalf("%s: expected stalemate, got %s", e.Name(), p.Status)
		}
		p, err = e.Validate("8/8/4k3/8/8/3K4/8/8 w - - 0 1")
		if err != nil {
			t.Fatalf("%s: %v", e.Name(), err)
		}
		if p.Status != StatusDraw || p.DrawReason != DrawInsufficientMaterial {
			t.Fatalf("%s: expected insufficient material draw, got %s/%s", e.Name(), p.Status, p.DrawReason)
		}
		p, err = e.Validate("8/8/2b1k3/8/8/3K4/8/5B2 w - - 0 1")
		if err != nil {
			t.Fatalf("%s: %v", e.Name(), err)
		}
		if p.Status != StatusDraw || p.DrawReason != DrawInsufficientMaterial {
			t.Fatalf("%s: same-shade bishops should draw, got %s/%s", e.Name(), p.Status, p.DrawReason)
		}
		p, err = e.Validate("8/8/4k3/2b5/8/3K4/8/5B2 w - - 0 1")
		if err != nil {
			t.Fatalf("%s: %v", e.Name(), err)
		}
		if p.Status != StatusPlaying {
			t.Fatalf("%s: opposite bishops can still mate, got %s/%s", e.Name(), p.Status, p.DrawReason)
		}
	}
}

func TestPlacementRoundTrip(t *testing.T) {
	g, _ := board.NewGrid(12)
	pieces := map[board.Square]board.Piece{
		"a1":  {Type: board.King, Color: board.White},
		"l12": {Type: board.King, Color: board.Black},
		"f6":  {Type: board.Queen, Color: board.Black},
	}
	s := FormatPlacement(pieces, g)
	back, err := ParsePlacement(s, g)
	if err != nil {
		t.Fatalf("ParsePlacement(%s): %v", s, err)
	}
	if len(back) != len(pieces) {
		t.Fatalf("round trip lost pieces: %s -> %v", s, back)
	}
	for sq, pc := range pieces {
		if back[sq] != pc {
			t.Fatalf("%s: %+v != %+v", sq, back[sq], pc)
		}
	}
}

func TestParseUCI(t *testing.T) {
	mv, err := ParseUCI("e7e8q", board.Standard)
	if err != nil || mv.From != "e7" || mv.To != "e8" || mv.Promotion != board.Queen {
		t.Fatalf("e7e8q: %+v %v", mv, err)
	}
	g, _ := board.NewGrid(10)
	mv, err = ParseUCI("a10b9", g)
	if err != nil || mv.From != "a10" || mv.To != "b9" {
		t.Fatalf("a10b9: %+v %v", mv, err)
	}
	if _, err := ParseUCI("zz", board.Standard); err == nil {
		t.Fatalf("expected error")
	}
}
