package sandbox

import (
	"errors"
	"testing"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/rules"
)

func TestPresetTargets(t *testing.T) {
	e, err := FromPreset("drag-test")
	if err != nil {
		t.Fatalf("FromPreset: %v", err)
	}
	if e.GridSize() != 3 {
		t.Fatalf("grid size %d", e.GridSize())
	}
	got, err := e.LegalTargets(e.StartFEN(), "a1")
	if err != nil {
		t.Fatalf("LegalTargets: %v", err)
	}
	if len(got) != 1 || got[0] != "a2" {
		t.Fatalf("a1 targets: %v", got)
	}
	// black pieces are not movable on white's turn
	if got, _ := e.LegalTargets(e.StartFEN(), "c3"); len(got) != 0 {
		t.Fatalf("c3 targets on white turn: %v", got)
	}
}

func TestApplyCaptureAndPromotion(t *testing.T) {
	e, _ := FromPreset("drag-test")
	out, err := e.Apply(e.StartFEN(), rules.MoveRequest{From: "c1", To: "c2"})
	if err != nil {
		t.Fatalf("c1c2: %v", err)
	}
	if out.Position.Turn != board.Black {
		t.Fatalf("turn not passed")
	}
	out, err = e.Apply(out.Position.FEN, rules.MoveRequest{From: "c3", To: "c2"})
	if err != nil {
		t.Fatalf("c3c2: %v", err)
	}
	if !out.Capture || out.Captured.Type != board.Pawn || out.SAN != "Qxc2" {
		t.Fatalf("capture outcome: %+v", out)
	}

	promo := "k2/P2/2K w - - 0 1"
	if _, err := NewEngine(3, promo); err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e3, _ := NewEngine(3, promo)
	if _, err := e3.Apply(promo, rules.MoveRequest{From: "a2", To: "a3"}); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("pawn cannot push into an occupied square: %v", err)
	}
	promo = "1k1/P2/2K w - - 0 1"
	e3, _ = NewEngine(3, promo)
	out, err = e3.Apply(promo, rules.MoveRequest{From: "a2", To: "a3"})
	if err != nil {
		t.Fatalf("a2a3: %v", err)
	}
	if pc, _ := out.Position.PieceAt("a3"); pc.Type != board.Queen {
		t.Fatalf("expected queen promotion, got %+v", pc)
	}
}

func TestCheckmateOnSmallGrid(t *testing.T) {
	e, err := NewEngine(3, "k2/1Q1/1K1 b - - 0 1")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	p, err := e.Validate(e.StartFEN())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Status != rules.StatusCheckmate {
		t.Fatalf("expected checkmate, got %s", p.Status)
	}
}

func TestRejectsBadPlacement(t *testing.T) {
	if _, err := NewEngine(3, "kk1/3/3 w - - 0 1"); err == nil {
		t.Fatalf("expected error for two black kings")
	}
	if _, err := NewEngine(3, "8/8 w - - 0 1"); !errors.Is(err, rules.ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
	if _, err := FromPreset("nope"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	if names := PresetNames(); len(names) != 2 {
		t.Fatalf("presets: %v", names)
	}
}
