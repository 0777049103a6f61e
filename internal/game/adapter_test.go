package game

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/rules"
	"github.com/park285/chessboard-core/internal/sandbox"
)

func newTestAdapter(t *testing.T, engine rules.Engine) *Adapter {
	t.Helper()
	if engine == nil {
		engine = rules.NewChessEngine()
	}
	a, err := New(engine)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func play(t *testing.T, a *Adapter, moves ...string) GameState {
	t.Helper()
	var st GameState
	for _, m := range moves {
		mv, err := rules.ParseUCI(m, a.Grid())
		if err != nil {
			t.Fatalf("ParseUCI(%s): %v", m, err)
		}
		st, err = a.ApplyMove(mv)
		if err != nil {
			t.Fatalf("ApplyMove(%s): %v", m, err)
		}
		assertConsistent(t, st)
	}
	return st
}

func assertConsistent(t *testing.T, st GameState) {
	t.Helper()
	if got, want := st.Snapshot.Placement(), strings.Fields(st.FEN)[0]; got != want {
		t.Fatalf("snapshot %q diverges from fen %q", got, want)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestStartAndPawnPush(t *testing.T) {
	for _, engine := range []rules.Engine{rules.NewChessEngine(), rules.NewDragonEngine()} {
		a := newTestAdapter(t, engine)
		st := a.State()
		if st.FEN != rules.StartFEN || st.Snapshot.Len() != 32 {
			t.Fatalf("%s: start state fen=%s pieces=%d", engine.Name(), st.FEN, st.Snapshot.Len())
		}
		assertConsistent(t, st)

		st = play(t, a, "e2e4")
		if st.CurrentPlayer != board.Black || strings.Fields(st.FEN)[1] != "b" {
			t.Fatalf("%s: expected black to move, fen=%s", engine.Name(), st.FEN)
		}
		pc, ok := st.Snapshot.At("e4")
		if !ok || pc.Type != board.Pawn || pc.Color != board.White || pc.ID != "white-pawn-e2" {
			t.Fatalf("%s: e4 holds %+v", engine.Name(), pc)
		}
		if _, ok := st.Snapshot.At("e2"); ok {
			t.Fatalf("%s: e2 should be empty", engine.Name())
		}
		if st.LastMove == nil || st.LastMove.SAN != "e4" || len(st.MoveHistory) != 1 {
			t.Fatalf("%s: history %+v", engine.Name(), st.MoveHistory)
		}
	}
}

func TestValidMoves(t *testing.T) {
	a := newTestAdapter(t, nil)
	got := a.ValidMoves("e2")
	if len(got) != 2 || got[0] != "e3" || got[1] != "e4" {
		t.Fatalf("e2: %v", got)
	}
	if got := a.ValidMoves("e7"); len(got) != 0 {
		t.Fatalf("black piece on white turn: %v", got)
	}
	if got := a.ValidMoves("e5"); len(got) != 0 {
		t.Fatalf("empty square: %v", got)
	}
}

func TestIllegalMoveLeavesStateUnchanged(t *testing.T) {
	a := newTestAdapter(t, nil)
	play(t, a, "e2e4")
	before := mustJSON(t, a.State())
	for i := 0; i < 3; i++ {
		_, err := a.ApplyMove(MoveRequest{From: "e4", To: "e6"})
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("attempt %d: expected ErrIllegalMove, got %v", i, err)
		}
		if _, err := a.ApplyMove(MoveRequest{From: "d2", To: "d4"}); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("out of turn: expected ErrIllegalMove, got %v", err)
		}
	}
	if after := mustJSON(t, a.State()); after != before {
		t.Fatalf("state changed after illegal moves")
	}
}

func TestCheckmateFreezesGame(t *testing.T) {
	a := newTestAdapter(t, nil)
	st := play(t, a, "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	if st.Status != rules.StatusCheckmate {
		t.Fatalf("expected checkmate, got %s", st.Status)
	}
	if st.Result == nil || st.Result.Winner != "white" {
		t.Fatalf("result: %+v", st.Result)
	}
	before := mustJSON(t, a.State())
	if _, err := a.ApplyMove(MoveRequest{From: "e8", To: "f7"}); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if got := a.ValidMoves("e8"); len(got) != 0 {
		t.Fatalf("terminal game should have no valid moves: %v", got)
	}
	if after := mustJSON(t, a.State()); after != before {
		t.Fatalf("state changed after game over")
	}
}

func TestCaptureBookkeeping(t *testing.T) {
	a := newTestAdapter(t, nil)
	st := play(t, a, "e2e4", "d7d5", "e4d5")
	if len(st.Captured) != 1 {
		t.Fatalf("captured log: %+v", st.Captured)
	}
	cp := st.Captured[0]
	if cp.PieceID != "black-pawn-d7" || cp.Color != board.Black || cp.Type != board.Pawn || cp.Square != "d5" {
		t.Fatalf("captured entry: %+v", cp)
	}
	if pc, _ := st.Snapshot.At("d5"); pc.ID != "white-pawn-e2" {
		t.Fatalf("d5 occupant: %+v", pc)
	}
	if st.LastMove.Captured == nil || st.LastMove.Captured.PieceID != cp.PieceID {
		t.Fatalf("last move capture: %+v", st.LastMove)
	}
}

func TestSpecialMovesKeepIdentity(t *testing.T) {
	a := newTestAdapter(t, nil)
	if _, err := a.Load("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := play(t, a, "e1g1")
	if pc, _ := st.Snapshot.At("f1"); pc.ID != "white-rook-h1" {
		t.Fatalf("castled rook id: %+v", pc)
	}
	if st.LastMove.RookID != "white-rook-h1" {
		t.Fatalf("rook id not recorded: %+v", st.LastMove)
	}

	if _, err := a.Load("rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st = play(t, a, "e5d6")
	if len(st.Captured) != 1 || st.Captured[0].PieceID != "black-pawn-d5" || st.Captured[0].Square != "d5" {
		t.Fatalf("en passant capture: %+v", st.Captured)
	}

	if _, err := a.Load("8/P6k/8/8/8/8/8/K7 w - - 0 1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st = play(t, a, "a7a8")
	pc, _ := st.Snapshot.At("a8")
	if pc.Type != board.Queen || pc.ID == "white-pawn-a7" || pc.ID != st.LastMove.PromotedID {
		t.Fatalf("promoted piece: %+v (%+v)", pc, st.LastMove)
	}
}

func TestUndoAndReset(t *testing.T) {
	a := newTestAdapter(t, nil)
	if a.Undo() {
		t.Fatalf("undo on empty history should be false")
	}
	first := play(t, a, "e2e4")
	play(t, a, "d7d5", "e4d5")
	if !a.Undo() {
		t.Fatalf("undo failed")
	}
	st := a.State()
	if len(st.MoveHistory) != 2 || len(st.Captured) != 0 {
		t.Fatalf("after undo: history=%d captured=%d", len(st.MoveHistory), len(st.Captured))
	}
	a.Undo()
	if got := a.State(); got.FEN != first.FEN {
		t.Fatalf("fen after two undos: %s", got.FEN)
	}
	if err := a.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st = a.State()
	if st.FEN != rules.StartFEN || len(st.MoveHistory) != 0 || len(st.Captured) != 0 || a.Undo() {
		t.Fatalf("reset did not clear state: %+v", st)
	}
}

func TestLoadInvalidFallsBack(t *testing.T) {
	a := newTestAdapter(t, nil)
	play(t, a, "e2e4")
	st, err := a.Load("this is not fen")
	if !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
	if st.FEN != rules.StartFEN || len(st.MoveHistory) != 0 {
		t.Fatalf("fallback state: %s", st.FEN)
	}
	if err := a.Reset("8/8/8/8/8/8/8/8 w - - 0 1"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("Reset with bad fen: %v", err)
	}
}

func TestDrawRules(t *testing.T) {
	a := newTestAdapter(t, nil)
	st := play(t, a, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1")
	if st.Status.Terminal() {
		t.Fatalf("premature draw: %s", st.Status)
	}
	st = play(t, a, "f6g8")
	if st.Status != rules.StatusDraw || st.DrawReason != rules.DrawThreefold {
		t.Fatalf("expected threefold draw, got %s/%s", st.Status, st.DrawReason)
	}

	if _, err := a.Load("8/8/4k3/8/8/3K4/8/R7 w - - 99 60"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st = play(t, a, "a1a2")
	if st.Status != rules.StatusDraw || st.DrawReason != rules.DrawFiftyMove || st.Result == nil {
		t.Fatalf("expected fifty-move draw, got %s/%s", st.Status, st.DrawReason)
	}
}

func TestReplay(t *testing.T) {
	a, err := Replay(rules.NewChessEngine(), "", []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	st := a.State()
	if len(st.MoveHistory) != 3 || st.CurrentPlayer != board.Black {
		t.Fatalf("replayed state: %+v", st.MoveHistory)
	}
	if got := st.MovesUCI(); strings.Join(got, ",") != "e2e4,e7e5,g1f3" {
		t.Fatalf("MovesUCI: %v", got)
	}
	if _, err := Replay(rules.NewChessEngine(), "", []string{"e2e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected illegal replay error, got %v", err)
	}
}

func TestSandboxAdapter(t *testing.T) {
	engine, err := sandbox.FromPreset("mobile-test")
	if err != nil {
		t.Fatalf("FromPreset: %v", err)
	}
	a := newTestAdapter(t, engine)
	st := a.State()
	if st.GridSize != 6 || st.Snapshot.Len() != 4 {
		t.Fatalf("sandbox state: size=%d pieces=%d", st.GridSize, st.Snapshot.Len())
	}
	st = play(t, a, "e1e5")
	if pc, _ := st.Snapshot.At("e5"); pc.ID != "white-queen-e1" {
		t.Fatalf("queen id: %+v", pc)
	}
	if _, err := a.Load("garbage"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
	if st := a.State(); st.FEN != engine.StartFEN() {
		t.Fatalf("sandbox fallback: %s", st.FEN)
	}
}

func TestStateIsACopy(t *testing.T) {
	a := newTestAdapter(t, nil)
	st := play(t, a, "e2e4")
	st.MoveHistory[0].SAN = "tampered"
	st.Captured = append(st.Captured, CapturedPiece{PieceID: "x"})
	again := a.State()
	if again.MoveHistory[0].SAN != "e4" || len(again.Captured) != 0 {
		t.Fatalf("consumer mutation leaked into adapter state")
	}
}
