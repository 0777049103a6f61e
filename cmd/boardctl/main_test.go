package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/rules"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	if err := app.Run(context.Background(), append([]string{"boardctl"}, args...)); err != nil {
		t.Fatalf("boardctl %s: %v", strings.Join(args, " "), err)
	}
	return buf.String()
}

func TestPlayPrintsNumberedLine(t *testing.T) {
	got := run(t, "play", "e2e4", "e7e5", "g1f3")
	if !strings.Contains(got, "1. e4 e5 2. Nf3\n") {
		t.Fatalf("output = %q", got)
	}
	if !strings.Contains(got, "status: playing") {
		t.Fatalf("output = %q", got)
	}
}

func TestPlayReportsMate(t *testing.T) {
	got := run(t, "play", "f2f3", "e7e5", "g2g4", "d8h4")
	if !strings.Contains(got, "status: checkmate (black wins)") {
		t.Fatalf("output = %q", got)
	}
}

func TestPlayRejectsIllegalMove(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{"boardctl", "play", "e2e5"})
	if err == nil {
		t.Fatal("expected an error for e2e5")
	}
}

func TestSquaresVisualOrder(t *testing.T) {
	got := run(t, "squares", "--orientation", "black")
	first := strings.SplitN(got, "\n", 2)[0]
	if first != "h1  g1  f1  e1  d1  c1  b1  a1" {
		t.Fatalf("first row = %q", first)
	}

	got = run(t, "squares", "--engine", "drag-test")
	if lines := strings.Split(strings.TrimSpace(got), "\n"); len(lines) != 3 || lines[0] != "a3  b3  c3" {
		t.Fatalf("sandbox rows = %q", lines)
	}
}

func TestSquaresAtPoint(t *testing.T) {
	got := run(t, "squares", "--at", "81.25,93.75")
	if got != "g1 center=(81.25, 93.75)\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestPuzzlePrintsSolution(t *testing.T) {
	got := run(t, "puzzle", "--id", "sample_4")
	if !strings.Contains(got, "white to move: 1. dxc6 Nxc6 2. Nb5") {
		t.Fatalf("output = %q", got)
	}
}

func TestRenderWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.png")
	run(t, "render", "--out", path, "--size", "16", "e2e4")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatal("not a png")
	}
}

func TestFormatLineBlackFirst(t *testing.T) {
	a, err := game.Replay(rules.NewChessEngine(), "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", []string{"e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if got := formatLine(a.State().MoveHistory); got != "1... e5 2. Nf3" {
		t.Fatalf("line = %q", got)
	}
}
