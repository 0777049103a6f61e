package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/puzzle"
	"github.com/park285/chessboard-core/internal/render"
	"github.com/park285/chessboard-core/internal/rules"
	"github.com/park285/chessboard-core/internal/sandbox"
)

func engineFor(name string) (rules.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chess":
		return rules.NewChessEngine(), nil
	case "dragontooth":
		return rules.NewDragonEngine(), nil
	}
	if _, ok := sandbox.LookupPreset(name); ok {
		return sandbox.FromPreset(name)
	}
	return nil, fmt.Errorf("unknown engine %q (presets: %s)", name, strings.Join(sandbox.PresetNames(), ", "))
}

// replay builds an adapter from --engine, --fen and the positional UCI moves.
func replay(c *cli.Command) (*game.Adapter, error) {
	engine, err := engineFor(c.String("engine"))
	if err != nil {
		return nil, err
	}
	fen := strings.TrimSpace(c.String("fen"))
	if fen == "" {
		fen = engine.StartFEN()
	}
	return game.Replay(engine, fen, c.Args().Slice())
}

func out(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func runRender(ctx context.Context, c *cli.Command) error {
	a, err := replay(c)
	if err != nil {
		return err
	}
	o, err := board.ParseColor(c.String("orientation"))
	if err != nil {
		return err
	}
	png, err := render.New(render.WithSquareSize(int(c.Int("size")))).RenderPNG(ctx, render.FromState(a.State(), o))
	if err != nil {
		return err
	}
	path := c.String("out")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out(c), "%s (%d bytes)\n", path, len(png))
	return nil
}

func runPlay(ctx context.Context, c *cli.Command) error {
	a, err := replay(c)
	if err != nil {
		return err
	}
	st := a.State()
	w := out(c)
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintln(w, formatLine(st.MoveHistory))
	fmt.Fprintf(w, "fen: %s\n", st.FEN)
	fmt.Fprintf(w, "status: %s", st.Status)
	if st.Result != nil && st.Result.Winner != "" {
		fmt.Fprintf(w, " (%s wins)", st.Result.Winner)
	}
	if st.DrawReason != "" {
		fmt.Fprintf(w, " (%s)", st.DrawReason)
	}
	fmt.Fprintln(w)
	return nil
}

// formatLine numbers the moves like "1. e4 e5 2. Nf3". Black-to-move starts
// get the "1..." prefix.
func formatLine(moves []game.MoveRecord) string {
	var b strings.Builder
	offset := 0
	if len(moves) > 0 && moves[0].Piece.Color == board.Black {
		offset = 1
	}
	for i, m := range moves {
		if i > 0 {
			b.WriteByte(' ')
		}
		n := (i+offset)/2 + 1
		switch {
		case m.Piece.Color == board.White:
			fmt.Fprintf(&b, "%d. ", n)
		case i == 0:
			fmt.Fprintf(&b, "%d... ", n)
		}
		b.WriteString(m.SAN)
	}
	return b.String()
}

func runSquares(ctx context.Context, c *cli.Command) error {
	engine, err := engineFor(c.String("engine"))
	if err != nil {
		return err
	}
	o, err := board.ParseColor(c.String("orientation"))
	if err != nil {
		return err
	}
	g := board.Grid{Size: engine.GridSize()}
	w := out(c)

	if at := strings.TrimSpace(c.String("at")); at != "" {
		x, y, err := parsePoint(at)
		if err != nil {
			return err
		}
		sq, ok := g.PixelToSquare(x, y, o)
		if !ok {
			return fmt.Errorf("point %s is outside the board", at)
		}
		center, _ := g.SquareToPixel(sq, o)
		fmt.Fprintf(w, "%s center=(%.2f, %.2f)\n", sq, center.X, center.Y)
		return nil
	}

	order := g.VisualOrder(o)
	for row := 0; row < g.Size; row++ {
		cells := make([]string, g.Size)
		for col := range cells {
			cells[col] = fmt.Sprintf("%-3s", order[row*g.Size+col])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " "), " "))
	}
	return nil
}

func parsePoint(s string) (x, y float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("point must be x,y: %q", s)
	}
	if x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("point x: %w", err)
	}
	if y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("point y: %w", err)
	}
	return x, y, nil
}

func runPuzzle(ctx context.Context, c *cli.Command) error {
	var repo puzzle.Repository
	switch {
	case c.String("api") != "":
		repo = puzzle.NewHTTPSource(c.String("api"), puzzle.WithHTTPTimeout(10*time.Second))
	case c.String("seed") != "":
		m, err := puzzle.LoadFile(c.String("seed"))
		if err != nil {
			return err
		}
		repo = m
	default:
		m, err := puzzle.NewSampleRepository()
		if err != nil {
			return err
		}
		repo = m
	}

	var (
		p   *puzzle.Puzzle
		err error
	)
	if id := c.String("id"); id != "" {
		p, err = repo.ByID(ctx, id)
	} else {
		q := puzzle.Query{MinRating: int(c.Int("min-rating")), MaxRating: int(c.Int("max-rating"))}
		if t := strings.TrimSpace(c.String("theme")); t != "" {
			q.Themes = strings.Split(t, ",")
		}
		p, err = repo.Random(ctx, q.Normalized())
	}
	if err != nil {
		return err
	}

	engine := rules.NewChessEngine()
	solver, err := puzzle.NewSolver(engine, *p)
	if err != nil {
		return err
	}
	a, err := game.Replay(engine, p.FEN, nil)
	if err != nil {
		return err
	}
	// 정답 수순을 솔버 기준으로 재생해 SAN으로 출력
	for !solver.Complete() {
		hint, _ := solver.Hint()
		mv, err := rules.ParseUCI(hint, a.Grid())
		if err != nil {
			return err
		}
		st, err := a.ApplyMove(mv)
		if err != nil {
			return err
		}
		solver.Advance(*st.LastMove)
	}

	w := out(c)
	fmt.Fprintf(w, "%s  rating=%d  themes=%s\n", p.ID, p.Rating, strings.Join(p.Themes, ","))
	fmt.Fprintf(w, "fen: %s\n", p.FEN)
	fmt.Fprintf(w, "%s to move: %s\n", solver.Player(), formatLine(a.State().MoveHistory))
	return nil
}
