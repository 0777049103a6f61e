package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/park285/chessboard-core/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
	}
	defer obslog.Sync()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "boardctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	engineFlag := &cli.StringFlag{
		Name:    "engine",
		Aliases: []string{"e"},
		Value:   "chess",
		Usage:   "rules engine: chess, dragontooth or a sandbox preset name",
	}
	fenFlag := &cli.StringFlag{
		Name:  "fen",
		Usage: "start position (defaults to the engine start position)",
	}
	orientFlag := &cli.StringFlag{
		Name:    "orientation",
		Aliases: []string{"o"},
		Value:   "white",
		Usage:   "side shown at the bottom",
	}

	return &cli.Command{
		Name:  "boardctl",
		Usage: "chess board core tooling",
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "render a position to PNG",
				ArgsUsage: "[uci moves...]",
				Flags: []cli.Flag{
					engineFlag, fenFlag, orientFlag,
					&cli.StringFlag{Name: "out", Value: "board.png", Usage: "output file"},
					&cli.IntFlag{Name: "size", Value: 64, Usage: "square size in pixels"},
				},
				Action: runRender,
			},
			{
				Name:      "play",
				Usage:     "apply UCI moves and print SAN, FEN and status",
				ArgsUsage: "<uci moves...>",
				Flags: []cli.Flag{
					engineFlag, fenFlag,
					&cli.BoolFlag{Name: "json", Usage: "print the final game state as JSON"},
				},
				Action: runPlay,
			},
			{
				Name:  "squares",
				Usage: "print squares in visual order, or map a point to a square",
				Flags: []cli.Flag{
					engineFlag, orientFlag,
					&cli.StringFlag{Name: "at", Usage: "board percent point as x,y"},
				},
				Action: runSquares,
			},
			{
				Name:  "puzzle",
				Usage: "fetch a puzzle and print its solution line",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api", Usage: "puzzle API base URL"},
					&cli.StringFlag{Name: "seed", Usage: "YAML puzzle file"},
					&cli.StringFlag{Name: "id", Usage: "puzzle id (random when empty)"},
					&cli.StringFlag{Name: "theme", Usage: "comma separated themes"},
					&cli.IntFlag{Name: "min-rating", Usage: "minimum rating"},
					&cli.IntFlag{Name: "max-rating", Usage: "maximum rating"},
				},
				Action: runPuzzle,
			},
		},
	}
}
