package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/bridge"
	appcfg "github.com/park285/chessboard-core/internal/config"
	"github.com/park285/chessboard-core/internal/interaction"
	"github.com/park285/chessboard-core/internal/msgcat"
	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/puzzle"
	"github.com/park285/chessboard-core/internal/rules"
	"github.com/park285/chessboard-core/internal/sandbox"
	"github.com/park285/chessboard-core/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.Named("boardd")

	engine, err := newEngine(cfg)
	if err != nil {
		logger.Fatal("rules engine init error", zap.Error(err))
	}

	var store *session.Store
	if cfg.RedisURL != "" {
		store, err = session.NewStore(cfg.RedisURL, engine, cfg.SessionTTL())
		if err != nil {
			logger.Fatal("session store init error", zap.Error(err))
		}
		defer store.Close()
	} else {
		logger.Warn("REDIS_URL not set; sessions live only as long as the socket")
	}

	repo, closeRepo, err := newPuzzleRepository(cfg)
	if err != nil {
		logger.Fatal("puzzle repository init error", zap.Error(err))
	}
	defer closeRepo()

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	orientation, err := board.ParseColor(cfg.Orientation)
	if err != nil {
		logger.Fatal("orientation error", zap.Error(err))
	}
	opts := interaction.DefaultOptions()
	opts.Orientation = orientation
	opts.BoardPixels = cfg.BoardPixels
	opts.DragThreshold = cfg.DragThresholdPx
	opts.CaptureAnimation = cfg.CaptureAnimation()
	opts.MoveAnimation = cfg.MoveAnimation()

	srv, err := bridge.NewServer(bridge.Deps{
		Engine:         engine,
		StartFEN:       cfg.StartFEN,
		Controller:     opts,
		Store:          store,
		Puzzles:        repo,
		Messages:       messages,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		logger.Fatal("bridge init error", zap.Error(err))
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("engine", engine.Name()),
			zap.Bool("session_store", store != nil),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
}

func newEngine(cfg *appcfg.AppConfig) (rules.Engine, error) {
	switch cfg.RulesEngine {
	case appcfg.EngineDragontooth:
		return rules.NewDragonEngine(), nil
	case appcfg.EngineSandbox:
		return sandbox.FromPreset(cfg.SandboxPreset)
	default:
		return rules.NewChessEngine(), nil
	}
}

// newPuzzleRepository picks Postgres, then the remote API, then a seed file,
// then the bundled samples.
func newPuzzleRepository(cfg *appcfg.AppConfig) (puzzle.Repository, func(), error) {
	nop := func() {}
	switch {
	case cfg.DatabaseURL != "":
		repo, err := puzzle.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, nop, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nop, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case cfg.PuzzleAPIURL != "":
		return puzzle.NewHTTPSource(cfg.PuzzleAPIURL), nop, nil
	case cfg.PuzzleSeed != "":
		repo, err := puzzle.LoadFile(cfg.PuzzleSeed)
		return repo, nop, err
	default:
		repo, err := puzzle.NewSampleRepository()
		return repo, nop, err
	}
}
