// Package bridge exposes board controllers over WebSocket. Each connection
// owns one interaction.Controller; pointer events come in as JSON and state,
// cue and message frames go out.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/interaction"
	"github.com/park285/chessboard-core/internal/msgcat"
	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/puzzle"
	"github.com/park285/chessboard-core/internal/render"
	"github.com/park285/chessboard-core/internal/rules"
	"github.com/park285/chessboard-core/internal/session"
)

// Deps wires a Server. Store and Puzzles are optional.
type Deps struct {
	Engine         rules.Engine
	StartFEN       string
	Controller     interaction.Options
	Store          *session.Store
	Puzzles        puzzle.Repository
	Messages       *msgcat.Catalog
	Renderer       render.BoardRenderer
	AllowedOrigins []string
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("bridge: rules engine is required")
	}
	// 시작 FEN이 엔진과 안 맞으면 모든 소켓이 열리지 않으므로 여기서 거부
	if fen := strings.TrimSpace(deps.StartFEN); fen != "" {
		pos, err := deps.Engine.Validate(fen)
		if err != nil {
			return nil, fmt.Errorf("bridge: start fen for %s: %w", deps.Engine.Name(), err)
		}
		deps.StartFEN = pos.FEN
	}
	if deps.Messages == nil {
		cat, err := msgcat.New("")
		if err != nil {
			return nil, err
		}
		deps.Messages = cat
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /board.png", s.handlePNG)
	if deps.Puzzles != nil {
		s.routePuzzles()
	}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engine":  s.deps.Engine.Name(),
		"session": s.deps.Store != nil,
		"puzzles": s.deps.Puzzles != nil,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.deps.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("board_ws_accept_failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	q := r.URL.Query()
	c, err := s.open(ctx, q.Get("session"), q.Get("orientation"))
	if err != nil {
		obslog.L().Error("board_ws_open_failed", zap.Error(err))
		_ = ws.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	obslog.L().Info("board_ws_connected",
		zap.String("session_id", c.sessionID),
		zap.String("engine", s.deps.Engine.Name()),
	)
	err = c.serve(ctx, ws)
	status := websocket.CloseStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
		obslog.L().Warn("board_ws_closed", zap.String("session_id", c.sessionID), zap.Error(err))
	} else {
		obslog.L().Info("board_ws_closed", zap.String("session_id", c.sessionID))
	}
}

// handlePNG renders ?fen= or ?session= as a PNG.
func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	q := r.URL.Query()

	o := board.White
	if v := q.Get("orientation"); v != "" {
		c, err := board.ParseColor(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		o = c
	}

	var st game.GameState
	if id := q.Get("session"); id != "" && s.deps.Store != nil {
		_, a, err := s.deps.Store.Restore(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		st = a.State()
	} else {
		fen := strings.TrimSpace(q.Get("fen"))
		if fen == "" {
			fen = s.startFEN()
		}
		a, err := game.Replay(s.deps.Engine, fen, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st = a.State()
	}

	var opts []render.Option
	if v, err := strconv.Atoi(q.Get("size")); err == nil && v >= 16 && v <= 256 {
		opts = append(opts, render.WithSquareSize(v))
	}
	r2 := s.deps.Renderer
	if len(opts) > 0 {
		r2 = render.New(opts...)
	}
	png, err := r2.RenderPNG(ctx, render.FromState(st, o))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) startFEN() string {
	if fen := strings.TrimSpace(s.deps.StartFEN); fen != "" {
		return fen
	}
	return s.deps.Engine.StartFEN()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
