package bridge

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chessboard-core/internal/obslog"
	"github.com/park285/chessboard-core/internal/puzzle"
)

// apiResponse is the {success, data, error} envelope puzzle.HTTPSource reads.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) routePuzzles() {
	s.mux.HandleFunc("GET /api/puzzles", s.apiList)
	s.mux.HandleFunc("GET /api/puzzles/random", s.apiRandom)
	s.mux.HandleFunc("GET /api/puzzles/search", s.apiSearch)
	s.mux.HandleFunc("GET /api/puzzles/themes", s.apiThemes)
	s.mux.HandleFunc("GET /api/puzzles/stats", s.apiStats)
	s.mux.HandleFunc("GET /api/puzzles/{id}", s.apiByID)
}

func parseQuery(r *http.Request) puzzle.Query {
	v := r.URL.Query()
	q := puzzle.Query{}
	q.MinRating, _ = strconv.Atoi(v.Get("minRating"))
	q.MaxRating, _ = strconv.Atoi(v.Get("maxRating"))
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	q.Offset, _ = strconv.Atoi(v.Get("offset"))
	if t := strings.TrimSpace(v.Get("themes")); t != "" {
		q.Themes = strings.Split(t, ",")
	}
	return q.Normalized()
}

func (s *Server) apiList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Puzzles.List(r.Context(), parseQuery(r))
	s.reply(w, list, err)
}

func (s *Server) apiRandom(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Puzzles.Random(r.Context(), parseQuery(r))
	s.reply(w, p, err)
}

func (s *Server) apiByID(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Puzzles.ByID(r.Context(), r.PathValue("id"))
	s.reply(w, p, err)
}

func (s *Server) apiSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "q is required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.deps.Puzzles.Search(r.Context(), term, limit)
	s.reply(w, list, err)
}

func (s *Server) apiThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := s.deps.Puzzles.Themes(r.Context())
	s.reply(w, themes, err)
}

func (s *Server) apiStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Puzzles.Stats(r.Context())
	s.reply(w, st, err)
}

func (s *Server) reply(w http.ResponseWriter, data any, err error) {
	switch {
	case errors.Is(err, puzzle.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiResponse{Error: "puzzle not found"})
	case err != nil:
		obslog.L().Error("puzzle_api_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, apiResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
	}
}
