package puzzle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPSource reads puzzles from a remote puzzle API (GET /api/puzzles...).
// Responses use the {success, data, error} envelope.
type HTTPSource struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

type HTTPOption func(*HTTPSource)

func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) { s.timeout = d }
}

// WithDial replaces the dialer, e.g. with an in-memory listener in tests.
func WithDial(dial fasthttp.DialFunc) HTTPOption {
	return func(s *HTTPSource) { s.http.Dial = dial }
}

func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func queryValues(q Query) url.Values {
	v := url.Values{}
	v.Set("minRating", strconv.Itoa(q.MinRating))
	v.Set("maxRating", strconv.Itoa(q.MaxRating))
	if len(q.Themes) > 0 {
		v.Set("themes", strings.Join(q.Themes, ","))
	}
	return v
}

func (s *HTTPSource) Random(ctx context.Context, q Query) (*Puzzle, error) {
	var p Puzzle
	if err := s.get(ctx, "/api/puzzles/random", queryValues(q.Normalized()), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HTTPSource) ByID(ctx context.Context, id string) (*Puzzle, error) {
	var p Puzzle
	if err := s.get(ctx, "/api/puzzles/"+url.PathEscape(strings.TrimSpace(id)), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HTTPSource) List(ctx context.Context, q Query) ([]Puzzle, error) {
	q = q.Normalized()
	v := queryValues(q)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	out := []Puzzle{}
	if err := s.get(ctx, "/api/puzzles", v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) Search(ctx context.Context, term string, limit int) ([]Puzzle, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("search term is required")
	}
	v := url.Values{}
	v.Set("q", term)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	out := []Puzzle{}
	if err := s.get(ctx, "/api/puzzles/search", v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) Themes(ctx context.Context) ([]string, error) {
	out := []string{}
	if err := s.get(ctx, "/api/puzzles/themes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.get(ctx, "/api/puzzles/stats", nil, &st)
	return st, err
}

func (s *HTTPSource) get(ctx context.Context, path string, params url.Values, out any) error {
	uri := s.baseURL + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)
	req.Header.Set("Accept", "application/json")

	if err := s.http.DoDeadline(req, resp, s.deadline(ctx)); err != nil {
		return fmt.Errorf("puzzle api request: %w", err)
	}

	status := resp.StatusCode()
	if status == fasthttp.StatusNotFound {
		return ErrNotFound
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("puzzle api status=%d: decode: %w", status, err)
	}
	if status < 200 || status >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("puzzle api error: status=%d %s", status, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode puzzle data: %w", err)
	}
	return nil
}

func (s *HTTPSource) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(s.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

