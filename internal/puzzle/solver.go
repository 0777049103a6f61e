package puzzle

import (
	"fmt"
	"strings"
	"sync"

	"github.com/park285/chessboard-core/internal/board"
	"github.com/park285/chessboard-core/internal/game"
	"github.com/park285/chessboard-core/internal/rules"
)

type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictComplete  Verdict = "complete"
)

// Solver tracks one attempt at a puzzle. The solution line is resolved to
// concrete moves up front, so SAN and UCI entries compare the same way.
type Solver struct {
	mu       sync.Mutex
	puzzle   Puzzle
	player   board.Color
	line     []rules.MoveRequest
	next     int
	mistakes int
}

func NewSolver(engine rules.Engine, p Puzzle) (*Solver, error) {
	pos, err := engine.Validate(p.FEN)
	if err != nil {
		return nil, fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	if len(p.SolutionMoves) == 0 {
		return nil, fmt.Errorf("puzzle %s: empty solution", p.ID)
	}
	s := &Solver{puzzle: clonePuzzle(p), player: pos.Turn}
	fen := pos.FEN
	for i, m := range p.SolutionMoves {
		mv, err := Resolve(engine, fen, m)
		if err != nil {
			return nil, fmt.Errorf("puzzle %s move %d %q: %w", p.ID, i+1, m, err)
		}
		out, err := engine.Apply(fen, mv)
		if err != nil {
			return nil, fmt.Errorf("puzzle %s move %d %q: %w", p.ID, i+1, m, err)
		}
		s.line = append(s.line, rules.MoveRequest{From: mv.From, To: mv.To, Promotion: out.Promotion})
		fen = out.Position.FEN
	}
	return s, nil
}

// Resolve turns a UCI or SAN string into a legal move in fen.
func Resolve(engine rules.Engine, fen, move string) (rules.MoveRequest, error) {
	move = strings.TrimSpace(move)
	grid := board.Grid{Size: engine.GridSize()}
	if mv, err := rules.ParseUCI(move, grid); err == nil {
		if _, err := engine.Apply(fen, mv); err == nil {
			return mv, nil
		}
	}
	pos, err := engine.Validate(fen)
	if err != nil {
		return rules.MoveRequest{}, err
	}
	want := normalizeSAN(move)
	for _, from := range grid.Squares() {
		pc, ok := pos.Pieces[from]
		if !ok || pc.Color != pos.Turn {
			continue
		}
		targets, err := engine.LegalTargets(fen, from)
		if err != nil {
			return rules.MoveRequest{}, err
		}
		for _, to := range targets {
			mv := rules.WithDefaultPromotion(pos, rules.MoveRequest{From: from, To: to})
			candidates := []rules.MoveRequest{mv}
			if mv.Promotion != board.NoPieceType {
				candidates = candidates[:0]
				for _, pt := range []board.PieceType{board.Queen, board.Rook, board.Bishop, board.Knight} {
					candidates = append(candidates, rules.MoveRequest{From: from, To: to, Promotion: pt})
				}
			}
			for _, c := range candidates {
				out, err := engine.Apply(fen, c)
				if err == nil && normalizeSAN(out.SAN) == want {
					return c, nil
				}
			}
		}
	}
	return rules.MoveRequest{}, fmt.Errorf("%w: %s", rules.ErrIllegalMove, move)
}

func normalizeSAN(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "+#!?")
}

func (s *Solver) Puzzle() Puzzle { return clonePuzzle(s.puzzle) }

// Player is the side the solver plays; the other side's moves are replies.
func (s *Solver) Player() board.Color { return s.player }

// Allow reports whether mv is the next solution move. A wrong move on the
// player's turn counts as a mistake. It fits interaction.MoveFilter.
func (s *Solver) Allow(mv game.MoveRequest, st game.GameState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.line) {
		return true
	}
	if st.CurrentPlayer != s.player {
		return true
	}
	ok := sameMove(s.line[s.next], mv)
	if !ok {
		s.mistakes++
	}
	return ok
}

// Advance records an applied move.
func (s *Solver) Advance(rec game.MoveRecord) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.line) {
		return VerdictComplete
	}
	if !sameMove(s.line[s.next], rules.MoveRequest{From: rec.From, To: rec.To, Promotion: rec.Promotion}) {
		return VerdictIncorrect
	}
	s.next++
	if s.next == len(s.line) {
		return VerdictComplete
	}
	return VerdictCorrect
}

// Reply returns the opponent's next solution move when it is their turn.
func (s *Solver) Reply(st game.GameState) (game.MoveRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.line) || st.CurrentPlayer == s.player {
		return game.MoveRequest{}, false
	}
	return s.line[s.next], true
}

// Hint returns the expected next move in UCI.
func (s *Solver) Hint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.line) {
		return "", false
	}
	return s.line[s.next].UCI(), true
}

func (s *Solver) Progress() (done, total, mistakes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, len(s.line), s.mistakes
}

func (s *Solver) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next >= len(s.line)
}

func sameMove(want, got rules.MoveRequest) bool {
	if want.From != got.From || want.To != got.To {
		return false
	}
	return want.Promotion == got.Promotion || (want.Promotion == board.Queen && got.Promotion == board.NoPieceType)
}
