package search

import (
	"context"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/timectl"
	"go.uber.org/atomic"
)

// initialCheckInterval is the node count before the first time check, while no
// nodes-per-second estimate exists yet.
const initialCheckInterval = 1000

// Search is a single search of one position: a private board snapshot, a time
// manager and a depth limit. It runs iterative deepening from depth 1 and reports
// progress through an Observer. A search runs once.
type Search struct {
	b        *board.Board
	tm       timectl.Manager
	tt       TranspositionTable
	maxDepth int

	abort  atomic.Bool
	halted bool

	obs       Observer
	nodes     uint64
	ttHits    uint64
	nextCheck uint64
}

// New returns a search over the given board snapshot. The board must not be shared:
// the search mutates it with make/unmake as it explores.
func New(b *board.Board, tm timectl.Manager, tt TranspositionTable, maxDepth int) *Search {
	return &Search{b: b, tm: tm, tt: tt, maxDepth: maxDepth, nextCheck: initialCheckInterval}
}

// Halt requests the search to stop. The next periodic check observes the flag and
// the search unwinds; the last completed iteration's PV is reported. Idempotent and
// safe from any goroutine.
func (s *Search) Halt() {
	s.abort.Store(true)
}

// Run performs the search. It always ends with exactly one SearchCompleted event.
func (s *Search) Run(ctx context.Context, obs Observer) {
	s.obs = obs
	s.tt.NewSearch()
	s.tm.SearchStarted()
	obs.SearchStarted()

	start := time.Now()
	var best PV

	for depth := 1; depth <= s.maxDepth; depth++ {
		if depth > 1 && (s.halted || s.abort.Load()) {
			break
		}
		if depth > 1 && !s.tm.CanStartNewIteration() {
			break
		}

		s.tm.IterationStarted()
		obs.IterationStarted(depth)

		score, moves := s.alphabeta(0, depth, NegInfScore, InfScore)
		if s.halted {
			break // partial iteration, keep the previous PV
		}

		pv := PV{
			Depth: depth,
			Moves: moves,
			Score: score,
			Nodes: s.nodes,
			Time:  time.Since(start),
		}
		s.tm.IterationCompleted()
		best = pv
		obs.IterationCompleted(pv)

		if d, ok := score.MateDistance(); ok && d <= depth {
			break // forced mate within the horizon; deeper search cannot improve
		}
	}

	stats := Stats{
		Nodes:  s.nodes,
		TTHits: s.ttHits,
		Depth:  best.Depth,
		Time:   time.Since(start),
	}
	obs.SearchCompleted(best, stats)
}

// checkAbort polls the halt flag and the time manager at the interval the manager
// derives from the search speed.
func (s *Search) checkAbort() bool {
	if s.halted {
		return true
	}
	if s.nodes >= s.nextCheck {
		if s.abort.Load() || !s.tm.CanContinue() {
			s.halted = true
			return true
		}
		interval := s.tm.NodesBeforeNextCheck(s.nodes)
		if interval < initialCheckInterval {
			interval = initialCheckInterval
		}
		s.nextCheck = s.nodes + interval
	}
	return false
}

// alphabeta is a fail-soft negamax alpha-beta search. Legality is discovered by
// trial make/unmake; ply is the distance from root.
func (s *Search) alphabeta(ply, depth int, alpha, beta Score) (Score, []board.Move) {
	if s.checkAbort() {
		return 0, nil
	}

	if ply > 0 && s.b.HalfMoveClock() >= 100 {
		return 0, nil // fifty-move rule
	}

	hash := s.b.Hash()
	ttMove := board.NullMove
	if move, bound, d, score, ok := s.tt.Probe(hash, ply); ok {
		s.ttHits++
		ttMove = move
		if ply > 0 && d >= depth {
			switch bound {
			case ExactBound:
				return score, nil
			case LowerBound:
				if score >= beta {
					return score, nil
				}
			case UpperBound:
				if score <= alpha {
					return score, nil
				}
			}
		}
	}

	s.nodes++
	if depth == 0 {
		return s.evaluate(), nil
	}

	us := s.b.SideToMove()
	moves := board.NewMoveList(board.PseudoLegalMoves(s.b), board.First(ttMove, MVVLVA))

	hasLegalMove := false
	bound := UpperBound
	var pv []board.Move

	for {
		move, ok := moves.Next()
		if !ok {
			break
		}

		u := s.b.Make(move)
		if s.b.IsChecked(us) {
			s.b.Unmake(move, u) // skip: not legal
			continue
		}
		hasLegalMove = true

		score, rem := s.alphabeta(ply+1, depth-1, -beta, -alpha)
		score = -score
		s.b.Unmake(move, u)

		if s.halted {
			return 0, nil
		}

		if score > alpha {
			alpha = score
			bound = ExactBound
			pv = append([]board.Move{move}, rem...)

			if ply == 0 {
				s.obs.NewBestMove(PV{Depth: depth, Moves: pv, Score: alpha, Nodes: s.nodes})
			}
			if alpha >= beta {
				bound = LowerBound
				break // cutoff
			}
		}
	}

	if !hasLegalMove {
		if s.b.IsChecked(us) {
			return MatedIn(ply), nil
		}
		return 0, nil // stalemate
	}

	s.tt.Store(hash, firstOrNull(pv), bound, depth, alpha, ply)
	return alpha, pv
}

// evaluate scores the position by material, from the mover's perspective.
func (s *Search) evaluate() Score {
	material := s.b.Material() * s.b.SideToMove().Unit()
	if material > int(mateBound)-1 {
		material = int(mateBound) - 1
	}
	if material < -int(mateBound)+1 {
		material = -int(mateBound) + 1
	}
	return Score(material)
}

// nominalValue is the pawn-unit piece value by kind, for move ordering.
var nominalValue = [board.NumKinds]int{0, 1, 3, 0, 9, 3, 5}

// MVVLVA orders captures most-valuable-victim first, least-valuable-attacker second.
// Non-gaining moves rank zero.
func MVVLVA(m board.Move) board.MovePriority {
	gain := nominalValue[m.Capture().Kind()]
	if p := m.Promotion(); p != board.NoKind {
		gain += nominalValue[p] - nominalValue[board.Pawn]
	}
	if gain <= 0 {
		return 0
	}
	return board.MovePriority(100*gain - nominalValue[m.Piece().Kind()])
}

func firstOrNull(pv []board.Move) board.Move {
	if len(pv) == 0 {
		return board.NullMove
	}
	return pv[0]
}
