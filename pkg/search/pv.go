// Package search contains the iterative-deepening search, its transposition table
// and the searcher worker that runs searches for the engine.
package search

import (
	"fmt"
	"math"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
)

// PV represents the principal variation for some search depth.
type PV struct {
	Depth int           // depth of search
	Moves []board.Move  // principal variation
	Score Score         // evaluation at depth
	Nodes uint64        // interior/leaf nodes searched
	Time  time.Duration // time taken by search
}

// Best returns the first move of the variation, if any.
func (p PV) Best() (board.Move, bool) {
	if len(p.Moves) == 0 {
		return board.NullMove, false
	}
	return p.Moves[0], true
}

func (p PV) String() string {
	return fmt.Sprintf("depth=%v score=%v nodes=%v time=%v pv=%v",
		p.Depth, p.Score, p.Nodes, p.Time, board.PrintMoves(p.Moves))
}

// Stats summarizes a completed search.
type Stats struct {
	Nodes  uint64        // nodes searched, interior and leaf
	TTHits uint64        // transposition table hits
	Depth  int           // deepest completed iteration
	Time   time.Duration // total search time
}

// BranchFactor returns the effective branching factor, the depth-th root of the node
// count.
func (s Stats) BranchFactor() float64 {
	if s.Depth == 0 || s.Nodes == 0 {
		return 0
	}
	return math.Pow(float64(s.Nodes), 1/float64(s.Depth))
}

func (s Stats) String() string {
	return fmt.Sprintf("nodes=%v tt=%v depth=%v time=%v bf=%.2f", s.Nodes, s.TTHits, s.Depth, s.Time, s.BranchFactor())
}

// Observer receives search progress events. The engine and the shell adapters
// subscribe independently; the time manager is driven directly by the search.
type Observer interface {
	// SearchStarted is invoked when the search begins.
	SearchStarted()
	// IterationStarted is invoked when an iteration begins.
	IterationStarted(depth int)
	// NewBestMove is invoked when the root best move changes mid-iteration.
	NewBestMove(pv PV)
	// IterationCompleted is invoked after each completed iteration.
	IterationCompleted(pv PV)
	// SearchCompleted is invoked exactly once, when the search ends or is halted.
	// The PV is from the last completed iteration.
	SearchCompleted(pv PV, stats Stats)
}
