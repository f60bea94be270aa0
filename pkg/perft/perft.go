// Package perft counts the leaf nodes of the game tree to a fixed depth. It is the
// primary correctness benchmark for move generation.
//
// See: https://www.chessprogramming.org/Perft_Results.
package perft

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/seekerror/logw"
	"go.uber.org/atomic"
)

// Observer receives perft progress: one partial result per root move and a final
// total. No events are delivered after an abort.
type Observer interface {
	// PartialResult is invoked with the subtree count of one root move.
	PartialResult(move board.Move, count uint64)
	// Result is invoked once with the total leaf count and the elapsed time.
	Result(total uint64, elapsed time.Duration)
}

// Perft is one perft computation. Root moves are fanned out across a worker pool.
type Perft struct {
	b       *board.Board
	depth   int
	workers int

	abort atomic.Bool
}

// New returns a perft computation of the given depth. Workers defaults to the CPU
// count if zero.
func New(b *board.Board, depth, workers int) *Perft {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Perft{b: b.Clone(), depth: depth, workers: workers}
}

// RunParallel starts the computation in the background. The observer receives the
// results as they come in, from multiple goroutines.
func (p *Perft) RunParallel(ctx context.Context, obs Observer) {
	go p.run(ctx, obs)
}

// Abort stops the computation. Workers unwind at the next node; no further observer
// events are delivered.
func (p *Perft) Abort() {
	p.abort.Store(true)
}

func (p *Perft) run(ctx context.Context, obs Observer) {
	start := time.Now()

	jobs := make(chan board.Move)
	var total atomic.Uint64
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b := p.b.Clone()
			for move := range jobs {
				u := b.Make(move)
				count := p.leaves(b, p.depth-1)
				b.Unmake(move, u)

				if p.abort.Load() {
					continue
				}
				total.Add(count)
				obs.PartialResult(move, count)
			}
		}()
	}

	for _, move := range board.LegalMoves(p.b) {
		jobs <- move
	}
	close(jobs)
	wg.Wait()

	if p.abort.Load() {
		logw.Debugf(ctx, "Perft aborted after %v", time.Since(start))
		return
	}
	obs.Result(total.Load(), time.Since(start))
}

func (p *Perft) leaves(b *board.Board, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	if p.abort.Load() {
		return 0
	}

	us := b.SideToMove()
	var count uint64
	for _, move := range board.PseudoLegalMoves(b) {
		u := b.Make(move)
		if !b.IsChecked(us) {
			count += p.leaves(b, depth-1)
		}
		b.Unmake(move, u)
	}
	return count
}

// Count returns the leaf count single-threaded. Convenience for tests and tools.
func Count(b *board.Board, depth int) uint64 {
	p := &Perft{b: b, depth: depth}
	return p.leaves(b.Clone(), depth)
}
