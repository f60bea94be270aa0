package search

import (
	"context"
	"math/bits"
	"sync"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/seekerror/logw"
)

// Bound represents the bound of a -- possibly inexact -- search score.
type Bound uint8

const (
	NoBound Bound = iota
	ExactBound
	LowerBound
	UpperBound
)

func (b Bound) String() string {
	switch b {
	case ExactBound:
		return "Exact"
	case LowerBound:
		return "Lower"
	case UpperBound:
		return "Upper"
	default:
		return "?"
	}
}

// TranspositionTable caches search results keyed by position hash. Entries carry the
// best move found, the score with its bound, the search depth and a generation used
// for replacement. Mate scores are stored relative to the probing node so that they
// stay valid across move orders.
type TranspositionTable interface {
	// Probe returns the entry for the hash, if present. Ply converts mate scores
	// back to distance-from-root.
	Probe(hash board.Hash, ply int) (board.Move, Bound, int, Score, bool)
	// Store stores an entry, subject to the replacement policy.
	Store(hash board.Hash, move board.Move, bound Bound, depth int, score Score, ply int)

	// NewSearch advances the generation. Called at the start of each root search.
	NewSearch()
	// Resize discards all entries and reallocates to the given size in megabytes.
	// Must not be called during a search.
	Resize(ctx context.Context, megabytes uint64)
	// Size returns the size of the table in bytes.
	Size() uint64
	// Used returns the utilization as a fraction [0;1].
	Used() float64
}

// entry is a transposition table slot.
type entry struct {
	key   board.Hash
	move  uint32 // packed move, truncated to its 32-bit core
	eval  int16
	depth uint16 // 12 bits used
	gen   uint8
	bound Bound
}

const entrySize = 24 // unsafe.Sizeof(entry{}) with padding

// table is a fixed-size, direct-probed transposition table. Reads and writes are
// unsynchronized: the search is single-threaded and resize is only permitted between
// searches.
type table struct {
	entries    []entry
	mask       uint64
	generation uint8
	used       uint64

	mu sync.Mutex // guards resize
}

// NewTranspositionTable allocates a table of the given size in megabytes, rounded
// down to a power-of-two entry count.
func NewTranspositionTable(ctx context.Context, megabytes uint64) TranspositionTable {
	t := &table{}
	t.alloc(ctx, megabytes)
	return t
}

func (t *table) alloc(ctx context.Context, megabytes uint64) {
	size := megabytes << 20
	if size < entrySize {
		size = entrySize
	}
	n := uint64(1) << (63 - bits.LeadingZeros64(size/entrySize))

	logw.Infof(ctx, "Allocating %vMB TT with %v entries", megabytes, n)

	t.entries = make([]entry, n)
	t.mask = n - 1
	t.used = 0
}

func (t *table) Resize(ctx context.Context, megabytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alloc(ctx, megabytes)
}

func (t *table) NewSearch() {
	t.generation++
}

func (t *table) Size() uint64 {
	return uint64(len(t.entries)) * entrySize
}

func (t *table) Used() float64 {
	return float64(t.used) / float64(len(t.entries))
}

func (t *table) Probe(hash board.Hash, ply int) (board.Move, Bound, int, Score, bool) {
	e := &t.entries[uint64(hash)&t.mask]
	if e.bound == NoBound || e.key != hash {
		return board.NullMove, NoBound, 0, 0, false
	}
	return board.Move(e.move), e.bound, int(e.depth), scoreFromTable(Score(e.eval), ply), true
}

func (t *table) Store(hash board.Hash, move board.Move, bound Bound, depth int, score Score, ply int) {
	e := &t.entries[uint64(hash)&t.mask]

	// Replacement: an empty slot or an entry from an older generation always loses;
	// within the current generation, deeper entries are preferred.
	if e.bound != NoBound && e.gen == t.generation && int(e.depth) > depth && e.key != hash {
		return
	}
	if e.bound == NoBound {
		t.used++
	}

	*e = entry{
		key:   hash,
		move:  uint32(move),
		eval:  int16(scoreToTable(score, ply)),
		depth: uint16(depth) & 0xfff,
		gen:   t.generation,
		bound: bound,
	}
}

// scoreToTable offsets mate scores by the distance to root, storing them relative to
// the node.
func scoreToTable(s Score, ply int) Score {
	switch {
	case s >= mateBound:
		return s + Score(ply)
	case s <= -mateBound:
		return s - Score(ply)
	default:
		return s
	}
}

// scoreFromTable adds the distance to root back on retrieval.
func scoreFromTable(s Score, ply int) Score {
	switch {
	case s >= mateBound:
		return s - Score(ply)
	case s <= -mateBound:
		return s + Score(ply)
	default:
		return s
	}
}

// NoTranspositionTable is a nop implementation, used when the table is disabled.
type NoTranspositionTable struct{}

func (NoTranspositionTable) Probe(hash board.Hash, ply int) (board.Move, Bound, int, Score, bool) {
	return board.NullMove, NoBound, 0, 0, false
}

func (NoTranspositionTable) Store(hash board.Hash, move board.Move, bound Bound, depth int, score Score, ply int) {
}

func (NoTranspositionTable) NewSearch() {}

func (NoTranspositionTable) Resize(ctx context.Context, megabytes uint64) {}

func (NoTranspositionTable) Size() uint64 {
	return 0
}

func (NoTranspositionTable) Used() float64 {
	return 0
}
