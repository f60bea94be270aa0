package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ferzchess/ferz/pkg/engine"
	"github.com/ferzchess/ferz/pkg/search"
	"github.com/ferzchess/ferz/pkg/timectl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// events records engine observer callbacks.
type events struct {
	mu         sync.Mutex
	searches   int
	moves      []string
	perftTotal uint64
	perftDone  chan struct{}
}

func newEvents() *events {
	return &events{perftDone: make(chan struct{})}
}

func (e *events) SearchStarted() {}

func (e *events) IterationCompleted(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}

func (e *events) NewBestMove(pv []string, score search.Score, depth int, elapsed time.Duration, nodes uint64) {
}

func (e *events) SearchCompleted(move string, pv []string, stats search.Stats) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.searches++
	e.moves = append(e.moves, move)
}

func (e *events) PerftPartial(move string, count uint64) {}

func (e *events) PerftCompleted(total uint64, elapsed time.Duration) {
	e.perftTotal = total
	close(e.perftDone)
}

func (e *events) searchCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searches
}

func newEngine(t *testing.T) (*engine.Engine, *events) {
	t.Helper()

	e := engine.New(context.Background(), "test", "tester", engine.Options{MaxDepth: 2})
	ev := newEvents()
	e.SetObserver(ev)

	require.NoError(t, e.SetTimeControl(timectl.PerMove{MoveTime: 200 * time.Millisecond}))
	return e, ev
}

func TestStateMachine(t *testing.T) {

	t.Run("starts observing", func(t *testing.T) {
		e, _ := newEngine(t)
		assert.Equal(t, engine.Observing, e.State())
	})

	t.Run("invalid commands per state", func(t *testing.T) {
		e, _ := newEngine(t)

		// Observing: force and stop are invalid.
		assert.ErrorIs(t, e.Force(), engine.ErrInvalidCommand)
		assert.ErrorIs(t, e.Stop(), engine.ErrInvalidCommand)

		// Waiting: setboard and perft are invalid.
		require.NoError(t, e.NewGame())
		require.Equal(t, engine.Waiting, e.State())
		assert.ErrorIs(t, e.SetFEN("8/8/8/4k3/8/8/8/4K3 w - - 0 1"), engine.ErrInvalidCommand)
		assert.ErrorIs(t, e.RunPerft(3, 1), engine.ErrInvalidCommand)
	})

	t.Run("go searches and moves", func(t *testing.T) {
		e, ev := newEngine(t)

		require.NoError(t, e.Go())
		require.NoError(t, e.Stop())

		assert.Equal(t, engine.Waiting, e.State())
		assert.Equal(t, 1, ev.searchCount(), "exactly one completion")
		assert.NotEmpty(t, ev.moves[0], "the engine made a move")
	})

	t.Run("user move answers in waiting", func(t *testing.T) {
		e, ev := newEngine(t)

		require.NoError(t, e.NewGame())
		require.NoError(t, e.UserMove("e2e4"))

		// The engine searches and answers.
		require.Eventually(t, func() bool {
			return e.State() == engine.Waiting && ev.searchCount() == 1
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("user move in observing does not reply", func(t *testing.T) {
		e, ev := newEngine(t)

		require.NoError(t, e.UserMove("e2e4"))
		assert.Equal(t, engine.Observing, e.State())
		assert.Equal(t, 0, ev.searchCount())
	})

	t.Run("illegal user move", func(t *testing.T) {
		e, _ := newEngine(t)

		assert.Error(t, e.UserMove("e2e5"))
		assert.Error(t, e.UserMove("zzz"))
		assert.Equal(t, engine.Observing, e.State())
	})

	t.Run("force aborts without moving", func(t *testing.T) {
		e, ev := newEngine(t)
		require.NoError(t, e.SetTimeControl(timectl.PerMove{MoveTime: time.Minute}))
		require.NoError(t, e.SetDepth(64))

		require.NoError(t, e.Go())
		require.Equal(t, engine.Searching, e.State())

		require.NoError(t, e.Force())
		assert.Equal(t, engine.Observing, e.State())
		assert.Equal(t, 0, ev.searchCount(), "no completion notification after force")
	})

	t.Run("state discipline sequence", func(t *testing.T) {
		// setboard; go; stop; go; force must end in Observing with the worker
		// joined and no pending callbacks.
		e, ev := newEngine(t)

		require.NoError(t, e.SetFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"))
		require.NoError(t, e.Go())
		require.NoError(t, e.Stop())
		require.Equal(t, engine.Waiting, e.State())

		require.NoError(t, e.Go())
		require.NoError(t, e.Force())
		assert.Equal(t, engine.Observing, e.State())

		count := ev.searchCount()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, count, ev.searchCount(), "no late callbacks")
	})

	t.Run("perft", func(t *testing.T) {
		e, ev := newEngine(t)

		require.NoError(t, e.RunPerft(3, 2))

		select {
		case <-ev.perftDone:
		case <-time.After(30 * time.Second):
			t.Fatal("perft did not complete")
		}

		assert.Equal(t, uint64(8902), ev.perftTotal)
		require.Eventually(t, func() bool {
			return e.State() == engine.Observing
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("new resets to waiting", func(t *testing.T) {
		e, _ := newEngine(t)

		require.NoError(t, e.UserMove("e2e4"))
		require.NoError(t, e.NewGame())

		assert.Equal(t, engine.Waiting, e.State())
		assert.Contains(t, e.Position(), "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR")
	})

	t.Run("options mutate in waiting", func(t *testing.T) {
		e, _ := newEngine(t)
		require.NoError(t, e.NewGame())

		require.NoError(t, e.SetDepth(3))
		require.NoError(t, e.SetHash(1))
		require.NoError(t, e.SetTimeControl(timectl.Incremental{Base: time.Second, Increment: 10 * time.Millisecond}))

		assert.Equal(t, 3, e.Options().MaxDepth)
		assert.Equal(t, uint(1), e.Options().Hash)
	})
}

func TestUserMoveSAN(t *testing.T) {
	e, _ := newEngine(t)

	require.NoError(t, e.UserMove("e4"))
	require.NoError(t, e.UserMove("Nf6"))
	assert.Contains(t, e.Position(), "rnbqkb1r/pppppppp/5n2/8/4P3/8/PPPP1PPP/RNBQKBNR w")
}

func TestPositionRoundTrip(t *testing.T) {
	e, _ := newEngine(t)

	const pos = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	require.NoError(t, e.SetFEN(pos))
	assert.Equal(t, pos, e.Position())
}
