package search_test

import (
	"context"
	"testing"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspositionTable(t *testing.T) {
	ctx := context.Background()

	t.Run("store and probe", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)
		tt.NewSearch()

		hash := board.Hash(0xdeadbeef)
		move := board.NewMove(board.E2, board.E4, board.WhitePawn, board.NoPiece)

		tt.Store(hash, move, search.ExactBound, 5, 123, 0)

		got, bound, depth, score, ok := tt.Probe(hash, 0)
		require.True(t, ok)
		assert.True(t, got.Equals(move))
		assert.Equal(t, search.ExactBound, bound)
		assert.Equal(t, 5, depth)
		assert.Equal(t, search.Score(123), score)
	})

	t.Run("miss", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)

		_, _, _, _, ok := tt.Probe(board.Hash(42), 0)
		assert.False(t, ok)
	})

	t.Run("mate scores adjust by ply", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)
		tt.NewSearch()

		hash := board.Hash(7)
		mate := search.Score(search.InfScore - 6) // mate at ply 6, probed at ply 4

		tt.Store(hash, board.NullMove, search.ExactBound, 3, mate, 4)

		_, _, _, score, ok := tt.Probe(hash, 4)
		require.True(t, ok)
		assert.Equal(t, mate, score, "same ply recovers the same score")

		_, _, _, score, ok = tt.Probe(hash, 2)
		require.True(t, ok)
		assert.Equal(t, mate+2, score, "probed closer to the root, the mate is fewer plies from the root")
	})

	t.Run("same generation prefers depth", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)
		tt.NewSearch()

		entries := board.Hash(tt.Size() / 24)
		deep, shallow := board.Hash(5), board.Hash(5)+entries // same slot, different keys

		tt.Store(deep, board.NullMove, search.ExactBound, 9, 50, 0)
		tt.Store(shallow, board.NullMove, search.ExactBound, 2, 60, 0)

		_, _, depth, score, ok := tt.Probe(deep, 0)
		require.True(t, ok, "the deeper entry survives")
		assert.Equal(t, 9, depth)
		assert.Equal(t, search.Score(50), score)
	})

	t.Run("older generation is replaced", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)
		tt.NewSearch()

		tt.Store(board.Hash(3), board.NullMove, search.ExactBound, 9, 50, 0)

		tt.NewSearch()
		tt.Store(board.Hash(3), board.NullMove, search.LowerBound, 1, 70, 0)

		_, bound, depth, score, ok := tt.Probe(board.Hash(3), 0)
		require.True(t, ok)
		assert.Equal(t, search.LowerBound, bound)
		assert.Equal(t, 1, depth)
		assert.Equal(t, search.Score(70), score)
	})

	t.Run("size is a power of two of entries", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 4)
		entries := tt.Size() / 24
		assert.Equal(t, uint64(0), entries&(entries-1), "entry count is a power of two")
		assert.True(t, tt.Size() <= 4<<20)
	})

	t.Run("resize discards entries", func(t *testing.T) {
		tt := search.NewTranspositionTable(ctx, 1)
		tt.NewSearch()
		tt.Store(board.Hash(9), board.NullMove, search.ExactBound, 4, 10, 0)

		tt.Resize(ctx, 2)

		_, _, _, _, ok := tt.Probe(board.Hash(9), 0)
		assert.False(t, ok)
		assert.Equal(t, float64(0), tt.Used())
	})

	t.Run("nop table", func(t *testing.T) {
		tt := search.NoTranspositionTable{}
		tt.Store(board.Hash(1), board.NullMove, search.ExactBound, 1, 1, 0)
		_, _, _, _, ok := tt.Probe(board.Hash(1), 0)
		assert.False(t, ok)
		assert.Equal(t, uint64(0), tt.Size())
	})
}
