package board_test

import (
	"math/rand"
	"testing"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/stretchr/testify/assert"
)

func TestBitboard(t *testing.T) {

	t.Run("popcount", func(t *testing.T) {
		tests := []struct {
			bb       board.Bitboard
			expected int
		}{
			{board.EmptyBitboard, 0},
			{board.BitMask(board.G4), 1},
			{board.BitMask(board.G3) | board.BitMask(board.G4), 2},
			{board.BitRank(board.Rank2), 8},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, tt.bb.PopCount())
		}
	})

	t.Run("popcount split", func(t *testing.T) {
		r := rand.New(rand.NewSource(1))
		for i := 0; i < 100; i++ {
			x := board.Bitboard(r.Uint64())
			mask := board.Bitboard(r.Uint64())
			assert.Equal(t, x.PopCount(), (x & mask).PopCount()+(x &^ mask).PopCount())
		}
	})

	t.Run("bits", func(t *testing.T) {
		var bb board.Bitboard
		bb.Set(board.C3)
		bb.Set(board.F7)
		assert.True(t, bb.IsSet(board.C3))
		assert.Equal(t, board.C3, bb.LSB())
		assert.Equal(t, board.F7, bb.MSB())

		bb.Toggle(board.C3)
		assert.False(t, bb.IsSet(board.C3))
		bb.Clear(board.F7)
		assert.Equal(t, board.EmptyBitboard, bb)
	})

	t.Run("lsb min", func(t *testing.T) {
		r := rand.New(rand.NewSource(2))
		for i := 0; i < 100; i++ {
			x := board.Bitboard(r.Uint64() | 1<<uint(r.Intn(64)))
			y := board.Bitboard(r.Uint64() | 1<<uint(r.Intn(64)))
			expected := x.LSB()
			if y.LSB() < expected {
				expected = y.LSB()
			}
			assert.Equal(t, expected, (x | y).LSB())
		}
	})

	t.Run("poplsb", func(t *testing.T) {
		bb := board.BitMask(board.B2) | board.BitMask(board.E5) | board.BitMask(board.H8)
		assert.Equal(t, board.B2, bb.PopLSB())
		assert.Equal(t, board.E5, bb.PopLSB())
		assert.Equal(t, board.H8, bb.PopLSB())
		assert.Equal(t, board.NoSquare, bb.PopLSB())
	})

	t.Run("string", func(t *testing.T) {
		tests := []struct {
			bb       board.Bitboard
			expected string
		}{
			{board.EmptyBitboard, "--------/--------/--------/--------/--------/--------/--------/--------"},
			{board.BitMask(board.A1), "--------/--------/--------/--------/--------/--------/--------/X-------"},
			{board.BitMask(board.H8), "-------X/--------/--------/--------/--------/--------/--------/--------"},
			{board.BitMask(board.G3) | board.BitMask(board.G4), "--------/--------/--------/--------/------X-/------X-/--------/--------"},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, tt.bb.String())
		}
	})
}

func TestBetween(t *testing.T) {

	t.Run("aligned", func(t *testing.T) {
		tests := []struct {
			from, to board.Square
			expected board.Bitboard
		}{
			{board.A1, board.A3, board.BitMask(board.A2)},
			{board.A3, board.A1, board.BitMask(board.A2)},
			{board.A1, board.H8, board.BitMask(board.B2) | board.BitMask(board.C3) | board.BitMask(board.D4) | board.BitMask(board.E5) | board.BitMask(board.F6) | board.BitMask(board.G7)},
			{board.C1, board.F1, board.BitMask(board.D1) | board.BitMask(board.E1)},
			{board.F1, board.C1, board.BitMask(board.D1) | board.BitMask(board.E1)},
			{board.H1, board.A8, board.BitMask(board.G2) | board.BitMask(board.F3) | board.BitMask(board.E4) | board.BitMask(board.D5) | board.BitMask(board.C6) | board.BitMask(board.B7)},
			{board.E1, board.E2, board.EmptyBitboard},
			{board.D4, board.D4, board.EmptyBitboard},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, board.Between(tt.from, tt.to), "between(%v,%v)", tt.from, tt.to)
		}
	})

	t.Run("chebyshev", func(t *testing.T) {
		// Aligned pairs have chebyshev-1 squares between them; others none.
		for from := board.ZeroSquare; from < board.NumSquares; from++ {
			for to := board.ZeroSquare; to < board.NumSquares; to++ {
				if from == to {
					continue
				}
				df := abs(from.File().V() - to.File().V())
				dr := abs(from.Rank().V() - to.Rank().V())

				aligned := df == 0 || dr == 0 || df == dr
				got := board.Between(from, to).PopCount()
				if !aligned {
					assert.Equal(t, 0, got, "between(%v,%v)", from, to)
				} else {
					assert.Equal(t, max(df, dr)-1, got, "between(%v,%v)", from, to)
				}
			}
		}
	})
}

func TestAttacks(t *testing.T) {

	t.Run("knight", func(t *testing.T) {
		tests := []struct {
			sq       board.Square
			expected string
		}{
			{board.A1, "--------/--------/--------/--------/--------/-X------/--X-----/--------"},
			{board.D4, "--------/--------/--X-X---/-X---X--/--------/-X---X--/--X-X---/--------"},
			{board.H8, "--------/-----X--/------X-/--------/--------/--------/--------/--------"},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, board.KnightAttacks(tt.sq).String(), "knight %v", tt.sq)
		}
	})

	t.Run("king", func(t *testing.T) {
		tests := []struct {
			sq       board.Square
			expected string
		}{
			{board.A1, "--------/--------/--------/--------/--------/--------/XX------/-X------"},
			{board.E4, "--------/--------/--------/---XXX--/---X-X--/---XXX--/--------/--------"},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, board.KingAttacks(tt.sq).String(), "king %v", tt.sq)
		}
	})

	t.Run("rook", func(t *testing.T) {
		// Empty board: full rank and file.
		assert.Equal(t, 14, board.RookAttacks(board.D4, board.EmptyBitboard).PopCount())

		// Blockers stop the ray, inclusively.
		occ := board.BitMask(board.D6) | board.BitMask(board.F4)
		bb := board.RookAttacks(board.D4, occ)
		assert.True(t, bb.IsSet(board.D5))
		assert.True(t, bb.IsSet(board.D6))
		assert.False(t, bb.IsSet(board.D7))
		assert.True(t, bb.IsSet(board.F4))
		assert.False(t, bb.IsSet(board.G4))
		assert.True(t, bb.IsSet(board.A4))
		assert.True(t, bb.IsSet(board.D1))
	})

	t.Run("bishop", func(t *testing.T) {
		assert.Equal(t, 13, board.BishopAttacks(board.D4, board.EmptyBitboard).PopCount())

		occ := board.BitMask(board.F6)
		bb := board.BishopAttacks(board.D4, occ)
		assert.True(t, bb.IsSet(board.E5))
		assert.True(t, bb.IsSet(board.F6))
		assert.False(t, bb.IsSet(board.G7))
		assert.True(t, bb.IsSet(board.A1))
		assert.True(t, bb.IsSet(board.A7))
		assert.True(t, bb.IsSet(board.G1))
	})

	t.Run("queen", func(t *testing.T) {
		assert.Equal(t, 27, board.QueenAttacks(board.D4, board.EmptyBitboard).PopCount())
	})

	t.Run("pawn", func(t *testing.T) {
		assert.Equal(t, board.BitMask(board.D5)|board.BitMask(board.F5), board.PawnAttacks(board.White, board.E4))
		assert.Equal(t, board.BitMask(board.D3)|board.BitMask(board.F3), board.PawnAttacks(board.Black, board.E4))
		assert.Equal(t, board.BitMask(board.B3), board.PawnAttacks(board.White, board.A2))
		assert.Equal(t, board.BitMask(board.G6), board.PawnAttacks(board.Black, board.H7))
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
