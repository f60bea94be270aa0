package board_test

import (
	"testing"

	"github.com/ferzchess/ferz/pkg/board"
	"github.com/ferzchess/ferz/pkg/board/fen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, position string) *board.Board {
	t.Helper()
	b, _, err := fen.Decode(position)
	require.NoError(t, err)
	return b
}

// checkInvariants verifies the bitboard redundancy: the color boards are the union
// of the piece boards, and the square array agrees with the piece boards.
func checkInvariants(t *testing.T, b *board.Board) {
	t.Helper()

	for c := board.ZeroColor; c < board.NumColors; c++ {
		var union board.Bitboard
		for _, k := range []board.Kind{board.Pawn, board.Knight, board.King, board.Queen, board.Bishop, board.Rook} {
			union |= b.BitboardPiece(board.NewPiece(k, c))
		}
		assert.Equal(t, union, b.BitboardColor(c), "color board %v", c)
	}

	for sq := board.ZeroSquare; sq < board.NumSquares; sq++ {
		p := b.Piece(sq)
		if p != board.NoPiece {
			assert.True(t, b.BitboardPiece(p).IsSet(sq), "piece board for %v at %v", p, sq)
		} else {
			for piece := board.NoPiece + 1; piece < board.NumPieces; piece++ {
				assert.False(t, b.BitboardPiece(piece).IsSet(sq), "ghost %v at %v", piece, sq)
			}
		}
	}

	assert.Equal(t, 1, b.BitboardPiece(board.WhiteKing).PopCount())
	assert.Equal(t, 1, b.BitboardPiece(board.BlackKing).PopCount())
}

func TestBoardMutation(t *testing.T) {

	t.Run("add remove move", func(t *testing.T) {
		b := board.NewBoard()
		b.AddPiece(board.E4, board.WhiteQueen)
		b.AddPiece(board.A8, board.BlackRook)

		assert.Equal(t, board.WhiteQueen, b.Piece(board.E4))
		assert.Equal(t, 900-500, b.Material())

		b.MovePiece(board.E4, board.E5)
		assert.Equal(t, board.NoPiece, b.Piece(board.E4))
		assert.Equal(t, board.WhiteQueen, b.Piece(board.E5))

		b.RemovePiece(board.E5)
		b.RemovePiece(board.A8)
		assert.Equal(t, 0, b.Material())
		assert.Equal(t, board.EmptyBitboard, b.Occupancy())
	})

	t.Run("hash tracks placement", func(t *testing.T) {
		b := board.NewBoard()
		empty := b.Hash()

		b.AddPiece(board.E4, board.WhiteQueen)
		assert.NotEqual(t, empty, b.Hash())
		b.RemovePiece(board.E4)
		assert.Equal(t, empty, b.Hash())
	})
}

func TestMakeUnmake(t *testing.T) {

	// Unmake(Make(m)) must restore the board bit-for-bit, including the hash, for
	// every legal move of a representative set of positions.
	positions := []string{
		fen.Initial,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", // kiwipete
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",         // en passant
		"r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1",                                 // castling
		"8/P6k/8/8/8/8/p6K/8 w - - 0 1",                                        // promotions
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",                            // pins and jumps
	}

	for _, position := range positions {
		t.Run(position, func(t *testing.T) {
			b := decode(t, position)
			before := *b.Clone()

			for _, m := range board.PseudoLegalMoves(b) {
				u := b.Make(m)
				checkInvariants(t, b)
				b.Unmake(m, u)

				require.Equal(t, before, *b, "restore after %v", m)
			}
		})
	}
}

func TestCastlingRights(t *testing.T) {
	const pos = "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1"

	t.Run("king move clears both", func(t *testing.T) {
		b := decode(t, pos)
		m, err := board.ParseCoordinate("e1d1", b)
		require.NoError(t, err)

		b.Make(m)
		assert.False(t, b.Castling().IsAllowed(board.WhiteKingSide))
		assert.False(t, b.Castling().IsAllowed(board.WhiteQueenSide))
		assert.True(t, b.Castling().IsAllowed(board.BlackKingSide))
	})

	t.Run("rook move clears side", func(t *testing.T) {
		b := decode(t, pos)
		m, err := board.ParseCoordinate("a1b1", b)
		require.NoError(t, err)

		b.Make(m)
		assert.False(t, b.Castling().IsAllowed(board.WhiteQueenSide))
		assert.True(t, b.Castling().IsAllowed(board.WhiteKingSide))
	})

	t.Run("rook capture clears victim side", func(t *testing.T) {
		b := decode(t, pos)
		m, err := board.ParseCoordinate("a1a8", b)
		require.NoError(t, err)

		b.Make(m)
		assert.False(t, b.Castling().IsAllowed(board.BlackQueenSide))
		assert.True(t, b.Castling().IsAllowed(board.BlackKingSide))
	})

	t.Run("castling moves king and rook", func(t *testing.T) {
		b := decode(t, pos)
		m, err := board.ParseCoordinate("e1g1", b)
		require.NoError(t, err)
		require.Equal(t, board.KingSideCastle, m.Castle())

		u := b.Make(m)
		assert.Equal(t, board.WhiteKing, b.Piece(board.G1))
		assert.Equal(t, board.WhiteRook, b.Piece(board.F1))
		assert.Equal(t, board.NoPiece, b.Piece(board.E1))
		assert.Equal(t, board.NoPiece, b.Piece(board.H1))

		b.Unmake(m, u)
		assert.Equal(t, board.WhiteKing, b.Piece(board.E1))
		assert.Equal(t, board.WhiteRook, b.Piece(board.H1))
	})
}

func TestEnPassant(t *testing.T) {

	t.Run("set on double push only", func(t *testing.T) {
		b := decode(t, fen.Initial)

		m, err := board.ParseCoordinate("e2e4", b)
		require.NoError(t, err)
		b.Make(m)
		assert.Equal(t, board.FileE, b.EnPassantFile())

		m, err = board.ParseCoordinate("g8f6", b)
		require.NoError(t, err)
		b.Make(m)
		assert.False(t, b.EnPassantFile().IsValid())
	})

	t.Run("capture and restore", func(t *testing.T) {
		b := decode(t, "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3")
		before := *b.Clone()

		m, err := board.ParseCoordinate("e5d6", b)
		require.NoError(t, err)
		require.True(t, m.IsEnPassant())

		u := b.Make(m)
		assert.Equal(t, board.WhitePawn, b.Piece(board.D6))
		assert.Equal(t, board.NoPiece, b.Piece(board.D5), "captured pawn removed")
		assert.Equal(t, board.NoPiece, b.Piece(board.E5))
		checkInvariants(t, b)

		b.Unmake(m, u)
		assert.Equal(t, before, *b)
	})
}

func TestIsAttacked(t *testing.T) {
	b := decode(t, "4k3/8/4r3/8/8/8/3P4/4K3 w - - 0 1")

	assert.True(t, b.IsAttacked(board.E1, board.Black), "rook attacks down the file")
	assert.True(t, b.IsChecked(board.White))
	assert.False(t, b.IsChecked(board.Black))
	assert.True(t, b.IsAttacked(board.E3, board.White), "pawn attack")
	assert.False(t, b.IsAttacked(board.D3, board.Black))
}
