// Package fen contains utilities for reading and writing positions in XFEN
// notation: FEN extended with Shredder-style castling letters so Chess960
// positions round-trip.
package fen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ferzchess/ferz/pkg/board"
)

const (
	Initial = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// ErrInvalidFen indicates a malformed XFEN string.
var ErrInvalidFen = errors.New("invalid fen")

// Decode returns a new board and the fullmove number from an XFEN description.
// Only the piece placement is mandatory; the remaining fields default to white to
// move, no castling, no en passant, zero clocks.
//
// Example:
//
//	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
func Decode(fen string) (*board.Board, int, error) {
	parts := strings.Fields(strings.TrimSpace(fen))
	if len(parts) == 0 {
		return nil, 0, fmt.Errorf("%w: empty: '%v'", ErrInvalidFen, fen)
	}

	b := board.NewBoard()

	// (1) Piece placement, rank 8 first, file a through h, digits for empty runs.

	rank := board.Rank8
	file := board.FileA
	for _, r := range parts[0] {
		switch {
		case r == '/':
			if file != board.NumFiles || rank == board.Rank1 {
				return nil, 0, fmt.Errorf("%w: bad rank break: '%v'", ErrInvalidFen, fen)
			}
			rank--
			file = board.FileA

		case unicode.IsDigit(r):
			file += board.File(r - '0')
			if file > board.NumFiles {
				return nil, 0, fmt.Errorf("%w: rank overflow: '%v'", ErrInvalidFen, fen)
			}

		default:
			p, ok := board.ParsePiece(r)
			if !ok || file >= board.NumFiles {
				return nil, 0, fmt.Errorf("%w: bad piece '%v': '%v'", ErrInvalidFen, string(r), fen)
			}
			b.AddPiece(board.NewSquare(file, rank), p)
			file++
		}
	}
	if rank != board.Rank1 || file != board.NumFiles {
		return nil, 0, fmt.Errorf("%w: incomplete placement: '%v'", ErrInvalidFen, fen)
	}

	if b.BitboardPiece(board.WhiteKing).PopCount() != 1 || b.BitboardPiece(board.BlackKing).PopCount() != 1 {
		return nil, 0, fmt.Errorf("%w: invalid number of kings: '%v'", ErrInvalidFen, fen)
	}

	// (2) Active color: "w" or "b". Defaults to white when omitted.

	if len(parts) > 1 {
		switch parts[1] {
		case "w", "W":
			b.SetSideToMove(board.White)
		case "b", "B":
			b.SetSideToMove(board.Black)
		default:
			return nil, 0, fmt.Errorf("%w: bad side to move: '%v'", ErrInvalidFen, fen)
		}
	}

	// (3) Castling availability: "-" or a combination of K, Q, k, q and file
	// letters A-H/a-h. K/k and Q/q name the rightmost and leftmost rook on the back
	// rank; file letters name the rook directly, which covers Chess960.

	if len(parts) > 2 && parts[2] != "-" {
		for _, r := range parts[2] {
			if err := decodeCastlingLetter(b, r); err != nil {
				return nil, 0, fmt.Errorf("%w: '%v'", err, fen)
			}
		}
	}

	// (4) En passant target square, or "-".

	if len(parts) > 3 && parts[3] != "-" {
		sq, err := board.ParseSquareStr(parts[3])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad en passant: '%v'", ErrInvalidFen, fen)
		}
		b.SetEnPassantFile(sq.File())
	}

	// (5) Halfmove clock: halfmoves since the last pawn advance or capture.

	if len(parts) > 4 {
		n, err := strconv.Atoi(parts[4])
		if err != nil || n < 0 {
			return nil, 0, fmt.Errorf("%w: bad halfmove clock: '%v'", ErrInvalidFen, fen)
		}
		b.SetHalfMoveClock(n)
	}

	// (6) Fullmove number: starts at 1, incremented after black's move.

	fullmoves := 1
	if len(parts) > 5 {
		n, err := strconv.Atoi(parts[5])
		if err != nil || n < 1 {
			return nil, 0, fmt.Errorf("%w: bad fullmove number: '%v'", ErrInvalidFen, fen)
		}
		fullmoves = n
	}

	return b, fullmoves, nil
}

func decodeCastlingLetter(b *board.Board, r rune) error {
	color := board.Black
	backRank := board.Rank8
	if unicode.IsUpper(r) {
		color = board.White
		backRank = board.Rank1
	}

	rooks := b.BitboardPiece(board.NewPiece(board.Rook, color)) & board.BitRank(backRank)
	king := b.KingSquare(color)

	var rook board.Square
	var side board.CastleSide
	switch {
	case r == 'K' || r == 'k':
		rook = rooks.MSB()
		side = board.KingSideCastle
	case r == 'Q' || r == 'q':
		rook = rooks.LSB()
		side = board.QueenSideCastle
	case unicode.ToLower(r) >= 'a' && unicode.ToLower(r) <= 'h':
		rook = board.NewSquare(board.File(unicode.ToLower(r)-'a'), backRank)
		side = board.KingSideCastle
		if rook < king {
			side = board.QueenSideCastle
		}
	default:
		return fmt.Errorf("%w: bad castling letter '%v'", ErrInvalidFen, string(r))
	}

	if !rook.IsValid() || b.Piece(rook) != board.NewPiece(board.Rook, color) {
		return fmt.Errorf("%w: no rook for castling letter '%v'", ErrInvalidFen, string(r))
	}
	b.GrantCastling(color, side, rook.File())
	return nil
}

// Encode encodes the board and fullmove number in XFEN notation. Castling emits
// the canonical KQkq letters for standard rook columns and Shredder file letters
// otherwise.
func Encode(b *board.Board, fullmoves int) string {
	var sb strings.Builder
	for r := board.NumRanks; r > board.ZeroRank; r-- {
		blanks := 0
		for f := board.ZeroFile; f < board.NumFiles; f++ {
			p := b.Piece(board.NewSquare(f, r-1))
			if p == board.NoPiece {
				blanks++
				continue
			}
			if blanks > 0 {
				sb.WriteString(strconv.Itoa(blanks))
				blanks = 0
			}
			sb.WriteString(p.String())
		}
		if blanks > 0 {
			sb.WriteString(strconv.Itoa(blanks))
		}
		if r > 1 {
			sb.WriteString("/")
		}
	}

	ep := "-"
	if f := b.EnPassantFile(); f.IsValid() {
		// The target square is behind the pawn that just jumped: rank 3 when black
		// is to move, rank 6 when white is.
		rank := board.Rank6
		if b.SideToMove() == board.Black {
			rank = board.Rank3
		}
		ep = board.NewSquare(f, rank).String()
	}

	return fmt.Sprintf("%v %v %v %v %v %v",
		sb.String(), b.SideToMove(), encodeCastling(b), ep, b.HalfMoveClock(), fullmoves)
}

func encodeCastling(b *board.Board) string {
	c := b.Castling()
	if c == 0 {
		return "-"
	}

	standard := b.CastleCol(board.QueenSideCastle.ColIndex()) == board.FileA &&
		b.CastleCol(board.KingSideCastle.ColIndex()) == board.FileH

	letter := func(side board.CastleSide, std string) string {
		if standard {
			return std
		}
		return b.CastleCol(side.ColIndex()).String()
	}

	var sb strings.Builder
	if c.IsAllowed(board.WhiteKingSide) {
		sb.WriteString(strings.ToUpper(letter(board.KingSideCastle, "K")))
	}
	if c.IsAllowed(board.WhiteQueenSide) {
		sb.WriteString(strings.ToUpper(letter(board.QueenSideCastle, "Q")))
	}
	if c.IsAllowed(board.BlackKingSide) {
		sb.WriteString(letter(board.KingSideCastle, "k"))
	}
	if c.IsAllowed(board.BlackQueenSide) {
		sb.WriteString(letter(board.QueenSideCastle, "q"))
	}
	return sb.String()
}
