package board

import (
	"fmt"
	"strings"
)

// CastleSide indicates the castling kind of a move, if any. 2 bits.
type CastleSide uint8

const (
	NoCastle CastleSide = iota
	KingSideCastle
	QueenSideCastle
)

// ColIndex returns the castle column index for the side: 0 for queen-side and 1 for
// king-side, matching Board.CastleCol.
func (s CastleSide) ColIndex() int {
	if s == QueenSideCastle {
		return 0
	}
	return 1
}

func (s CastleSide) String() string {
	switch s {
	case KingSideCastle:
		return "O-O"
	case QueenSideCastle:
		return "O-O-O"
	default:
		return "-"
	}
}

// Move represents a not-necessarily legal move, packed into a single integer:
//
//	bits  0 -  7  from square
//	bits  8 - 15  to square
//	bits 16 - 23  moving piece
//	bits 25 - 28  captured piece, if any
//	bits 29 - 31  promotion piece kind, if any
//	bits 32 - 33  castling kind, if any
//
// The zero value is NullMove; it cannot collide with a real move since the moving
// piece field is never zero.
type Move uint64

const NullMove Move = 0

const (
	moveFromShift      = 0
	moveToShift        = 8
	movePieceShift     = 16
	moveCaptureShift   = 25
	movePromotionShift = 29
	moveCastleShift    = 32
)

// NewMove returns a quiet move or a capture.
func NewMove(from, to Square, piece, capture Piece) Move {
	return Move(from)<<moveFromShift |
		Move(to)<<moveToShift |
		Move(piece)<<movePieceShift |
		Move(capture)<<moveCaptureShift
}

// NewPromotion returns a pawn promotion, capturing or not.
func NewPromotion(from, to Square, piece, capture Piece, promotion Kind) Move {
	return NewMove(from, to, piece, capture) | Move(promotion)<<movePromotionShift
}

// NewCastle returns a castling move. From and to are the king's origin and final
// square.
func NewCastle(from, to Square, piece Piece, side CastleSide) Move {
	return NewMove(from, to, piece, NoPiece) | Move(side)<<moveCastleShift
}

func (m Move) From() Square {
	return Square(m>>moveFromShift) & 0xff
}

func (m Move) To() Square {
	return Square(m>>moveToShift) & 0xff
}

// Piece returns the moving piece.
func (m Move) Piece() Piece {
	return Piece(m>>movePieceShift) & 0xff
}

// Capture returns the captured piece, or NoPiece.
func (m Move) Capture() Piece {
	return Piece(m>>moveCaptureShift) & 0xf
}

// Promotion returns the piece kind promoted to, or NoKind.
func (m Move) Promotion() Kind {
	return Kind(m>>movePromotionShift) & 0x7
}

// Castle returns the castling kind of the move, or NoCastle.
func (m Move) Castle() CastleSide {
	return CastleSide(m>>moveCastleShift) & 0x3
}

// The en passant victim square is not the to square, so Make/Unmake need to tell an
// en passant capture apart from a regular pawn capture. Bit 34 tags it.
const moveEnPassantBit Move = 1 << 34

// NewEnPassant returns an en passant capture. To is the capturing pawn's destination.
func NewEnPassant(from, to Square, piece, capture Piece) Move {
	return NewMove(from, to, piece, capture) | moveEnPassantBit
}

// IsEnPassant returns true iff the move is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m&moveEnPassantBit != 0
}

// EnPassantVictim returns the square of the pawn captured en passant. Only meaningful
// for en passant moves.
func (m Move) EnPassantVictim() Square {
	if m.Piece().Color() == White {
		return m.To() - 8
	}
	return m.To() + 8
}

// Equals compares from, to and promotion, ignoring contextual fields. This is the
// notion of equality of coordinate notation.
func (m Move) Equals(o Move) bool {
	return m.From() == o.From() && m.To() == o.To() && m.Promotion() == o.Promotion()
}

// String renders the move in pure coordinate notation, such as "a2a4" or "a7a8q".
func (m Move) String() string {
	if m == NullMove {
		return "0000"
	}
	if p := m.Promotion(); p != NoKind {
		return fmt.Sprintf("%v%v%v", m.From(), m.To(), p)
	}
	return fmt.Sprintf("%v%v", m.From(), m.To())
}

// FormatMoves renders moves with the given printer, space-separated.
func FormatMoves(moves []Move, fn func(Move) string) string {
	var parts []string
	for _, m := range moves {
		parts = append(parts, fn(m))
	}
	return strings.Join(parts, " ")
}

// PrintMoves renders moves in coordinate notation, space-separated.
func PrintMoves(moves []Move) string {
	return FormatMoves(moves, Move.String)
}
