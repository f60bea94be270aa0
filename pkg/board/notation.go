package board

import (
	"errors"
	"fmt"
)

// ErrInvalidMoveNotation indicates a move string that cannot be parsed.
var ErrInvalidMoveNotation = errors.New("invalid move notation")

// ErrInvalidMove indicates a parsed move that is not legal in the position.
var ErrInvalidMove = errors.New("invalid move")

// ParseCoordinate parses a move in pure coordinate notation, such as "a2a4" or
// "a7a8q", against the given position. Castling is accepted as the king moving to its
// castle square (e1g1) or as the king taking its own rook (Chess960 style).
func ParseCoordinate(str string, b *Board) (Move, error) {
	runes := []rune(str)
	if len(runes) < 4 || len(runes) > 5 {
		return NullMove, fmt.Errorf("%w: '%v'", ErrInvalidMoveNotation, str)
	}

	from, err := ParseSquare(runes[0], runes[1])
	if err != nil {
		return NullMove, fmt.Errorf("%w: '%v': %v", ErrInvalidMoveNotation, str, err)
	}
	to, err := ParseSquare(runes[2], runes[3])
	if err != nil {
		return NullMove, fmt.Errorf("%w: '%v': %v", ErrInvalidMoveNotation, str, err)
	}

	piece := b.Piece(from)
	if piece == NoPiece {
		return NullMove, fmt.Errorf("%w: no piece on %v", ErrInvalidMoveNotation, from)
	}
	capture := b.Piece(to)

	var promotion Kind
	if len(runes) == 5 {
		k, ok := ParseKind(runes[4])
		if !ok || !k.CanPromoteTo() {
			return NullMove, fmt.Errorf("%w: bad promotion '%v'", ErrInvalidMoveNotation, str)
		}
		promotion = k
	}

	// A pawn moving diagonally to an empty square can only be an en passant capture.
	if piece.Kind() == Pawn && from.File() != to.File() && capture == NoPiece {
		return NewEnPassant(from, to, piece, NewPiece(Pawn, piece.Color().Opponent())), nil
	}

	if piece.Kind() == King {
		// A king taking its own rook is a castling move (Chess960 style).
		if capture.Kind() == Rook && capture.Color() == piece.Color() {
			side := QueenSideCastle
			if to.File() == b.CastleCol(KingSideCastle.ColIndex()) {
				side = KingSideCastle
			}
			kingTo := NewSquare(FileC, from.Rank())
			if side == KingSideCastle {
				kingTo = NewSquare(FileG, from.Rank())
			}
			return NewCastle(from, kingTo, piece, side), nil
		}

		// A king moving from the e file to the g or c file is a castling move.
		if from.File() == FileE {
			if to.File() == FileG && to.Rank() == from.Rank() {
				return NewCastle(from, to, piece, KingSideCastle), nil
			}
			if to.File() == FileC && to.Rank() == from.Rank() {
				return NewCastle(from, to, piece, QueenSideCastle), nil
			}
		}
	}

	if promotion != NoKind {
		return NewPromotion(from, to, piece, capture, promotion), nil
	}
	return NewMove(from, to, piece, capture), nil
}

// RenderCoordinate renders the move in coordinate notation. Castling renders as the
// king moving to its castle square, or as king-takes-own-rook when chess960 is set.
func RenderCoordinate(m Move, b *Board, chess960 bool) string {
	if side := m.Castle(); side != NoCastle && chess960 {
		to := NewSquare(b.CastleCol(side.ColIndex()), m.From().Rank())
		return fmt.Sprintf("%v%v", m.From(), to)
	}
	return m.String()
}
