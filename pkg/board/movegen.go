package board

// Pseudo-legal move generation from the precomputed attack tables. Moves are
// generated in two categories: captures (including promotions and en passant) and
// quiet moves (including castling). Generation order is fixed per category, so
// identical positions always yield identical move sequences.

// promotionKinds is the emission order for promotions.
var promotionKinds = [4]Kind{Queen, Rook, Bishop, Knight}

// AppendCaptures appends all pseudo-legal captures, promotions and en passant
// captures for the side to move.
func AppendCaptures(b *Board, moves []Move) []Move {
	us := b.SideToMove()
	enemy := b.bbColor[us.Opponent()]
	occupancy := b.Occupancy()

	moves = appendPawnCaptures(b, us, enemy, occupancy, moves)
	for _, k := range [5]Kind{Knight, King, Queen, Bishop, Rook} {
		piece := NewPiece(k, us)
		for origin := b.bbPiece[piece]; origin != 0; {
			from := origin.PopLSB()
			for targets := Attacks(k, from, occupancy) & enemy; targets != 0; {
				to := targets.PopLSB()
				moves = append(moves, NewMove(from, to, piece, b.board[to]))
			}
		}
	}
	return moves
}

// AppendQuietMoves appends all pseudo-legal non-capturing, non-promoting moves for
// the side to move, including castling.
func AppendQuietMoves(b *Board, moves []Move) []Move {
	us := b.SideToMove()
	occupancy := b.Occupancy()
	empty := ^occupancy

	moves = appendPawnPushes(b, us, occupancy, moves)
	for _, k := range [5]Kind{Knight, King, Queen, Bishop, Rook} {
		piece := NewPiece(k, us)
		for origin := b.bbPiece[piece]; origin != 0; {
			from := origin.PopLSB()
			for targets := Attacks(k, from, occupancy) & empty; targets != 0; {
				to := targets.PopLSB()
				moves = append(moves, NewMove(from, to, piece, NoPiece))
			}
		}
	}
	return appendCastles(b, us, moves)
}

// PseudoLegalMoves returns all pseudo-legal moves for the side to move.
func PseudoLegalMoves(b *Board) []Move {
	moves := make([]Move, 0, 64)
	moves = AppendCaptures(b, moves)
	return AppendQuietMoves(b, moves)
}

// IsLegal returns true iff the pseudo-legal move does not leave the mover's king in
// check, discovered by trial make/unmake.
func IsLegal(b *Board, m Move) bool {
	us := m.Piece().Color()
	u := b.Make(m)
	legal := !b.IsChecked(us)
	b.Unmake(m, u)
	return legal
}

// LegalMoves returns all legal moves for the side to move.
func LegalMoves(b *Board) []Move {
	var ret []Move
	for _, m := range PseudoLegalMoves(b) {
		if IsLegal(b, m) {
			ret = append(ret, m)
		}
	}
	return ret
}

func appendPawnCaptures(b *Board, us Color, enemy, occupancy Bitboard, moves []Move) []Move {
	piece := NewPiece(Pawn, us)
	promoRank, preRank := Rank8, Rank7
	push := 8
	if us == Black {
		promoRank, preRank = Rank1, Rank2
		push = -8
	}

	for origin := b.bbPiece[piece]; origin != 0; {
		from := origin.PopLSB()

		for targets := PawnAttacks(us, from) & enemy; targets != 0; {
			to := targets.PopLSB()
			if to.Rank() == promoRank {
				for _, k := range promotionKinds {
					moves = append(moves, NewPromotion(from, to, piece, b.board[to], k))
				}
			} else {
				moves = append(moves, NewMove(from, to, piece, b.board[to]))
			}
		}

		// Non-capturing promotions are generated with the captures.
		if to := Square(int(from) + push); from.Rank() == preRank && !occupancy.IsSet(to) {
			for _, k := range promotionKinds {
				moves = append(moves, NewPromotion(from, to, piece, NoPiece, k))
			}
		}
	}

	return appendEnPassant(b, us, moves)
}

func appendEnPassant(b *Board, us Color, moves []Move) []Move {
	if !b.enpasCol.IsValid() {
		return moves
	}

	targetRank, victimRank := Rank6, Rank5
	if us == Black {
		targetRank, victimRank = Rank3, Rank4
	}
	target := NewSquare(b.enpasCol, targetRank)
	victim := NewSquare(b.enpasCol, victimRank)

	piece := NewPiece(Pawn, us)
	capture := b.board[victim]
	if capture != NewPiece(Pawn, us.Opponent()) {
		return moves // stale en passant file, nothing to capture
	}
	for origin := PawnAttacks(us.Opponent(), target) & b.bbPiece[piece]; origin != 0; {
		from := origin.PopLSB()
		moves = append(moves, NewEnPassant(from, target, piece, capture))
	}
	return moves
}

func appendPawnPushes(b *Board, us Color, occupancy Bitboard, moves []Move) []Move {
	piece := NewPiece(Pawn, us)
	promoRank, jumpRank := Rank8, Rank2
	push := 8
	if us == Black {
		promoRank, jumpRank = Rank1, Rank7
		push = -8
	}

	for origin := b.bbPiece[piece]; origin != 0; {
		from := origin.PopLSB()

		to := Square(int(from) + push)
		if occupancy.IsSet(to) || to.Rank() == promoRank {
			continue // blocked, or promotion handled with captures
		}
		moves = append(moves, NewMove(from, to, piece, NoPiece))

		if jump := Square(int(to) + push); from.Rank() == jumpRank && !occupancy.IsSet(jump) {
			moves = append(moves, NewMove(from, jump, piece, NoPiece))
		}
	}
	return moves
}

// appendCastles emits castling moves when the right is held, the king and rook paths
// are clear, and the king is neither in check nor crosses an attacked square. Castle
// columns are respected, so Chess960 positions castle correctly.
func appendCastles(b *Board, us Color, moves []Move) []Move {
	piece := NewPiece(King, us)
	rank := Rank1
	if us == Black {
		rank = Rank8
	}

	for _, side := range [2]CastleSide{KingSideCastle, QueenSideCastle} {
		if !b.castling.IsAllowed(CastlingRight(us, side)) {
			continue
		}

		kingFrom := b.KingSquare(us)
		rookFrom := NewSquare(b.castleCols[side.ColIndex()], rank)
		kingTo := NewSquare(FileG, rank)
		rookTo := NewSquare(FileF, rank)
		if side == QueenSideCastle {
			kingTo = NewSquare(FileC, rank)
			rookTo = NewSquare(FileD, rank)
		}

		// Both final squares and everything the king or rook crosses must be empty,
		// not counting the king and rook themselves.
		occupied := b.Occupancy() &^ (BitMask(kingFrom) | BitMask(rookFrom))
		path := Between(kingFrom, kingTo) | BitMask(kingTo) | Between(rookFrom, rookTo) | BitMask(rookTo)
		if path&occupied != 0 {
			continue
		}

		if castlePathAttacked(b, kingFrom, kingTo, us.Opponent()) {
			continue
		}

		moves = append(moves, NewCastle(kingFrom, kingTo, piece, side))
	}
	return moves
}

// castlePathAttacked returns true iff any square the king stands on, crosses or lands
// on is attacked.
func castlePathAttacked(b *Board, kingFrom, kingTo Square, by Color) bool {
	for bb := BitMask(kingFrom) | Between(kingFrom, kingTo) | BitMask(kingTo); bb != 0; {
		if b.IsAttacked(bb.PopLSB(), by) {
			return true
		}
	}
	return false
}
