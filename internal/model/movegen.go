package model

// probe classifies a target square for a moving piece.
type probe int

const (
	probeClear   probe = iota // empty, the piece may continue past it
	probeTake                 // enemy piece, capture and stop
	probeBlocked              // off the board or own piece
)

func classify(b *Board, team Team, target Position) probe {
	if !target.Valid() {
		return probeBlocked
	}
	occupant := b.Get(target)
	switch {
	case occupant.IsEmpty():
		return probeClear
	case occupant.Team != team:
		return probeTake
	default:
		return probeBlocked
	}
}

// movement describes how a non-pawn piece moves: a set of direction
// vectors, each walked until blocked or tried once.
type movement struct {
	directions [][2]int // {dRow, dCol}
	repeat     bool
}

var (
	straight   = [][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}
	diagonal   = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	allAround  = append(append([][2]int{}, straight...), diagonal...)
	knightJump = [][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
)

var movements = [...]movement{
	King:   {directions: allAround},
	Queen:  {directions: allAround, repeat: true},
	Rook:   {directions: straight, repeat: true},
	Bishop: {directions: diagonal, repeat: true},
	Knight: {directions: knightJump},
}

// promotionTypes are the pieces a pawn may become.
var promotionTypes = [...]PieceType{Queen, Rook, Bishop, Knight}

// PseudoMoves returns the moves the piece on from can make by its movement
// pattern and the board's occupancy, without regard to its own king's
// safety. With a non-nil history the set also holds en passant captures and
// castling moves whose history and occupancy requirements hold; attacked
// squares are not considered. An empty square yields an empty set.
func PseudoMoves(b *Board, from Position, h *History) MoveSet {
	moves := make(MoveSet)
	if !from.Valid() {
		return moves
	}
	piece := b.Get(from)
	switch piece.Type {
	case NoType:
	case Pawn:
		pawnMoves(b, from, piece.Team, h, moves)
	default:
		stepMoves(b, from, piece, moves)
		if piece.Type == King && h != nil {
			castleMoves(b, from, piece.Team, h, moves)
		}
	}
	return moves
}

func stepMoves(b *Board, from Position, piece Piece, moves MoveSet) {
	m := movements[piece.Type]
	for _, dir := range m.directions {
		target := from
		for {
			target = target.Offset(dir[0], dir[1])
			p := classify(b, piece.Team, target)
			if p != probeBlocked {
				moves.Add(NewMove(from, target))
			}
			if p != probeClear || !m.repeat {
				break
			}
		}
	}
}

func pawnMoves(b *Board, from Position, team Team, h *History, moves MoveSet) {
	info := team.info()
	one := from.Offset(info.pawnDirection, 0)
	if classify(b, team, one) == probeClear {
		addPawnMove(moves, team, from, one)
		two := one.Offset(info.pawnDirection, 0)
		if from.Row == info.pawnStartRow && classify(b, team, two) == probeClear {
			moves.Add(NewMove(from, two))
		}
	}
	for _, dCol := range [...]int{-1, 1} {
		target := from.Offset(info.pawnDirection, dCol)
		switch classify(b, team, target) {
		case probeTake:
			addPawnMove(moves, team, from, target)
		case probeClear:
			if m := NewMove(from, target); enPassantAllowed(b, m, h) {
				moves.Add(m)
			}
		}
	}
}

// addPawnMove adds the move, or one move per promotion type when it lands on
// the promotion row.
func addPawnMove(moves MoveSet, team Team, from, to Position) {
	if to.Row != team.PromotionRow() {
		moves.Add(NewMove(from, to))
		return
	}
	for _, t := range promotionTypes {
		moves.Add(NewPromotion(from, to, t))
	}
}

// looksLikeEnPassant reports whether m is a pawn moving diagonally onto an
// empty square, the only shape an en passant capture can have.
func looksLikeEnPassant(b *Board, m Move) bool {
	return b.Get(m.Start).Type == Pawn && m.colDistance() == 1 && b.Get(m.End).IsEmpty()
}

// enPassantAllowed reports whether the last move was an enemy pawn's double
// step that landed beside the pawn on m.Start, on m.End's column.
func enPassantAllowed(b *Board, m Move, h *History) bool {
	if h == nil || h.LastMove == nil || !looksLikeEnPassant(b, m) {
		return false
	}
	pawn := b.Get(m.Start)
	if m.End.Row-m.Start.Row != pawn.Team.info().pawnDirection {
		return false
	}
	last := *h.LastMove
	victim := enPassantVictim(m)
	return b.Get(victim) == NewPiece(pawn.Team.Opponent(), Pawn) &&
		last.End == victim &&
		last.Start.Col == last.End.Col &&
		last.rowDistance() == 2
}

// enPassantVictim is the square of the pawn an en passant capture removes.
func enPassantVictim(m Move) Position {
	return Position{Row: m.Start.Row, Col: m.End.Col}
}

func castleMoves(b *Board, from Position, team Team, h *History, moves MoveSet) {
	if from != kingHome(team) {
		return
	}
	for _, side := range [...]int{QueenSide, KingSide} {
		if !h.CanCastle(team, side) {
			continue
		}
		corner := rookCorner(team, side)
		if b.Get(corner) != NewPiece(team, Rook) {
			continue
		}
		step := castleStep(side)
		clear := true
		for col := from.Col + step; col != corner.Col; col += step {
			if !b.Get(Position{Row: from.Row, Col: col}).IsEmpty() {
				clear = false
				break
			}
		}
		if clear {
			moves.Add(NewMove(from, from.Offset(0, 2*step)))
		}
	}
}

func castleStep(side int) int {
	if side == KingSide {
		return 1
	}
	return -1
}

// isCastle reports whether m moves a king two columns.
func isCastle(b *Board, m Move) bool {
	return b.Get(m.Start).Type == King && m.Start.Row == m.End.Row && m.colDistance() == 2
}

// castleSide returns the side a castling move heads for.
func castleSide(m Move) int {
	if m.End.Col > m.Start.Col {
		return KingSide
	}
	return QueenSide
}
