package model

import (
	"fmt"
	"sort"
)

// Move takes the piece on Start to End. Promotion is NoType unless a pawn
// reaches its promotion row.
type Move struct {
	Start     Position  `json:"start"`
	End       Position  `json:"end"`
	Promotion PieceType `json:"promotion,omitempty"`
}

func NewMove(start, end Position) Move {
	return Move{Start: start, End: end}
}

func NewPromotion(start, end Position, promotion PieceType) Move {
	return Move{Start: start, End: end, Promotion: promotion}
}

func (m Move) String() string {
	if m.Promotion != NoType {
		return fmt.Sprintf("%s->%s=%s", m.Start, m.End, m.Promotion)
	}
	return fmt.Sprintf("%s->%s", m.Start, m.End)
}

func (m Move) rowDistance() int {
	return abs(m.End.Row - m.Start.Row)
}

func (m Move) colDistance() int {
	return abs(m.End.Col - m.Start.Col)
}

// MoveSet is an unordered set of moves.
type MoveSet map[Move]struct{}

// MoveSetOf returns a set holding moves.
func MoveSetOf(moves ...Move) MoveSet {
	s := make(MoveSet, len(moves))
	for _, m := range moves {
		s.Add(m)
	}
	return s
}

func (s MoveSet) Add(m Move) {
	s[m] = struct{}{}
}

func (s MoveSet) Contains(m Move) bool {
	_, ok := s[m]
	return ok
}

func (s MoveSet) Len() int {
	return len(s)
}

// Ends returns the distinct destination squares in the set.
func (s MoveSet) Ends() map[Position]bool {
	ends := make(map[Position]bool, len(s))
	for m := range s {
		ends[m.End] = true
	}
	return ends
}

// Sorted returns the moves ordered by start, end and promotion.
func (s MoveSet) Sorted() []Move {
	moves := make([]Move, 0, len(s))
	for m := range s {
		moves = append(moves, m)
	}
	sort.Slice(moves, func(i, j int) bool {
		return moves[i].less(moves[j])
	})
	return moves
}

func (m Move) less(o Move) bool {
	if m.Start != o.Start {
		return m.Start.less(o.Start)
	}
	if m.End != o.End {
		return m.End.less(o.End)
	}
	return m.Promotion < o.Promotion
}

func (p Position) less(o Position) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Col < o.Col
}

// Castling sides, indexing History.RookMoved.
const (
	QueenSide = iota
	KingSide
)

// History is the part of the game record that move generation depends on.
type History struct {
	KingMoved [2]bool    `json:"kingMoved"`
	RookMoved [2][2]bool `json:"rookMoved"` // [team][QueenSide|KingSide]
	LastMove  *Move      `json:"lastMove"`
}

// rookCorner is the starting square of team's rook on the given side.
func rookCorner(team Team, side int) Position {
	col := 1
	if side == KingSide {
		col = BoardSize
	}
	return Position{Row: team.BackRow(), Col: col}
}

// kingHome is the starting square of team's king.
func kingHome(team Team) Position {
	return Position{Row: team.BackRow(), Col: 5}
}

// markMoved records that the pieces starting on from have left or been
// captured there.
func (h *History) markMoved(from Position) {
	for _, team := range Teams {
		if from == kingHome(team) {
			h.KingMoved[team] = true
		}
		for _, side := range [...]int{QueenSide, KingSide} {
			if from == rookCorner(team, side) {
				h.RookMoved[team][side] = true
			}
		}
	}
}

// CanCastle reports whether neither team's king nor the rook on side has
// moved.
func (h *History) CanCastle(team Team, side int) bool {
	return !h.KingMoved[team] && !h.RookMoved[team][side]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
