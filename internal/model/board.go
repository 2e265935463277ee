package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BoardSize is the number of rows and columns on the board.
const BoardSize = 8

type PieceType uint8

const (
	NoType PieceType = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

var pieceTypeNames = [...]string{"", "king", "queen", "rook", "bishop", "knight", "pawn"}

func (p PieceType) String() string {
	if int(p) < len(pieceTypeNames) {
		return pieceTypeNames[p]
	}
	return fmt.Sprintf("PieceType(%d)", uint8(p))
}

// letter is the upper-case letter used by Board.String.
func (p PieceType) letter() byte {
	return " KQRBNP"[p]
}

func (p PieceType) MarshalText() ([]byte, error) {
	if int(p) >= len(pieceTypeNames) {
		return nil, fmt.Errorf("unknown piece type %d", uint8(p))
	}
	return []byte(pieceTypeNames[p]), nil
}

func (p *PieceType) UnmarshalText(text []byte) error {
	for i, name := range pieceTypeNames {
		if name == string(text) {
			*p = PieceType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown piece type %q", text)
}

// Piece is a team's piece. The zero value is the empty square.
type Piece struct {
	Team Team      `json:"team"`
	Type PieceType `json:"type"`
}

// Empty marks a square without an occupant.
var Empty = Piece{}

func NewPiece(team Team, t PieceType) Piece {
	return Piece{Team: team, Type: t}
}

func (p Piece) IsEmpty() bool {
	return p.Type == NoType
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return "empty"
	}
	return p.Team.String() + " " + p.Type.String()
}

// Position is a square addressed by row and column, each 1..8.
// Row 1 is White's back row.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func NewPosition(row, col int) Position {
	return Position{Row: row, Col: col}
}

func (p Position) Valid() bool {
	return p.Row >= 1 && p.Row <= BoardSize && p.Col >= 1 && p.Col <= BoardSize
}

func (p Position) Offset(dRow, dCol int) Position {
	return Position{Row: p.Row + dRow, Col: p.Col + dCol}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Board is an 8x8 grid of pieces. Copying a Board copies every cell.
type Board struct {
	cells [BoardSize][BoardSize]Piece
}

var backRowOrder = [BoardSize]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// NewStandardBoard returns a board in the standard opening layout.
func NewStandardBoard() *Board {
	b := &Board{}
	b.Reset()
	return b
}

// Set overwrites the cell at pos. Setting Empty clears it.
func (b *Board) Set(pos Position, piece Piece) {
	b.cells[pos.Row-1][pos.Col-1] = piece
}

// Get returns the occupant of pos, or Empty.
func (b *Board) Get(pos Position) Piece {
	return b.cells[pos.Row-1][pos.Col-1]
}

// Reset puts the board in the standard opening layout.
func (b *Board) Reset() {
	b.cells = [BoardSize][BoardSize]Piece{}
	for _, team := range Teams {
		info := team.info()
		for col := 1; col <= BoardSize; col++ {
			b.Set(Position{Row: info.backRow, Col: col}, NewPiece(team, backRowOrder[col-1]))
			b.Set(Position{Row: info.pawnStartRow, Col: col}, NewPiece(team, Pawn))
		}
	}
}

// TeamLocations returns every square holding a piece of team, scanning
// row by row from row 1.
func (b *Board) TeamLocations(team Team) []Position {
	var locations []Position
	for row := 1; row <= BoardSize; row++ {
		for col := 1; col <= BoardSize; col++ {
			piece := b.cells[row-1][col-1]
			if !piece.IsEmpty() && piece.Team == team {
				locations = append(locations, Position{Row: row, Col: col})
			}
		}
	}
	return locations
}

// KingLocation returns the square of team's king. A board without one is
// malformed and yields ErrIllegalPosition.
func (b *Board) KingLocation(team Team) (Position, error) {
	king := NewPiece(team, King)
	for row := 1; row <= BoardSize; row++ {
		for col := 1; col <= BoardSize; col++ {
			if b.cells[row-1][col-1] == king {
				return Position{Row: row, Col: col}, nil
			}
		}
	}
	return Position{}, fmt.Errorf("%w: no %s king on the board", ErrIllegalPosition, team)
}

// Equal reports whether both boards hold the same piece on every square.
func (b *Board) Equal(other *Board) bool {
	if other == nil {
		return false
	}
	return b.cells == other.cells
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	c := *b
	return &c
}

// String draws the board with row 8 on top. White pieces are upper case.
func (b *Board) String() string {
	var sb strings.Builder
	for row := BoardSize; row >= 1; row-- {
		sb.WriteByte('|')
		for col := 1; col <= BoardSize; col++ {
			piece := b.cells[row-1][col-1]
			switch {
			case piece.IsEmpty():
				sb.WriteByte(' ')
			case piece.Team == White:
				sb.WriteByte(piece.Type.letter())
			default:
				sb.WriteByte(piece.Type.letter() + 'a' - 'A')
			}
			sb.WriteByte('|')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MarshalJSON encodes the board as rows of pieces, row 1 first, with null
// for empty squares.
func (b Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*Piece, BoardSize)
	for r := range rows {
		rows[r] = make([]*Piece, BoardSize)
		for c := range rows[r] {
			if piece := b.cells[r][c]; !piece.IsEmpty() {
				rows[r][c] = &piece
			}
		}
	}
	return json.Marshal(rows)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != BoardSize {
		return fmt.Errorf("board has %d rows, want %d", len(rows), BoardSize)
	}
	var cells [BoardSize][BoardSize]Piece
	for r, row := range rows {
		if len(row) != BoardSize {
			return fmt.Errorf("board row %d has %d cells, want %d", r+1, len(row), BoardSize)
		}
		for c, piece := range row {
			if piece != nil && !piece.IsEmpty() {
				cells[r][c] = *piece
			}
		}
	}
	b.cells = cells
	return nil
}
