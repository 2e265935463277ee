package model

import "fmt"

// GameState is everything legality depends on: the board, the side to
// move and the moved flags plus last move.
type GameState struct {
	Board   Board   `json:"board"`
	ToMove  Team    `json:"toMove"`
	History History `json:"history"`
}

// NewGameState returns the standard opening position with White to move.
func NewGameState() *GameState {
	s := &GameState{ToMove: White}
	s.Board.Reset()
	return s
}

// Clone returns a copy that shares no mutable state with s.
func (s *GameState) Clone() *GameState {
	c := *s
	return &c
}

func (s *GameState) Equal(o *GameState) bool {
	if o == nil {
		return false
	}
	if s.Board != o.Board || s.ToMove != o.ToMove ||
		s.History.KingMoved != o.History.KingMoved || s.History.RookMoved != o.History.RookMoved {
		return false
	}
	a, b := s.History.LastMove, o.History.LastMove
	return a == b || (a != nil && b != nil && *a == *b)
}

// Status summarizes the position for the side to move.
type Status int

const (
	Ongoing Status = iota
	Check
	Checkmate
	Stalemate
)

var statusNames = [...]string{"ongoing", "check", "checkmate", "stalemate"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Game owns a GameState and the list of moves played on it. A Game is not
// safe for concurrent use.
type Game struct {
	state  GameState
	played []Move
}

// NewGame starts a game from the standard opening with White to move.
func NewGame() *Game {
	return &Game{state: *NewGameState()}
}

// Replay starts a new game and plays moves in order.
func Replay(moves []Move) (*Game, error) {
	g := NewGame()
	for i, m := range moves {
		if err := g.MakeMove(m); err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", i+1, err)
		}
	}
	return g, nil
}

// Board returns a copy of the current board.
func (g *Game) Board() *Board {
	return g.state.Board.Clone()
}

// SetBoard replaces the board. Moved flags and the last move are cleared,
// so every king and rook on its home square may castle again. A board
// without both kings is rejected.
func (g *Game) SetBoard(b *Board) error {
	if err := checkKings(b); err != nil {
		return err
	}
	g.state.Board = *b
	g.state.History = History{}
	g.played = nil
	return nil
}

// State returns a copy of the full game state.
func (g *Game) State() GameState {
	return *g.state.Clone()
}

// SetState replaces the full game state. The played move list is cleared.
func (g *Game) SetState(s GameState) error {
	if err := checkKings(&s.Board); err != nil {
		return err
	}
	g.state = s
	g.played = nil
	return nil
}

func checkKings(b *Board) error {
	for _, team := range Teams {
		if _, err := b.KingLocation(team); err != nil {
			return err
		}
	}
	return nil
}

// TeamTurn returns the team to move.
func (g *Game) TeamTurn() Team {
	return g.state.ToMove
}

func (g *Game) SetTeamTurn(team Team) {
	g.state.ToMove = team
}

// Moves returns the moves played since the game started or the board was
// last replaced.
func (g *Game) Moves() []Move {
	return append([]Move(nil), g.played...)
}

// LastMove returns the previous move, or nil before the first one.
func (g *Game) LastMove() *Move {
	if g.state.History.LastMove == nil {
		return nil
	}
	m := *g.state.History.LastMove
	return &m
}

// LegalMoves returns the moves the piece on pos may make. It returns nil
// when pos holds no piece.
func (g *Game) LegalMoves(pos Position) MoveSet {
	return g.state.legalMoves(pos)
}

// AllLegalMoves returns every legal move for team's pieces.
func (g *Game) AllLegalMoves(team Team) MoveSet {
	return g.state.allLegalMoves(team)
}

// MakeMove validates and plays m. A rejected move leaves the game
// untouched and returns an error wrapping ErrInvalidMove.
func (g *Game) MakeMove(m Move) error {
	if !m.Start.Valid() || !m.End.Valid() {
		return invalidMove(m, "square off the board")
	}
	piece := g.state.Board.Get(m.Start)
	if piece.IsEmpty() {
		return invalidMove(m, "no piece at %s", m.Start)
	}
	if piece.Team != g.state.ToMove {
		return invalidMove(m, "it is %s's turn", g.state.ToMove)
	}
	if !g.state.legalMoves(m.Start).Contains(m) {
		return invalidMove(m, "not a legal move for the %s", piece)
	}
	g.state.apply(m)
	g.played = append(g.played, m)
	return nil
}

// IsInCheck reports whether any of the opponent's pseudo-legal moves lands
// on team's king. It panics if team has no king.
func (g *Game) IsInCheck(team Team) bool {
	return g.state.inCheck(team)
}

func (g *Game) IsInCheckmate(team Team) bool {
	return g.state.inCheck(team) && g.state.hasNoLegalMove(team)
}

func (g *Game) IsInStalemate(team Team) bool {
	return !g.state.inCheck(team) && g.state.hasNoLegalMove(team)
}

// HasNoLegalMove reports whether every piece of team has no legal move.
func (g *Game) HasNoLegalMove(team Team) bool {
	return g.state.hasNoLegalMove(team)
}

// Status reports check, checkmate or stalemate for the side to move.
func (g *Game) Status() Status {
	team := g.state.ToMove
	check := g.state.inCheck(team)
	stuck := g.state.hasNoLegalMove(team)
	switch {
	case check && stuck:
		return Checkmate
	case stuck:
		return Stalemate
	case check:
		return Check
	}
	return Ongoing
}

// Perft counts the leaves of the legal move tree depth plies deep.
func (g *Game) Perft(depth int) int {
	return g.state.perft(depth)
}

func (s *GameState) legalMoves(pos Position) MoveSet {
	if !pos.Valid() {
		return nil
	}
	piece := s.Board.Get(pos)
	if piece.IsEmpty() {
		return nil
	}
	legal := make(MoveSet)
	for m := range PseudoMoves(&s.Board, pos, &s.History) {
		switch {
		case looksLikeEnPassant(&s.Board, m):
			if !enPassantAllowed(&s.Board, m, &s.History) {
				continue
			}
		case isCastle(&s.Board, m):
			if !s.castleAllowed(m, piece.Team) {
				continue
			}
		}
		if s.leavesKingSafe(m, piece.Team) {
			legal.Add(m)
		}
	}
	return legal
}

// castleAllowed checks the parts of castling the generator cannot: the king
// must not be in check, both pieces must be unmoved, and the square the
// king crosses must not be attacked.
func (s *GameState) castleAllowed(m Move, team Team) bool {
	side := castleSide(m)
	if !s.History.CanCastle(team, side) || s.inCheck(team) {
		return false
	}
	halfway := s.Clone()
	halfway.Board.Set(m.Start, Empty)
	halfway.Board.Set(m.Start.Offset(0, castleStep(side)), NewPiece(team, King))
	return !halfway.inCheck(team)
}

// leavesKingSafe plays m on a clone and reports whether team's king is
// out of check afterwards.
func (s *GameState) leavesKingSafe(m Move, team Team) bool {
	sim := s.Clone()
	sim.apply(m)
	return !sim.inCheck(team)
}

func (s *GameState) allLegalMoves(team Team) MoveSet {
	all := make(MoveSet)
	for _, pos := range s.Board.TeamLocations(team) {
		for m := range s.legalMoves(pos) {
			all.Add(m)
		}
	}
	return all
}

func (s *GameState) hasNoLegalMove(team Team) bool {
	for _, pos := range s.Board.TeamLocations(team) {
		if s.legalMoves(pos).Len() > 0 {
			return false
		}
	}
	return true
}

func (s *GameState) inCheck(team Team) bool {
	king, err := s.Board.KingLocation(team)
	if err != nil {
		panic(err)
	}
	for _, pos := range s.Board.TeamLocations(team.Opponent()) {
		for m := range PseudoMoves(&s.Board, pos, nil) {
			if m.End == king {
				return true
			}
		}
	}
	return false
}

// apply plays m without validating it, including the rook's half of a
// castle, the pawn removed by en passant and promotion.
func (s *GameState) apply(m Move) {
	piece := s.Board.Get(m.Start)
	placed := piece
	switch {
	case looksLikeEnPassant(&s.Board, m):
		s.Board.Set(enPassantVictim(m), Empty)
	case isCastle(&s.Board, m):
		side := castleSide(m)
		corner := rookCorner(piece.Team, side)
		s.Board.Set(m.Start.Offset(0, castleStep(side)), s.Board.Get(corner))
		s.Board.Set(corner, Empty)
		s.History.markMoved(corner)
	case m.Promotion != NoType:
		placed = NewPiece(piece.Team, m.Promotion)
	}
	s.History.markMoved(m.Start)
	s.History.markMoved(m.End)
	s.Board.Set(m.Start, Empty)
	s.Board.Set(m.End, placed)
	s.ToMove = s.ToMove.Opponent()
	last := m
	s.History.LastMove = &last
}

func (s *GameState) perft(depth int) int {
	if depth == 0 {
		return 1
	}
	moves := s.allLegalMoves(s.ToMove)
	if depth == 1 {
		return moves.Len()
	}
	total := 0
	for m := range moves {
		next := s.Clone()
		next.apply(m)
		total += next.perft(depth - 1)
	}
	return total
}
