package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbeisheim/chess-backend/internal/model"
	"github.com/benbeisheim/chess-backend/internal/store"
	"github.com/benbeisheim/chess-backend/internal/ws"
	"github.com/gofiber/websocket/v2"
)

// Conn is the part of a WebSocket connection a session writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// The connections watching a single game
type gameConnections struct {
	connections map[string]Conn // playerID -> connection
	mu          sync.RWMutex
}

// Players names who sits on each side. An empty id is an open seat.
type Players struct {
	White string `json:"white"`
	Black string `json:"black"`
}

// Snapshot is the client view of a game.
type Snapshot struct {
	ID       string       `json:"id"`
	Board    model.Board  `json:"board"`
	ToMove   model.Team   `json:"toMove"`
	Status   model.Status `json:"status"`
	LastMove *model.Move  `json:"lastMove"`
	Moves    []model.Move `json:"moves"`
	Players  Players      `json:"players"`
}

// Session is one game on the server: the rules engine, its seats and the
// connections watching it.
type Session struct {
	ID          string
	mu          sync.Mutex
	game        *model.Game
	players     Players
	createdAt   time.Time
	connections *gameConnections
	writeMu     sync.Mutex // one writer per connection at a time
	saveMu      sync.Mutex // orders store writes
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		game:      model.NewGame(),
		createdAt: time.Now(),
		connections: &gameConnections{
			connections: make(map[string]Conn),
		},
	}
}

// restoreSession rebuilds a session from a stored record by replaying its
// moves.
func restoreSession(rec *store.GameRecord) (*Session, error) {
	game, err := model.Replay(rec.Moves)
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", rec.ID, err)
	}
	s := NewSession(rec.ID)
	s.game = game
	s.players = Players{White: rec.White, Black: rec.Black}
	if !rec.CreatedAt.IsZero() {
		s.createdAt = rec.CreatedAt
	}
	return s, nil
}

// AddPlayer seats playerID on the first open side, White first. A player
// already seated gets their side back.
func (s *Session) AddPlayer(playerID string) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if team, ok := s.teamOf(playerID); ok {
		return team, nil
	}
	switch {
	case s.players.White == "":
		s.players.White = playerID
		return model.White, nil
	case s.players.Black == "":
		s.players.Black = playerID
		return model.Black, nil
	}
	return model.White, ErrGameFull
}

func (s *Session) teamOf(playerID string) (model.Team, bool) {
	switch {
	case playerID == "":
		return model.White, false
	case s.players.White == playerID:
		return model.White, true
	case s.players.Black == playerID:
		return model.Black, true
	}
	return model.White, false
}

func (s *Session) canSpectate() bool {
	return s.players.White == "" || s.players.Black == ""
}

// MakeMove plays move for playerID, who must hold the side to move.
func (s *Session) MakeMove(playerID string, move model.Move) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teamOf(playerID)
	if !ok {
		return Snapshot{}, ErrNotInGame
	}
	if team != s.game.TeamTurn() {
		return Snapshot{}, ErrNotYourTurn
	}
	if err := s.game.MakeMove(move); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// LegalMoves lists the legal moves from pos in a stable order, or nil when
// pos holds no piece.
func (s *Session) LegalMoves(pos model.Position) []model.Move {
	s.mu.Lock()
	defer s.mu.Unlock()

	moves := s.game.LegalMoves(pos)
	if moves == nil {
		return nil
	}
	return moves.Sorted()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	moves := s.game.Moves()
	if moves == nil {
		moves = []model.Move{}
	}
	return Snapshot{
		ID:       s.ID,
		Board:    *s.game.Board(),
		ToMove:   s.game.TeamTurn(),
		Status:   s.game.Status(),
		LastMove: s.game.LastMove(),
		Moves:    moves,
		Players:  s.players,
	}
}

// Record returns what the store keeps for this game.
func (s *Session) Record() *store.GameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.GameRecord{
		ID:        s.ID,
		White:     s.players.White,
		Black:     s.players.Black,
		Moves:     s.game.Moves(),
		CreatedAt: s.createdAt,
	}
}

// RegisterConnection adds conn as playerID's view of the game and sends it
// the current state. Seated players may always connect; others only while
// a seat is open. A second connection for the same player is closed.
func (s *Session) RegisterConnection(playerID string, conn Conn) error {
	s.mu.Lock()
	_, seated := s.teamOf(playerID)
	isAuthorized := seated || s.canSpectate()
	s.mu.Unlock()

	if !isAuthorized {
		return ErrNotInGame
	}

	s.connections.mu.Lock()
	if _, exists := s.connections.connections[playerID]; exists {
		s.connections.mu.Unlock()
		s.writeMu.Lock()
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Connection already exists"),
		)
		s.writeMu.Unlock()
		conn.Close()
		return nil
	}
	s.connections.connections[playerID] = conn
	s.connections.mu.Unlock()

	s.Broadcast()
	return nil
}

// Finished reports whether the game ended in checkmate or stalemate.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.game.Status()
	return status == model.Checkmate || status == model.Stalemate
}

// CloseConnections sends every connection a close frame with reason and
// forgets them all.
func (s *Session) CloseConnections(reason string) {
	s.connections.mu.Lock()
	active := s.connections.connections
	s.connections.connections = make(map[string]Conn)
	s.connections.mu.Unlock()

	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	for _, conn := range active {
		s.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, frame)
		s.writeMu.Unlock()
		conn.Close()
	}
}

// UnregisterConnection forgets playerID's connection if it is still conn.
func (s *Session) UnregisterConnection(playerID string, conn Conn) {
	s.connections.mu.Lock()
	defer s.connections.mu.Unlock()

	if current, exists := s.connections.connections[playerID]; exists && current == conn {
		delete(s.connections.connections, playerID)
	}
}

func (s *Session) ConnectionCount() int {
	s.connections.mu.RLock()
	defer s.connections.mu.RUnlock()
	return len(s.connections.connections)
}

// Broadcast sends the current snapshot to every connection. Connections
// that fail the write are dropped.
func (s *Session) Broadcast() {
	msg, err := ws.NewMessage(ws.MessageTypeGameState, s.Snapshot())
	if err != nil {
		log.Printf("game %s: marshal state: %v", s.ID, err)
		return
	}

	s.connections.mu.RLock()
	active := make(map[string]Conn, len(s.connections.connections))
	for playerID, conn := range s.connections.connections {
		active[playerID] = conn
	}
	s.connections.mu.RUnlock()

	for playerID, conn := range active {
		if err := s.Send(conn, msg); err != nil {
			log.Printf("game %s: send state to %s: %v", s.ID, playerID, err)
			s.UnregisterConnection(playerID, conn)
		}
	}
}

// Send writes msg to conn, serialized with the session's broadcasts.
func (s *Session) Send(conn Conn, msg ws.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(msg)
}
