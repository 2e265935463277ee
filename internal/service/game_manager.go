package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbeisheim/chess-backend/internal/model"
	"github.com/benbeisheim/chess-backend/internal/store"
	"github.com/google/uuid"
)

// Store persists game records between restarts.
type Store interface {
	Save(rec *store.GameRecord) error
	Load(id string) (*store.GameRecord, error)
	Delete(id string) error
	List() ([]string, error)
}

// MatchFoundEvent tells a queued player which game they were placed in.
type MatchFoundEvent struct {
	GameID string     `json:"gameId"`
	Color  model.Team `json:"color"`
}

// GameManager owns every live session, the matchmaking queue and the
// channels waiting on it.
type GameManager struct {
	games            map[string]*Session
	queue            *Queue
	matchingChannels map[string]chan MatchFoundEvent
	store            Store
	newID            func() string
	mu               sync.RWMutex
}

func NewGameManager(st Store) *GameManager {
	return &GameManager{
		games:            make(map[string]*Session),
		queue:            NewQueue(),
		matchingChannels: make(map[string]chan MatchFoundEvent),
		store:            st,
		newID:            uuid.NewString,
	}
}

// RunMatchmaking pairs queued players every interval until ctx is done.
func (gm *GameManager) RunMatchmaking(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gm.processMatchmaking()
		}
	}
}

// processMatchmaking seats every waiting pair in a new game and notifies
// both players. It returns the ids of the games created.
func (gm *GameManager) processMatchmaking() []string {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	var created []string
	for {
		first, second, ok := gm.queue.NextPair()
		if !ok {
			return created
		}

		session := NewSession(gm.newID())
		firstColor, _ := session.AddPlayer(first)
		secondColor, _ := session.AddPlayer(second)
		gm.games[session.ID] = session
		gm.save(session)
		created = append(created, session.ID)

		firstSent := gm.notify(first, MatchFoundEvent{GameID: session.ID, Color: firstColor})
		secondSent := gm.notify(second, MatchFoundEvent{GameID: session.ID, Color: secondColor})
		if !firstSent || !secondSent {
			log.Printf("matchmaking: game %s created but not every player was notified", session.ID)
		}
	}
}

// notify sends event to playerID's matchmaking channel, if any, and
// retires the channel. Caller holds gm.mu.
func (gm *GameManager) notify(playerID string, event MatchFoundEvent) bool {
	ch, ok := gm.matchingChannels[playerID]
	if !ok {
		return false
	}
	delete(gm.matchingChannels, playerID)
	select {
	case ch <- event:
		close(ch)
		return true
	default:
		close(ch)
		return false
	}
}

// RegisterMatchmakingChannel sets the channel a match for playerID is
// announced on. A channel registered earlier is closed.
func (gm *GameManager) RegisterMatchmakingChannel(playerID string, ch chan MatchFoundEvent) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if existing, ok := gm.matchingChannels[playerID]; ok {
		delete(gm.matchingChannels, playerID)
		close(existing)
	}
	gm.matchingChannels[playerID] = ch
}

// UnregisterMatchmakingChannel forgets ch if it is still playerID's
// channel. The channel itself is left open for its owner to drain.
func (gm *GameManager) UnregisterMatchmakingChannel(playerID string, ch chan MatchFoundEvent) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if current, ok := gm.matchingChannels[playerID]; ok && current == ch {
		delete(gm.matchingChannels, playerID)
	}
}

// CreateGame registers a new empty game and returns its id.
func (gm *GameManager) CreateGame() (string, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	id := gm.newID()
	if _, exists := gm.games[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrGameExists, id)
	}
	session := NewSession(id)
	if err := gm.store.Save(session.Record()); err != nil {
		return "", fmt.Errorf("save game %s: %w", id, err)
	}
	gm.games[id] = session
	return id, nil
}

// GetGame returns the live session for gameID, restoring it from the store
// when it is not in memory.
func (gm *GameManager) GetGame(gameID string) (*Session, error) {
	gm.mu.RLock()
	session, exists := gm.games[gameID]
	gm.mu.RUnlock()
	if exists {
		return session, nil
	}

	rec, err := gm.store.Load(gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, err
	}
	restored, err := restoreSession(rec)
	if err != nil {
		return nil, err
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	if session, exists := gm.games[gameID]; exists {
		return session, nil
	}
	gm.games[gameID] = restored
	return restored, nil
}

// RestoreAll loads every stored game into memory and returns how many were
// restored. Records that no longer replay are logged and skipped.
func (gm *GameManager) RestoreAll() (int, error) {
	ids, err := gm.store.List()
	if err != nil {
		return 0, fmt.Errorf("list stored games: %w", err)
	}
	restored := 0
	for _, id := range ids {
		if _, err := gm.GetGame(id); err != nil {
			log.Printf("restore game %s: %v", id, err)
			continue
		}
		restored++
	}
	return restored, nil
}

// DeleteGame removes a finished game from memory and from the store. Only
// a seated player may delete it.
func (gm *GameManager) DeleteGame(gameID string, playerID string) error {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	_, seated := session.teamOf(playerID)
	session.mu.Unlock()
	if !seated {
		return ErrNotInGame
	}
	if !session.Finished() {
		return ErrGameOngoing
	}

	session.saveMu.Lock()
	err = gm.store.Delete(gameID)
	session.saveMu.Unlock()
	if err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}

	gm.mu.Lock()
	if gm.games[gameID] == session {
		delete(gm.games, gameID)
	}
	gm.mu.Unlock()

	session.CloseConnections("Game deleted")
	return nil
}

func (gm *GameManager) AddPlayerToGame(gameID string, playerID string) (model.Team, error) {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return model.White, err
	}
	team, err := session.AddPlayer(playerID)
	if err != nil {
		return team, err
	}
	gm.save(session)
	session.Broadcast()
	return team, nil
}

func (gm *GameManager) JoinMatchmaking(playerID string) error {
	return gm.queue.AddPlayer(playerID)
}

func (gm *GameManager) LeaveMatchmaking(playerID string) {
	gm.queue.RemovePlayer(playerID)
}

func (gm *GameManager) GetSnapshot(gameID string) (Snapshot, error) {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (gm *GameManager) LegalMoves(gameID string, pos model.Position) ([]model.Move, error) {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	return session.LegalMoves(pos), nil
}

// MakeMove plays move for playerID, saves the game and pushes the new state
// to everyone watching.
func (gm *GameManager) MakeMove(gameID string, playerID string, move model.Move) (Snapshot, error) {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := session.MakeMove(playerID, move)
	if err != nil {
		return Snapshot{}, err
	}
	gm.save(session)
	session.Broadcast()
	return snap, nil
}

func (gm *GameManager) RegisterConnection(gameID string, playerID string, conn Conn) error {
	session, err := gm.GetGame(gameID)
	if err != nil {
		return err
	}
	return session.RegisterConnection(playerID, conn)
}

func (gm *GameManager) UnregisterConnection(gameID string, playerID string, conn Conn) {
	gm.mu.RLock()
	session, exists := gm.games[gameID]
	gm.mu.RUnlock()
	if !exists {
		return
	}
	session.UnregisterConnection(playerID, conn)
}

// save writes the session's record. A failed write is logged; the live
// game carries on.
func (gm *GameManager) save(session *Session) {
	session.saveMu.Lock()
	defer session.saveMu.Unlock()
	if err := gm.store.Save(session.Record()); err != nil {
		log.Printf("save game %s: %v", session.ID, err)
	}
}
