package main

import "sync"

// PlayerStatus tracks where a player is in the queue/room lifecycle
type PlayerStatus int

const (
	StatusIdle PlayerStatus = iota
	StatusInQueue
	StatusInRoom
	StatusInGame
	StatusDisconnected
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusInQueue:
		return "in_queue"
	case StatusInRoom:
		return "in_room"
	case StatusInGame:
		return "in_game"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// Player is a connected player's session identity. Created when the player
// first registers with the matchmaker, reset on disconnect.
type Player struct {
	ID   string
	Name string

	mu        sync.Mutex
	status    PlayerStatus
	elo       int
	connected bool

	// Link to the persisted account, 0 for guests
	AuthPlayerID int64

	// Per-session counters
	GoalsScored   int
	MatchesPlayed int
}

// NewPlayer creates a player with the default rating
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		status:    StatusIdle,
		elo:       DefaultElo,
		connected: true,
	}
}

// Status returns the player's current lifecycle status
func (p *Player) Status() PlayerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetStatus updates the player's lifecycle status
func (p *Player) SetStatus(s PlayerStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Elo returns the player's skill rating
func (p *Player) Elo() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elo
}

// SetElo updates the player's skill rating (loaded on login)
func (p *Player) SetElo(elo int) {
	p.mu.Lock()
	p.elo = elo
	p.mu.Unlock()
}

// Connected reports whether the player's connection is still live
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// MarkDisconnected flags the player as gone
func (p *Player) MarkDisconnected() {
	p.mu.Lock()
	p.connected = false
	p.status = StatusDisconnected
	p.mu.Unlock()
}
