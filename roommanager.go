package main

import (
	"log"
	"sync"
	"time"
)

const maxRooms = 200

// RoomManager is the sole owner of the room table and the player→room
// index. Every other component goes through its accessors, so the two
// maps only ever have one writer path.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	byPlayer map[string]string // playerID -> roomID

	stop chan struct{}
	once sync.Once
}

// NewRoomManager creates an empty room table
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		byPlayer: make(map[string]string),
		stop:     make(chan struct{}),
	}
}

// CreateRoom creates a new room for the given mode. Returns nil if the
// room table is at capacity.
func (rm *RoomManager) CreateRoom(cfg ModeConfig) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rooms) >= maxRooms {
		return nil
	}
	room := NewRoom(cfg)
	rm.rooms[room.ID] = room
	return room
}

// Get returns a room by ID, or nil
func (rm *RoomManager) Get(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// RoomForPlayer returns the room a player is seated in, or nil
func (rm *RoomManager) RoomForPlayer(playerID string) *Room {
	rm.mu.RLock()
	roomID, ok := rm.byPlayer[playerID]
	rm.mu.RUnlock()
	if !ok {
		return nil
	}
	return rm.Get(roomID)
}

// Seat adds the player to the room and records the player→room binding.
// The binding is what enforces "a player belongs to at most one room".
func (rm *RoomManager) Seat(room *Room, p *Player) AddResult {
	rm.mu.Lock()
	if existing, ok := rm.byPlayer[p.ID]; ok && existing != room.ID {
		rm.mu.Unlock()
		return AddResult{Reason: "player already in another room"}
	}
	rm.mu.Unlock()

	res := room.AddPlayer(p)
	if res.OK {
		rm.mu.Lock()
		rm.byPlayer[p.ID] = room.ID
		rm.mu.Unlock()
	}
	return res
}

// Unseat removes the player from their room and drops the binding
func (rm *RoomManager) Unseat(playerID string) Result {
	room := rm.RoomForPlayer(playerID)
	if room == nil {
		return Result{Reason: "player not in a room"}
	}
	res := room.RemovePlayer(playerID)
	if res.OK {
		rm.mu.Lock()
		delete(rm.byPlayer, playerID)
		rm.mu.Unlock()
	}
	return res
}

// RemoveRoom tears a room down: cancels its timers and drops it and all
// of its player bindings from the tables
func (rm *RoomManager) RemoveRoom(id string) {
	rm.mu.Lock()
	room, ok := rm.rooms[id]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.rooms, id)
	for pid, rid := range rm.byPlayer {
		if rid == id {
			delete(rm.byPlayer, pid)
		}
	}
	rm.mu.Unlock()

	room.CancelTimers()
	for _, p := range room.Players() {
		if p.Connected() {
			p.SetStatus(StatusIdle)
		}
	}
}

// ActiveRooms returns rooms currently playing or paused, for the tick loop
func (rm *RoomManager) ActiveRooms() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		st := r.Status()
		if st == RoomPlaying || st == RoomPaused {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of live rooms
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Run sweeps idle and abandoned rooms on a fixed interval
func (rm *RoomManager) Run() {
	ticker := time.NewTicker(RoomSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.sweep()
		case <-rm.stop:
			return
		}
	}
}

// Stop terminates the sweep loop
func (rm *RoomManager) Stop() {
	rm.once.Do(func() { close(rm.stop) })
}

func (rm *RoomManager) sweep() {
	rm.mu.RLock()
	candidates := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		candidates = append(candidates, r)
	}
	rm.mu.RUnlock()

	for _, r := range candidates {
		st := r.Status()
		if st == RoomAbandoned || r.IsInactive(RoomIdleTimeout) {
			log.Printf("room %s swept (status=%s)", r.ID, st)
			rm.RemoveRoom(r.ID)
		}
	}
}
