package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Registry is the connection-registry capability the core consumes: send
// to one player, broadcast to a room, and read connection facts. The Hub
// implements it; tests substitute a mock.
type Registry interface {
	SendTo(playerID string, msg Envelope)
	BroadcastToRoom(roomID string, msg Envelope)
	BroadcastToRoomExcept(roomID, exceptID string, msg Envelope)
	BroadcastBinaryToRoom(roomID string, data []byte)
	Connected(playerID string) bool
	Latency(playerID string) time.Duration
}

// Hub manages all connected clients and implements the connection registry
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	byPlayer   map[string]*Client // playerID -> client
	register   chan *Client
	unregister chan *Client

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	// Core subsystems, wired once at startup
	rooms      *RoomManager
	matchmaker *Matchmaker
	sim        *Simulation
	end        *GameEnd
	journal    *EventJournal

	// Auth & DB
	db   *DB
	auth *Auth
}

// NewHub creates a Hub with database-backed auth
func NewHub(db *DB, journal *EventJournal) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		byPlayer:   make(map[string]*Client),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ipConns:    make(map[string]int),
		db:         db,
		journal:    journal,
	}
	if db != nil {
		h.auth = NewAuth(db)
	}
	return h
}

// AttachCore wires the gameplay subsystems. Must be called before Run.
func (h *Hub) AttachCore(rooms *RoomManager, mm *Matchmaker, sim *Simulation, end *GameEnd) {
	h.rooms = rooms
	h.matchmaker = mm
	h.sim = sim
	h.end = end
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.dropPlayer(client)
		}
	}
}

// dropPlayer runs the disconnect policy for a departing client
func (h *Hub) dropPlayer(client *Client) {
	p := client.player
	if p == nil {
		return
	}
	h.mu.Lock()
	if h.byPlayer[p.ID] == client {
		delete(h.byPlayer, p.ID)
	}
	h.mu.Unlock()

	p.MarkDisconnected()
	if h.matchmaker != nil {
		h.matchmaker.Dequeue(p.ID)
	}
	if h.end != nil {
		h.end.HandlePlayerDisconnect(p.ID)
	}
	log.Printf("player %s (%s) disconnected", p.ID, p.Name)
}

// BindPlayer associates a session player with its connection
func (h *Hub) BindPlayer(playerID string, c *Client) {
	h.mu.Lock()
	h.byPlayer[playerID] = c
	h.mu.Unlock()
}

// ClientFor returns the live connection for a player, or nil
func (h *Hub) ClientFor(playerID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byPlayer[playerID]
}

// SendTo sends a message to one player (no-op if offline)
func (h *Hub) SendTo(playerID string, msg Envelope) {
	if c := h.ClientFor(playerID); c != nil {
		c.SendJSON(msg)
	}
}

// BroadcastToRoom sends a message to every connected player in the room
func (h *Hub) BroadcastToRoom(roomID string, msg Envelope) {
	h.BroadcastToRoomExcept(roomID, "", msg)
}

// BroadcastToRoomExcept sends to every room member except one
func (h *Hub) BroadcastToRoomExcept(roomID, exceptID string, msg Envelope) {
	room := h.rooms.Get(roomID)
	if room == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	for _, p := range room.Players() {
		if p.ID == exceptID {
			continue
		}
		if c := h.ClientFor(p.ID); c != nil {
			c.SendRaw(data)
		}
	}
}

// BroadcastBinaryToRoom sends a binary frame to every room member
func (h *Hub) BroadcastBinaryToRoom(roomID string, data []byte) {
	room := h.rooms.Get(roomID)
	if room == nil {
		return
	}
	for _, p := range room.Players() {
		if c := h.ClientFor(p.ID); c != nil {
			c.SendBinary(data)
		}
	}
}

// Connected reports whether a player has a live connection
func (h *Hub) Connected(playerID string) bool {
	return h.ClientFor(playerID) != nil
}

// Latency returns a player's last-measured round-trip time
func (h *Hub) Latency(playerID string) time.Duration {
	if c := h.ClientFor(playerID); c != nil {
		return c.RTT()
	}
	return 0
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
