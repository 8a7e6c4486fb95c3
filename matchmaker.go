package main

import (
	"log"
	"sync"
	"time"
)

// QueueEntry wraps a waiting player. Owned exclusively by the Matchmaker;
// Tolerance only ever widens while the entry waits.
type QueueEntry struct {
	Player    *Player
	JoinedAt  time.Time
	Mode      GameMode
	Region    string
	Tolerance int
}

// EnqueueResult reports queue admission
type EnqueueResult struct {
	OK            bool
	Reason        string
	Position      int
	EstimatedWait time.Duration
}

// QueueStatus answers a position query
type QueueStatus struct {
	InQueue       bool
	Position      int
	EstimatedWait time.Duration
}

// Matchmaker owns the waiting queue and pairs compatible players into
// rooms. Matching is greedy oldest-first: not globally optimal, but it
// bounds worst-case wait, and the widening tolerance does the rest.
type Matchmaker struct {
	mu    sync.Mutex
	queue []*QueueEntry // join order, oldest first
	byID  map[string]*QueueEntry

	rooms    *RoomManager
	registry Registry
	journal  *EventJournal

	stop chan struct{}
	once sync.Once

	// Best-effort stats; never consulted by the matching path
	matched   int
	totalWait time.Duration
}

// NewMatchmaker creates a matchmaker over the given room table and registry
func NewMatchmaker(rooms *RoomManager, registry Registry, journal *EventJournal) *Matchmaker {
	return &Matchmaker{
		byID:     make(map[string]*QueueEntry),
		rooms:    rooms,
		registry: registry,
		journal:  journal,
		stop:     make(chan struct{}),
	}
}

// Enqueue admits a player to the queue. Rejects if the player is already
// queued, already in a room, or the queue is full.
func (m *Matchmaker) Enqueue(p *Player, mode GameMode, region string) EnqueueResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[p.ID]; ok {
		return EnqueueResult{Reason: "already in queue"}
	}
	switch p.Status() {
	case StatusInRoom, StatusInGame:
		return EnqueueResult{Reason: "already in a room"}
	}
	if len(m.queue) >= QueueCapacity {
		return EnqueueResult{Reason: "queue is full"}
	}

	entry := &QueueEntry{
		Player:    p,
		JoinedAt:  time.Now(),
		Mode:      mode,
		Region:    region,
		Tolerance: SkillToleranceBase,
	}
	m.queue = append(m.queue, entry)
	m.byID[p.ID] = entry
	p.SetStatus(StatusInQueue)

	m.journal.Track(EvtQueueJoin, p.ID, "", mode.String())
	return EnqueueResult{
		OK:            true,
		Position:      len(m.queue),
		EstimatedWait: m.avgWaitLocked(),
	}
}

// Dequeue removes a player from the queue
func (m *Matchmaker) Dequeue(playerID string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(playerID, StatusIdle)
}

// QueuePosition reports a player's place in line
func (m *Matchmaker) QueuePosition(playerID string) QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.queue {
		if e.Player.ID == playerID {
			return QueueStatus{InQueue: true, Position: i + 1, EstimatedWait: m.avgWaitLocked()}
		}
	}
	return QueueStatus{}
}

// QueueLen returns the number of waiting entries
func (m *Matchmaker) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// MatchesMade returns the number of pairings created so far
func (m *Matchmaker) MatchesMade() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matched / 2
}

// Run drives the match sweep and the stale-entry cleanup on their own
// fixed intervals
func (m *Matchmaker) Run() {
	sweep := time.NewTicker(QueueSweepInterval)
	cleanup := time.NewTicker(QueueCleanupInterval)
	defer sweep.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-sweep.C:
			m.Sweep()
		case <-cleanup.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}

// Stop terminates the background loops
func (m *Matchmaker) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// Sweep widens tolerances by wait time, then runs one greedy matching pass
func (m *Matchmaker) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, e := range m.queue {
		steps := int(now.Sub(e.JoinedAt) / ToleranceInterval)
		tol := SkillToleranceBase + steps*SkillToleranceStep
		if tol > e.Tolerance {
			e.Tolerance = tol
		}
	}
	m.matchPassLocked()
}

// matchPassLocked scans oldest-first for the first compatible partner of
// each unmatched entry: same mode and region, both connected, ELO gap
// within the wider of the two tolerances.
func (m *Matchmaker) matchPassLocked() {
	taken := make(map[string]bool)

	for i := 0; i < len(m.queue); i++ {
		a := m.queue[i]
		if taken[a.Player.ID] || !a.Player.Connected() {
			continue
		}
		for j := i + 1; j < len(m.queue); j++ {
			b := m.queue[j]
			if taken[b.Player.ID] || !b.Player.Connected() {
				continue
			}
			if a.Mode != b.Mode || a.Region != b.Region {
				continue
			}
			if !withinTolerance(a, b) {
				continue
			}
			if m.createMatchLocked(a, b) {
				taken[a.Player.ID] = true
				taken[b.Player.ID] = true
			}
			// First candidate wins either way; a failed room creation
			// leaves both entries queued for the next sweep
			break
		}
	}
}

func withinTolerance(a, b *QueueEntry) bool {
	diff := a.Player.Elo() - b.Player.Elo()
	if diff < 0 {
		diff = -diff
	}
	tol := a.Tolerance
	if b.Tolerance > tol {
		tol = b.Tolerance
	}
	return diff <= tol
}

// createMatchLocked builds a room for the pair. On any failure the room is
// torn back down and both entries stay queued; entries are never lost.
func (m *Matchmaker) createMatchLocked(a, b *QueueEntry) bool {
	cfg := ConfigForMode(a.Mode)
	room := m.rooms.CreateRoom(cfg)
	if room == nil {
		log.Printf("matchmaker: room table full, keeping %s and %s queued", a.Player.ID, b.Player.ID)
		return false
	}

	resA := m.rooms.Seat(room, a.Player)
	if !resA.OK {
		m.rooms.RemoveRoom(room.ID)
		return false
	}
	resB := m.rooms.Seat(room, b.Player)
	if !resB.OK {
		m.rooms.Unseat(a.Player.ID)
		m.rooms.RemoveRoom(room.ID)
		a.Player.SetStatus(StatusInQueue)
		return false
	}

	now := time.Now()
	m.removeEntryLocked(a)
	m.removeEntryLocked(b)
	m.matched += 2
	m.totalWait += now.Sub(a.JoinedAt) + now.Sub(b.JoinedAt)

	m.notifyAssigned(a.Player, b.Player, room, resA.Side)
	m.notifyAssigned(b.Player, a.Player, room, resB.Side)
	m.journal.Track(EvtMatchCreated, a.Player.ID+","+b.Player.ID, room.ID, cfg.Mode.String())
	log.Printf("matchmaker: matched %s (elo %d) vs %s (elo %d) in room %s",
		a.Player.Name, a.Player.Elo(), b.Player.Name, b.Player.Elo(), room.ID)
	return true
}

func (m *Matchmaker) notifyAssigned(p, opponent *Player, room *Room, side string) {
	cfg := room.Config()
	m.registry.SendTo(p.ID, Envelope{T: MsgRoomAssigned, Data: RoomAssignedMsg{
		RoomID:       room.ID,
		Side:         side,
		OpponentName: opponent.Name,
		OpponentElo:  opponent.Elo(),
		Mode:         int(cfg.Mode),
		TimeLimit:    cfg.TimeLimit,
		ScoreLimit:   cfg.ScoreLimit,
	}})
}

// Cleanup removes entries that waited past the maximum queue lifetime and
// entries whose player has disconnected
func (m *Matchmaker) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, e := range append([]*QueueEntry(nil), m.queue...) {
		switch {
		case !e.Player.Connected():
			m.removeLocked(e.Player.ID, StatusDisconnected)
			m.journal.Track(EvtQueueLeave, e.Player.ID, "", "disconnected")
		case now.Sub(e.JoinedAt) > QueueMaxWait:
			m.removeLocked(e.Player.ID, StatusIdle)
			m.registry.SendTo(e.Player.ID, Envelope{T: MsgError, Data: ErrorMsg{
				Msg: "queue timeout: no opponent found",
			}})
			m.journal.Track(EvtQueueTimeout, e.Player.ID, "", "")
		}
	}
}

func (m *Matchmaker) removeLocked(playerID string, status PlayerStatus) Result {
	e, ok := m.byID[playerID]
	if !ok {
		return Result{Reason: "player not in queue"}
	}
	m.removeEntryLocked(e)
	e.Player.SetStatus(status)
	return Result{OK: true}
}

func (m *Matchmaker) removeEntryLocked(entry *QueueEntry) {
	delete(m.byID, entry.Player.ID)
	for i, e := range m.queue {
		if e == entry {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *Matchmaker) avgWaitLocked() time.Duration {
	if m.matched == 0 {
		return DefaultWaitEst
	}
	return m.totalWait / time.Duration(m.matched)
}
