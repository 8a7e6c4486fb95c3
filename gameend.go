package main

import (
	"log"
	"sync"
	"time"
)

// GameEnd arbitrates why and how a match ends and guarantees both players
// observe a single consistent outcome. Persistence is handed off
// fire-and-forget: the in-memory outcome is the session's source of truth.
type GameEnd struct {
	rooms     *RoomManager
	registry  Registry
	store     MatchStore // nil disables persistence
	journal   *EventJournal
	adminCode string

	// mutual_agreement needs confirmation from both players
	mu         sync.Mutex
	agreements map[string]map[string]bool // roomID -> playerID -> confirmed
	concluded  map[string]bool            // rooms whose outcome already went out
}

// MatchStore is the external persistence collaborator
type MatchStore interface {
	RecordMatchResult(rec MatchRecord) error
}

// MatchRecord is the immutable end-of-match fact handed to persistence
type MatchRecord struct {
	RoomID     string
	Mode       GameMode
	Reason     string
	WinnerID   string // empty on a draw or abandonment
	Draw       bool
	ScoreLeft  int
	ScoreRight int
	Duration   float64
	Players    []MatchPlayerRecord
	EndedAt    time.Time
}

// MatchPlayerRecord is one player's share of a match record
type MatchPlayerRecord struct {
	PlayerID     string
	AuthPlayerID int64 // 0 for guests; guests get no persisted stats
	Side         string
	Goals        int
	Elo          int
	Won          bool
}

// NewGameEnd creates the coordinator
func NewGameEnd(rooms *RoomManager, registry Registry, store MatchStore, journal *EventJournal, adminCode string) *GameEnd {
	return &GameEnd{
		rooms:      rooms,
		registry:   registry,
		store:      store,
		journal:    journal,
		adminCode:  adminCode,
		agreements: make(map[string]map[string]bool),
		concluded:  make(map[string]bool),
	}
}

// HandleGameEnd finishes a room for a simulation-detected reason
// (score/time limit). Idempotent: an already-FINISHED room returns success
// without re-broadcasting.
func (ge *GameEnd) HandleGameEnd(roomID, reason string) Result {
	room := ge.rooms.Get(roomID)
	if room == nil {
		return Result{Reason: "room not found"}
	}

	if room.Status() == RoomFinished {
		// The room decided its own winner when the condition tripped;
		// make sure the outcome went out exactly once
		winnerID, draw, winReason, _ := room.Outcome()
		if winReason == "" {
			winReason = reason
		}
		ge.conclude(room, winReason, winnerID, draw)
		return Result{OK: true}
	}

	winnerID, draw := leaderOf(room)
	room.Finish(reason, winnerID, draw)
	ge.conclude(room, reason, winnerID, draw)
	return Result{OK: true}
}

// RequestGameEnd validates an explicit player request to end the match
func (ge *GameEnd) RequestGameEnd(requesterID, reason string, confirmed bool, adminCode string) Result {
	room := ge.rooms.RoomForPlayer(requesterID)

	switch reason {
	case EndForfeit:
		if room == nil || !activeStatus(room.Status()) {
			return Result{Reason: "requester is not in an active game"}
		}
		winner := room.Opponent(requesterID)
		winnerID := ""
		if winner != nil {
			winnerID = winner.ID
		}
		return ge.endWith(room, EndForfeit, winnerID, winnerID == "")

	case EndTechnical:
		if room == nil || !activeStatus(room.Status()) {
			return Result{Reason: "requester is not in an active game"}
		}
		// Technical issues end without a winner
		return ge.endWith(room, EndTechnical, "", true)

	case EndMutual:
		if room == nil || !activeStatus(room.Status()) {
			return Result{Reason: "requester is not in an active game"}
		}
		if !confirmed {
			return Result{Reason: "mutual agreement requires confirmation"}
		}
		if !ge.recordAgreement(room, requesterID) {
			return Result{OK: true, Reason: "waiting for opponent confirmation"}
		}
		return ge.endWith(room, EndMutual, "", true)

	case EndAdmin:
		if ge.adminCode == "" || adminCode != ge.adminCode {
			return Result{Reason: "invalid admin code"}
		}
		if room == nil {
			return Result{Reason: "no active room for requester"}
		}
		return ge.endWith(room, EndAdmin, "", true)

	default:
		return Result{Reason: "unrecognized end reason: " + reason}
	}
}

// HandleForcedGameEnd bypasses per-reason validation for system-triggered
// ends (pause timeouts, shutdown)
func (ge *GameEnd) HandleForcedGameEnd(roomID, reason, requesterID string) Result {
	room := ge.rooms.Get(roomID)
	if room == nil {
		return Result{Reason: "room not found"}
	}
	winnerID, draw := leaderOf(room)
	return ge.endWith(room, reason, winnerID, draw)
}

// HandlePlayerDisconnect applies the disconnect policy: in a PLAYING or
// PAUSED room the disconnecting player loses, unless both players are gone,
// in which case the room is abandoned with no winner.
func (ge *GameEnd) HandlePlayerDisconnect(playerID string) {
	room := ge.rooms.RoomForPlayer(playerID)
	if room == nil {
		return
	}
	ge.journal.Track(EvtDisconnect, playerID, room.ID, "")

	if !activeStatus(room.Status()) {
		// Pre-game: just free the slot
		ge.rooms.Unseat(playerID)
		return
	}

	remaining := room.Opponent(playerID)
	if remaining == nil || !remaining.Connected() {
		room.Finish(EndDisconnect, "", true)
		room.CancelTimers()
		ge.rooms.RemoveRoom(room.ID)
		log.Printf("room %s abandoned: all players disconnected", room.ID)
		return
	}
	ge.endWith(room, EndDisconnect, remaining.ID, false)
}

// endWith finishes the room if it isn't already and runs the conclusion.
// If another path finished it first, that single outcome stands.
func (ge *GameEnd) endWith(room *Room, reason, winnerID string, draw bool) Result {
	if !room.Finish(reason, winnerID, draw) {
		winnerID, draw, reason, _ = room.Outcome()
	}
	ge.conclude(room, reason, winnerID, draw)
	return Result{OK: true}
}

// conclude broadcasts the outcome, schedules the delayed cleanup, and hands
// the record to persistence, exactly once per room. Persistence failures
// are logged, never surfaced: cleanup and the player-visible outcome do not
// wait on them.
func (ge *GameEnd) conclude(room *Room, reason, winnerID string, draw bool) {
	ge.mu.Lock()
	if ge.concluded[room.ID] {
		ge.mu.Unlock()
		return
	}
	ge.concluded[room.ID] = true
	delete(ge.agreements, room.ID)
	ge.mu.Unlock()

	_, _, _, duration := room.Outcome()
	sl, sr := room.Score()

	ge.registry.BroadcastToRoom(room.ID, Envelope{T: MsgGameEnded, Data: GameEndedMsg{
		WinnerID:   winnerID,
		Draw:       draw,
		ScoreLeft:  sl,
		ScoreRight: sr,
		Reason:     reason,
		Duration:   duration,
	}})
	ge.journal.Track(EvtGameEnd, winnerID, room.ID, reason)

	// Free the room only after the broadcast has had time to deliver
	roomID := room.ID
	room.SetCleanupTimer(time.AfterFunc(CleanupDelay, func() {
		ge.rooms.RemoveRoom(roomID)
		ge.mu.Lock()
		delete(ge.concluded, roomID)
		ge.mu.Unlock()
	}))

	rec := buildRecord(room, reason, winnerID, draw, sl, sr, duration)
	if ge.store != nil {
		go func() {
			if err := ge.store.RecordMatchResult(rec); err != nil {
				log.Printf("persistence: record match %s: %v", rec.RoomID, err)
			}
		}()
	}
}

func buildRecord(room *Room, reason, winnerID string, draw bool, sl, sr int, duration float64) MatchRecord {
	rec := MatchRecord{
		RoomID:     room.ID,
		Mode:       room.Config().Mode,
		Reason:     reason,
		WinnerID:   winnerID,
		Draw:       draw,
		ScoreLeft:  sl,
		ScoreRight: sr,
		Duration:   duration,
		EndedAt:    time.Now(),
	}
	for _, p := range room.Players() {
		side := room.Side(p.ID)
		goals := sl
		if side == "right" {
			goals = sr
		}
		p.MatchesPlayed++
		rec.Players = append(rec.Players, MatchPlayerRecord{
			PlayerID:     p.ID,
			AuthPlayerID: p.AuthPlayerID,
			Side:         side,
			Goals:        goals,
			Elo:          p.Elo(),
			Won:          p.ID == winnerID,
		})
	}
	return rec
}

// recordAgreement returns true once both seated players have confirmed
func (ge *GameEnd) recordAgreement(room *Room, playerID string) bool {
	ge.mu.Lock()
	defer ge.mu.Unlock()

	set, ok := ge.agreements[room.ID]
	if !ok {
		set = make(map[string]bool)
		ge.agreements[room.ID] = set
	}
	set[playerID] = true

	for _, p := range room.Players() {
		if !set[p.ID] {
			return false
		}
	}
	return len(set) >= 2
}

func activeStatus(s RoomStatus) bool {
	return s == RoomPlaying || s == RoomPaused
}

// leaderOf returns the current score leader, or a draw
func leaderOf(room *Room) (winnerID string, draw bool) {
	sl, sr := room.Score()
	players := room.Players()
	if sl == sr || len(players) < 2 {
		return "", true
	}
	if sl > sr {
		return players[0].ID, false
	}
	return players[1].ID, false
}
