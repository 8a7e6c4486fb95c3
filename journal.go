package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// Journaled event types
const (
	EvtQueueJoin    = "queue_join"
	EvtQueueLeave   = "queue_leave"
	EvtQueueTimeout = "queue_timeout"
	EvtMatchCreated = "match_created"
	EvtGameStart    = "game_start"
	EvtGoal         = "goal"
	EvtPause        = "pause"
	EvtResume       = "resume"
	EvtGameEnd      = "game_end"
	EvtDisconnect   = "disconnect"
)

// JournalEvent is a single match-lifecycle fact
type JournalEvent struct {
	Type      string
	PlayerID  string
	RoomID    string
	Detail    string
	Timestamp time.Time
}

// EventJournal persists match-lifecycle events with batched background
// writes. Tracking never blocks: a full channel drops the event rather
// than stalling the tick loop or the matchmaker.
type EventJournal struct {
	db     *DB
	events chan JournalEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewEventJournal creates and starts the background writer. db may be nil,
// which turns the journal into a sink.
func NewEventJournal(db *DB) *EventJournal {
	j := &EventJournal{
		db:     db,
		events: make(chan JournalEvent, 1024),
		stop:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an event for async persistence (non-blocking).
// Safe on a nil journal so callers never need to guard.
func (j *EventJournal) Track(evtType, playerID, roomID, detail string) {
	if j == nil {
		return
	}
	select {
	case j.events <- JournalEvent{
		Type:      evtType,
		PlayerID:  playerID,
		RoomID:    roomID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full, drop rather than block
	}
}

// Stop gracefully shuts down the writer, flushing what remains
func (j *EventJournal) Stop() {
	close(j.stop)
	j.wg.Wait()
}

func (j *EventJournal) writer() {
	defer j.wg.Done()

	batch := make([]JournalEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			close(j.events)
			for evt := range j.events {
				batch = append(batch, evt)
			}
			if len(batch) > 0 {
				j.flush(batch)
			}
			return
		}
	}
}

func (j *EventJournal) flush(events []JournalEvent) {
	if j.db == nil || len(events) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		log.Printf("journal: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO match_events (event_type, player_id, room_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("journal: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullString{String: evt.PlayerID, Valid: evt.PlayerID != ""}
		rid := sql.NullString{String: evt.RoomID, Valid: evt.RoomID != ""}
		detail := sql.NullString{String: evt.Detail, Valid: evt.Detail != ""}
		if _, err := stmt.Exec(evt.Type, pid, rid, detail, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("journal: insert error: %v", err)
		}
	}
	tx.Commit()
}
