package main

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// AccountRow represents a registered account
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// RatingRow represents a player's persisted rating and record
type RatingRow struct {
	PlayerID     int64
	Elo          int
	Wins         int
	Losses       int
	Draws        int
	GoalsFor     int
	GoalsAgainst int
	Playtime     float64 // seconds
}

// MatchHistoryRow is one finished match from a player's history
type MatchHistoryRow struct {
	MatchID    string
	Mode       int
	Side       string
	Goals      int
	EloBefore  int
	EloAfter   int
	Won        bool
	Draw       bool
	EndReason  string
	Duration   float64
	FinishedAt time.Time
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode: the journal writer and match recorder share this handle
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ratings (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		elo INTEGER NOT NULL DEFAULT 1200,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		goals_for INTEGER NOT NULL DEFAULT 0,
		goals_against INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		mode INTEGER NOT NULL DEFAULT 0,
		score_left INTEGER NOT NULL DEFAULT 0,
		score_right INTEGER NOT NULL DEFAULT 0,
		winner_account INTEGER,
		draw INTEGER NOT NULL DEFAULT 0,
		end_reason TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id TEXT NOT NULL REFERENCES matches(id),
		player_id INTEGER NOT NULL REFERENCES players(id),
		side TEXT NOT NULL DEFAULT '',
		goals INTEGER NOT NULL DEFAULT 0,
		elo_before INTEGER NOT NULL DEFAULT 0,
		elo_after INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE TABLE IF NOT EXISTS match_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT,
		room_id TEXT,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_player ON match_players(player_id);
	CREATE INDEX IF NOT EXISTS idx_match_events_room ON match_events(room_id);
	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting reads a settings value, "" if absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreateAccount creates a new account with a seeded rating row
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = db.conn.Exec("INSERT INTO ratings (player_id, elo) VALUES (?, ?)", id, DefaultElo)
	return id, err
}

// GetAccountByUsername returns an account by username, nil when absent
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM players WHERE username = ?",
		username,
	)
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetRating returns a player's rating row, nil when absent
func (db *DB) GetRating(playerID int64) (*RatingRow, error) {
	row := db.conn.QueryRow(
		"SELECT player_id, elo, wins, losses, draws, goals_for, goals_against, playtime FROM ratings WHERE player_id = ?",
		playerID,
	)
	r := &RatingRow{}
	err := row.Scan(&r.PlayerID, &r.Elo, &r.Wins, &r.Losses, &r.Draws, &r.GoalsFor, &r.GoalsAgainst, &r.Playtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// RecordMatchResult persists a finished match: the match row, each
// registered player's participation, and their updated rating. Guests
// (AuthPlayerID 0) appear in the match row but get no stats update.
func (db *DB) RecordMatchResult(rec MatchRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var winnerAccount sql.NullInt64
	for _, p := range rec.Players {
		if p.Won && p.AuthPlayerID != 0 {
			winnerAccount = sql.NullInt64{Int64: p.AuthPlayerID, Valid: true}
		}
	}

	_, err = tx.Exec(
		`INSERT INTO matches (id, mode, score_left, score_right, winner_account, draw, end_reason, duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomID, int(rec.Mode), rec.ScoreLeft, rec.ScoreRight,
		winnerAccount, boolToInt(rec.Draw), rec.Reason, rec.Duration, rec.EndedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	for i, p := range rec.Players {
		if p.AuthPlayerID == 0 {
			continue
		}
		opponentElo := DefaultElo
		if len(rec.Players) == 2 {
			opponentElo = rec.Players[1-i].Elo
		}
		score := 0.0
		switch {
		case rec.Draw:
			score = 0.5
		case p.Won:
			score = 1.0
		}
		newElo := EloUpdate(p.Elo, opponentElo, score)

		goalsAgainst := rec.ScoreLeft
		if p.Side == "left" {
			goalsAgainst = rec.ScoreRight
		}
		winInc, lossInc, drawInc := 0, 0, 0
		switch {
		case rec.Draw:
			drawInc = 1
		case p.Won:
			winInc = 1
		default:
			lossInc = 1
		}

		_, err = tx.Exec(
			`INSERT INTO match_players (match_id, player_id, side, goals, elo_before, elo_after, won)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RoomID, p.AuthPlayerID, p.Side, p.Goals, p.Elo, newElo, boolToInt(p.Won),
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			`UPDATE ratings SET
				elo = ?,
				wins = wins + ?,
				losses = losses + ?,
				draws = draws + ?,
				goals_for = goals_for + ?,
				goals_against = goals_against + ?,
				playtime = playtime + ?
			WHERE player_id = ?`,
			newElo, winInc, lossInc, drawInc, p.Goals, goalsAgainst, rec.Duration, p.AuthPlayerID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLeaderboard returns top registered players by ELO
func (db *DB) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	rows, err := db.conn.Query(
		`SELECT p.username, r.elo, r.wins, r.losses, r.draws
		 FROM ratings r JOIN players p ON p.id = r.player_id
		 WHERE p.is_guest = 0
		 ORDER BY r.elo DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Elo, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetMatchHistory returns recent matches for a registered player
func (db *DB) GetMatchHistory(playerID int64, limit int) ([]MatchHistoryRow, error) {
	rows, err := db.conn.Query(`
		SELECT mp.match_id, m.mode, mp.side, mp.goals, mp.elo_before, mp.elo_after, mp.won,
		       m.draw, m.end_reason, m.duration, m.created_at
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE mp.player_id = ?
		ORDER BY m.created_at DESC
		LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchHistoryRow
	for rows.Next() {
		var r MatchHistoryRow
		var won, draw int
		var createdAt string
		if err := rows.Scan(&r.MatchID, &r.Mode, &r.Side, &r.Goals, &r.EloBefore, &r.EloAfter, &won, &draw, &r.EndReason, &r.Duration, &createdAt); err != nil {
			return nil, err
		}
		r.Won = won != 0
		r.Draw = draw != 0
		r.FinishedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, r)
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
