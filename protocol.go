package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoinQueue   = "join_queue"
	MsgLeaveQueue  = "leave_queue"
	MsgQueueStatus = "queue_status"
	MsgReady       = "ready"
	MsgMove        = "move"
	MsgBall        = "ball"
	MsgGoalAttempt = "goal_attempt"
	MsgPause       = "pause"
	MsgResume      = "resume"
	MsgForfeit     = "forfeit"
	MsgEndRequest  = "end_request"
	MsgRegister    = "register"
	MsgLogin       = "login"
	MsgAuth        = "auth"
	MsgProfile     = "profile"
	MsgLeaderboard = "leaderboard"
)

// Server -> Client message types
const (
	MsgQueued          = "queued"
	MsgQueuePos        = "queue_pos"
	MsgRoomAssigned    = "room_assigned"
	MsgGameStarted     = "game_started"
	MsgPlayerMoved     = "player_moved"
	MsgMoveRejected    = "move_rejected"
	MsgBallUpdated     = "ball_updated"
	MsgGoalScored      = "goal_scored"
	MsgGamePaused      = "game_paused"
	MsgGameResumed     = "game_resumed"
	MsgGameEnded       = "game_ended"
	MsgState           = "state" // binary msgpack snapshot
	MsgError           = "error"
	MsgAuthOK          = "auth_ok"
	MsgProfileData     = "profile_data"
	MsgLeaderboardData = "leaderboard_data"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinQueueMsg asks the matchmaker for an opponent
type JoinQueueMsg struct {
	Name   string `json:"name"`
	Mode   int    `json:"mode"`
	Region string `json:"region"`
}

// QueuedMsg confirms queue entry
type QueuedMsg struct {
	Position      int     `json:"pos"`
	EstimatedWait float64 `json:"wait"` // seconds
}

// QueuePosMsg answers a queue_status request
type QueuePosMsg struct {
	InQueue       bool    `json:"in_queue"`
	Position      int     `json:"pos,omitempty"`
	EstimatedWait float64 `json:"wait,omitempty"`
}

// RoomAssignedMsg tells a player they were matched
type RoomAssignedMsg struct {
	RoomID       string  `json:"rid"`
	Side         string  `json:"side"` // "left" or "right"
	OpponentName string  `json:"opp"`
	OpponentElo  int     `json:"opp_elo"`
	Mode         int     `json:"mode"`
	TimeLimit    float64 `json:"tl"`
	ScoreLimit   int     `json:"sl"`
}

// MoveMsg is the client's claimed movement state
type MoveMsg struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Facing   int     `json:"f"` // -1 left, 1 right
	OnGround bool    `json:"g"`
	Kicking  bool    `json:"k"`
	Seq      uint32  `json:"seq"`
}

// PlayerMovedMsg relays a validated movement to the other player
type PlayerMovedMsg struct {
	PlayerID string  `json:"pid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Facing   int     `json:"f"`
	Seq      uint32  `json:"seq"`
}

// MoveRejectedMsg carries the server-corrected state the client should snap to
type MoveRejectedMsg struct {
	Reason string  `json:"reason"`
	Seq    uint32  `json:"seq"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
}

// BallMsg is a ball-physics claim from the authoritative player
type BallMsg struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VX   float64 `json:"vx"`
	VY   float64 `json:"vy"`
	Spin float64 `json:"spin"`
}

// BallUpdatedMsg relays the accepted ball state
type BallUpdatedMsg struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	VX            float64 `json:"vx"`
	VY            float64 `json:"vy"`
	Spin          float64 `json:"spin"`
	Authoritative string  `json:"auth"` // player ID currently driving the ball
}

// GoalAttemptMsg is a client-reported goal claim
type GoalAttemptMsg struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	GoalType string  `json:"type"` // "normal", "header", "volley"
}

// GoalScoredMsg is broadcast when a goal is validated
type GoalScoredMsg struct {
	ScorerID   string `json:"pid"`
	GoalType   string `json:"type"`
	ScoreLeft  int    `json:"sl"`
	ScoreRight int    `json:"sr"`
}

// PauseMsg carries a pause or resume request
type PauseMsg struct {
	Reason string `json:"reason"`
}

// GamePausedMsg is broadcast when a room pauses
type GamePausedMsg struct {
	Reason      string  `json:"reason"`
	RequesterID string  `json:"pid,omitempty"`
	MaxDuration float64 `json:"max"` // seconds until auto-resume
}

// GameResumedMsg is broadcast when a room resumes
type GameResumedMsg struct {
	Reason string `json:"reason"`
}

// EndRequestMsg is an explicit player request to end the match
type EndRequestMsg struct {
	Reason    string `json:"reason"`
	Confirmed bool   `json:"confirmed,omitempty"`
	AdminCode string `json:"admin_code,omitempty"`
}

// GameEndedMsg announces the single authoritative outcome
type GameEndedMsg struct {
	WinnerID   string  `json:"winner,omitempty"` // empty on a draw
	Draw       bool    `json:"draw"`
	ScoreLeft  int     `json:"sl"`
	ScoreRight int     `json:"sr"`
	Reason     string  `json:"reason"`
	Duration   float64 `json:"dur"` // seconds
}

// GameStartedMsg is broadcast when the match begins
type GameStartedMsg struct {
	RoomID string `json:"rid"`
}

// ErrorMsg sends a rejection to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with credentials
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a saved token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"player_id"`
	Elo      int    `json:"elo"`
}

// ProfileDataMsg returns the requester's persisted stats
type ProfileDataMsg struct {
	Username     string  `json:"username"`
	Elo          int     `json:"elo"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Draws        int     `json:"draws"`
	GoalsFor     int     `json:"goals_for"`
	GoalsAgainst int     `json:"goals_against"`
	Playtime     float64 `json:"playtime"`
}

// Snapshot is the authoritative state broadcast, msgpack-encoded as a
// binary WebSocket message (text messages stay JSON)
type Snapshot struct {
	Tick       uint64           `msgpack:"t"`
	RoomID     string           `msgpack:"rid"`
	Status     int              `msgpack:"st"`
	Elapsed    float64          `msgpack:"el"`
	ScoreLeft  int              `msgpack:"sl"`
	ScoreRight int              `msgpack:"sr"`
	Ball       BallSnapshot     `msgpack:"b"`
	Players    []PlayerSnapshot `msgpack:"p"`
}

// BallSnapshot is the ball portion of a Snapshot
type BallSnapshot struct {
	X    float64 `msgpack:"x"`
	Y    float64 `msgpack:"y"`
	VX   float64 `msgpack:"vx"`
	VY   float64 `msgpack:"vy"`
	Spin float64 `msgpack:"s"`
	Auth string  `msgpack:"a"` // current ball authority
}

// PlayerSnapshot is the per-player portion of a Snapshot
type PlayerSnapshot struct {
	ID     string  `msgpack:"id"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	VX     float64 `msgpack:"vx"`
	VY     float64 `msgpack:"vy"`
	Facing int     `msgpack:"f"`
	Seq    uint32  `msgpack:"q"`
}
