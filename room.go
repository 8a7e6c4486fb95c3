package main

import (
	"sync"
	"time"
)

// RoomStatus is the room lifecycle state
type RoomStatus int

const (
	RoomWaiting RoomStatus = iota
	RoomReady
	RoomPlaying
	RoomPaused
	RoomFinished
	RoomAbandoned
)

func (s RoomStatus) String() string {
	switch s {
	case RoomReady:
		return "ready"
	case RoomPlaying:
		return "playing"
	case RoomPaused:
		return "paused"
	case RoomFinished:
		return "finished"
	case RoomAbandoned:
		return "abandoned"
	default:
		return "waiting"
	}
}

// Match end reasons
const (
	EndScoreLimit = "score_limit"
	EndTimeLimit  = "time_limit"
	EndDraw       = "draw" // sub-case of time_limit with equal scores
	EndForfeit    = "player_forfeit"
	EndTechnical  = "technical_issue"
	EndMutual     = "mutual_agreement"
	EndAdmin      = "admin_intervention"
	EndDisconnect = "disconnect"
)

// Result is the outcome of a room or queue operation. Operations reject
// with a reason instead of returning errors; nothing here panics or throws.
type Result struct {
	OK     bool
	Reason string
}

// AddResult reports slot assignment
type AddResult struct {
	OK     bool
	Reason string
	Side   string // "left" or "right"
}

// GoalResult reports a scored goal and whether it ended the game
type GoalResult struct {
	OK         bool
	Reason     string
	GameEnded  bool
	ScoreLeft  int
	ScoreRight int
}

// ReadyCheck reports whether a room can start
type ReadyCheck struct {
	Ready  bool
	Reason string
}

// RoomEvent is an append-only fact in the room's event log
type RoomEvent struct {
	At       time.Time
	Kind     string
	PlayerID string
	Detail   string
}

// PauseRecord tracks the single active pause. At most one exists per room.
type PauseRecord struct {
	Reason      string
	RequesterID string // empty for system pauses
	At          time.Time
	Deadline    time.Time // auto-resume point
}

// Room owns the authoritative state of one 1v1 match: slots, score, clock,
// ball, and lifecycle. All mutation goes through its methods under one lock,
// so no two operations on the same room ever interleave.
type Room struct {
	ID  string
	cfg ModeConfig

	mu           sync.Mutex
	status       RoomStatus
	left, right  *Player
	ready        map[string]bool
	scoreLeft    int
	scoreRight   int
	elapsed      float64 // seconds of play time
	startedAt    time.Time
	lastActivity time.Time
	events       []RoomEvent
	pause        *PauseRecord

	ball *BallState
	phys map[string]*PlayerPhysics

	goalCooldownUntil time.Time
	ballResetPending  bool

	// End state, set once
	winnerID  string
	draw      bool
	winReason string
	duration  float64

	// Cancellable timer handles; stopped on any teardown so no callback
	// fires against a dead room
	goalTimer    *time.Timer
	pauseTimer   *time.Timer
	cleanupTimer *time.Timer
}

// NewRoom creates an empty WAITING room with the given mode limits
func NewRoom(cfg ModeConfig) *Room {
	return &Room{
		ID:           NewRoomID(),
		cfg:          cfg,
		status:       RoomWaiting,
		ready:        make(map[string]bool),
		phys:         make(map[string]*PlayerPhysics),
		lastActivity: time.Now(),
	}
}

// Config returns the room's mode limits
func (r *Room) Config() ModeConfig {
	return r.cfg
}

// Status returns the current lifecycle state
func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Score returns the current score pair
func (r *Room) Score() (left, right int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoreLeft, r.scoreRight
}

// Elapsed returns the play clock in seconds
func (r *Room) Elapsed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// AddPlayer assigns the player to the left slot if empty, else right.
// Rejects when the room is full or the player is already seated.
func (r *Room) AddPlayer(p *Player) AddResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.left != nil && r.left.ID == p.ID || r.right != nil && r.right.ID == p.ID {
		return AddResult{Reason: "player already in room"}
	}
	side := ""
	switch {
	case r.left == nil:
		r.left = p
		side = "left"
	case r.right == nil:
		r.right = p
		side = "right"
	default:
		return AddResult{Reason: "room full"}
	}

	p.SetStatus(StatusInRoom)
	r.phys[p.ID] = NewPlayerPhysics(side)
	r.appendEvent("player_joined", p.ID, side)
	r.touch()
	return AddResult{OK: true, Side: side}
}

// RemovePlayer frees the player's slot. A PLAYING room pauses rather than
// finishing so the remaining player can wait out a reconnection; a room
// whose player count drops to zero is abandoned.
func (r *Room) RemovePlayer(playerID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.left != nil && r.left.ID == playerID:
		r.left = nil
	case r.right != nil && r.right.ID == playerID:
		r.right = nil
	default:
		return Result{Reason: "player not in room"}
	}
	delete(r.ready, playerID)
	delete(r.phys, playerID)
	r.appendEvent("player_left", playerID, "")

	if r.status == RoomPlaying {
		r.pause = &PauseRecord{
			Reason:   "player left",
			At:       time.Now(),
			Deadline: time.Now().Add(PauseTimeout),
		}
		r.status = RoomPaused
	}
	if r.left == nil && r.right == nil && r.status != RoomFinished {
		r.status = RoomAbandoned
		r.cancelTimersLocked()
	}
	r.touch()
	return Result{OK: true}
}

// PlayerCount returns how many slots are occupied
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	if r.left != nil {
		n++
	}
	if r.right != nil {
		n++
	}
	return n
}

// HasPlayer reports whether the player occupies a slot
func (r *Room) HasPlayer(playerID string) bool {
	return r.Side(playerID) != ""
}

// Side returns "left", "right", or "" for the given player
func (r *Room) Side(playerID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.left != nil && r.left.ID == playerID {
		return "left"
	}
	if r.right != nil && r.right.ID == playerID {
		return "right"
	}
	return ""
}

// Players returns the occupied slots, left first
func (r *Room) Players() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Player, 0, 2)
	if r.left != nil {
		out = append(out, r.left)
	}
	if r.right != nil {
		out = append(out, r.right)
	}
	return out
}

// Opponent returns the other seated player, or nil
func (r *Room) Opponent(playerID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.left != nil && r.left.ID == playerID {
		return r.right
	}
	if r.right != nil && r.right.ID == playerID {
		return r.left
	}
	return nil
}

// SetReady marks a seated player ready and promotes WAITING to READY when
// both players are
func (r *Room) SetReady(playerID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasPlayerLocked(playerID) {
		return Result{Reason: "player not in room"}
	}
	if r.status != RoomWaiting && r.status != RoomReady {
		return Result{Reason: "game already started"}
	}
	r.ready[playerID] = true
	r.appendEvent("player_ready", playerID, "")
	if r.readyCheckLocked().Ready {
		r.status = RoomReady
	}
	r.touch()
	return Result{OK: true}
}

// CheckReadyToStart requires exactly two connected, ready players
func (r *Room) CheckReadyToStart() ReadyCheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyCheckLocked()
}

func (r *Room) readyCheckLocked() ReadyCheck {
	if r.left == nil || r.right == nil {
		return ReadyCheck{Reason: "waiting for opponent"}
	}
	if !r.left.Connected() || !r.right.Connected() {
		return ReadyCheck{Reason: "player disconnected"}
	}
	if !r.ready[r.left.ID] || !r.ready[r.right.ID] {
		return ReadyCheck{Reason: "players not ready"}
	}
	return ReadyCheck{Ready: true}
}

// StartGame transitions WAITING/READY to PLAYING, stamps the start time,
// spawns the ball, and moves both players to IN_GAME
func (r *Room) StartGame() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomWaiting && r.status != RoomReady {
		return Result{Reason: "game not startable from " + r.status.String()}
	}
	check := r.readyCheckLocked()
	if !check.Ready {
		return Result{Reason: check.Reason}
	}

	r.status = RoomPlaying
	r.startedAt = time.Now()
	r.ball = NewBallState()
	r.left.SetStatus(StatusInGame)
	r.right.SetStatus(StatusInGame)
	r.appendEvent("game_started", "", "")
	r.touch()
	return Result{OK: true}
}

// AddGoal increments the scoring side, appends a goal event, and evaluates
// win conditions. A FINISHED room treats this as a no-op rejection so
// duplicate or late goal messages cannot corrupt the outcome.
func (r *Room) AddGoal(scorerID, goalType string) GoalResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == RoomFinished || r.status == RoomAbandoned {
		return GoalResult{Reason: "game already finished", ScoreLeft: r.scoreLeft, ScoreRight: r.scoreRight}
	}
	if r.status != RoomPlaying {
		return GoalResult{Reason: "game not in progress", ScoreLeft: r.scoreLeft, ScoreRight: r.scoreRight}
	}

	switch {
	case r.left != nil && r.left.ID == scorerID:
		r.scoreLeft++
		r.left.GoalsScored++
	case r.right != nil && r.right.ID == scorerID:
		r.scoreRight++
		r.right.GoalsScored++
	default:
		return GoalResult{Reason: "scorer not in room", ScoreLeft: r.scoreLeft, ScoreRight: r.scoreRight}
	}

	r.appendEvent("goal", scorerID, goalType)
	r.touch()
	ended := r.evaluateWinLocked()
	return GoalResult{OK: true, GameEnded: ended, ScoreLeft: r.scoreLeft, ScoreRight: r.scoreRight}
}

// UpdateGameTime raises the play clock to elapsed seconds (the clock never
// moves backwards) and re-evaluates the time-limit win condition. Returns
// true when the update ended the game.
func (r *Room) UpdateGameTime(elapsed float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomPlaying {
		return false
	}
	if elapsed > r.elapsed {
		r.elapsed = elapsed
	}
	return r.evaluateWinLocked()
}

// AdvanceClock adds one tick's worth of play time
func (r *Room) AdvanceClock(dt float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RoomPlaying {
		return false
	}
	r.elapsed += dt
	return r.evaluateWinLocked()
}

// evaluateWinLocked applies the win-condition policy. Score limit wins
// outright; the time limit picks the higher score or falls to a draw.
func (r *Room) evaluateWinLocked() bool {
	if r.status == RoomFinished {
		return false
	}
	if r.cfg.ScoreLimit > 0 && (r.scoreLeft >= r.cfg.ScoreLimit || r.scoreRight >= r.cfg.ScoreLimit) {
		r.finishBySideLocked(EndScoreLimit, r.scoreLeft > r.scoreRight)
		return true
	}
	if r.cfg.TimeLimit > 0 && r.elapsed >= r.cfg.TimeLimit {
		if r.scoreLeft == r.scoreRight {
			r.finishLocked(EndDraw, "", true)
		} else {
			r.finishBySideLocked(EndTimeLimit, r.scoreLeft > r.scoreRight)
		}
		return true
	}
	return false
}

// finishBySideLocked resolves the winning side to a player ID. A slot can be
// vacant here: a player may leave mid-game and the survivor play on after the
// pause. A vacated winning side loses to whoever is still seated; with both
// slots empty the game records a draw.
func (r *Room) finishBySideLocked(reason string, leftWins bool) {
	winner, other := r.left, r.right
	if !leftWins {
		winner, other = r.right, r.left
	}
	switch {
	case winner != nil:
		r.finishLocked(reason, winner.ID, false)
	case other != nil:
		r.finishLocked(reason, other.ID, false)
	default:
		r.finishLocked(EndDraw, "", true)
	}
}

// Finish marks the room FINISHED with the given outcome. Returns false if
// the room was already finished (callers skip re-broadcasting in that case).
func (r *Room) Finish(reason, winnerID string, draw bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RoomFinished {
		return false
	}
	r.finishLocked(reason, winnerID, draw)
	return true
}

func (r *Room) finishLocked(reason, winnerID string, draw bool) {
	r.status = RoomFinished
	r.winReason = reason
	r.winnerID = winnerID
	r.draw = draw
	if !r.startedAt.IsZero() {
		r.duration = time.Since(r.startedAt).Seconds()
	}
	r.pause = nil
	r.appendEvent("game_ended", winnerID, reason)
	r.touch()
	// Gameplay timers die with the game; the cleanup timer is armed after
	r.stopTimerLocked(&r.goalTimer)
	r.stopTimerLocked(&r.pauseTimer)
}

// Outcome returns the terminal result. Valid once status is FINISHED.
func (r *Room) Outcome() (winnerID string, draw bool, reason string, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winnerID, r.draw, r.winReason, r.duration
}

// PauseGame pauses a PLAYING room. requesterID is empty for system pauses.
func (r *Room) PauseGame(requesterID, reason string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomPlaying {
		return Result{Reason: "game is not in progress"}
	}
	if requesterID != "" && !r.hasPlayerLocked(requesterID) {
		return Result{Reason: "player not in room"}
	}
	r.pause = &PauseRecord{
		Reason:      reason,
		RequesterID: requesterID,
		At:          time.Now(),
		Deadline:    time.Now().Add(PauseTimeout),
	}
	r.status = RoomPaused
	r.appendEvent("paused", requesterID, reason)
	r.touch()
	return Result{OK: true}
}

// ResumeGame resumes a PAUSED room. Only the pause requester may resume,
// except for system resumes (auto-timeout, reconnection).
func (r *Room) ResumeGame(requesterID string, system bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomPaused {
		return Result{Reason: "game is not paused"}
	}
	if !system && r.pause != nil && r.pause.RequesterID != "" && r.pause.RequesterID != requesterID {
		return Result{Reason: "only the pausing player may resume"}
	}
	r.pause = nil
	r.status = RoomPlaying
	r.appendEvent("resumed", requesterID, "")
	r.stopTimerLocked(&r.pauseTimer)
	r.touch()
	return Result{OK: true}
}

// Pause returns a copy of the active pause record, or nil
func (r *Room) Pause() *PauseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pause == nil {
		return nil
	}
	p := *r.pause
	return &p
}

// Goal cooldown: physics and goal detection stay suspended until it passes

// StartGoalCooldown suspends the room's physics for the configured window.
// The ball reset is owed from this point until ResetBall runs.
func (r *Room) StartGoalCooldown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goalCooldownUntil = time.Now().Add(GoalCooldownDuration)
	r.ballResetPending = true
}

// PendingBallReset reports whether a goal cooldown lapsed without the ball
// being reset. Happens when the reset timer finds the room paused: the ball
// is still past the goal line and must not score the same crossing again.
func (r *Room) PendingBallReset() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ballResetPending && !time.Now().Before(r.goalCooldownUntil)
}

// InGoalCooldown reports whether the post-goal window is still active
func (r *Room) InGoalCooldown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.goalCooldownUntil)
}

// ResetBall returns the ball to the kickoff spot (end of goal cooldown)
func (r *Room) ResetBall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ball != nil {
		r.ball.Reset()
	}
	r.goalCooldownUntil = time.Time{}
	r.ballResetPending = false
	r.touch()
}

// PauseExpired reports whether the active pause has run past its deadline
func (r *Room) PauseExpired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == RoomPaused && r.pause != nil && time.Now().After(r.pause.Deadline)
}

// IsInactive reports whether nothing has touched the room within threshold
func (r *Room) IsInactive(threshold time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastActivity) > threshold
}

// Events returns a copy of the append-only event log
func (r *Room) Events() []RoomEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Timer handles. Each is stored so teardown can cancel it deterministically.

// SetGoalTimer replaces the goal-cooldown timer handle
func (r *Room) SetGoalTimer(t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked(&r.goalTimer)
	r.goalTimer = t
}

// SetPauseTimer replaces the pause auto-resume timer handle
func (r *Room) SetPauseTimer(t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked(&r.pauseTimer)
	r.pauseTimer = t
}

// SetCleanupTimer replaces the delayed-cleanup timer handle
func (r *Room) SetCleanupTimer(t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked(&r.cleanupTimer)
	r.cleanupTimer = t
}

// CancelTimers stops every outstanding timer for the room
func (r *Room) CancelTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimersLocked()
}

func (r *Room) cancelTimersLocked() {
	r.stopTimerLocked(&r.goalTimer)
	r.stopTimerLocked(&r.pauseTimer)
	r.stopTimerLocked(&r.cleanupTimer)
}

func (r *Room) stopTimerLocked(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// Snapshot captures the authoritative state for broadcast
func (r *Room) Snapshot(tick uint64) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Tick:       tick,
		RoomID:     r.ID,
		Status:     int(r.status),
		Elapsed:    r.elapsed,
		ScoreLeft:  r.scoreLeft,
		ScoreRight: r.scoreRight,
	}
	if r.ball != nil {
		snap.Ball = BallSnapshot{
			X: r.ball.X, Y: r.ball.Y,
			VX: r.ball.VX, VY: r.ball.VY,
			Spin: r.ball.Spin,
			Auth: r.ball.LastToucherID,
		}
	}
	for id, p := range r.phys {
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID: id, X: p.X, Y: p.Y, VX: p.VX, VY: p.VY,
			Facing: p.Facing, Seq: p.LastSeq,
		})
	}
	return snap
}

// StepPhysics runs one tick of ball physics and contact resolution under the
// room lock: decay player timers, resolve contacts, integrate the ball.
// Returns which goal line the ball crossed ("" for none) and the current
// ball authority.
func (r *Room) StepPhysics(dt float64) (goalSide, lastToucher string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomPlaying || r.ball == nil {
		return "", ""
	}
	for id, p := range r.phys {
		p.Tick(dt)
		ResolveContact(id, p, r.ball)
	}
	r.ball.Step(dt)
	return r.ball.InGoal(), r.ball.LastToucherID
}

// BallCopy returns a copy of the ball state for validation reads
func (r *Room) BallCopy() (BallState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ball == nil {
		return BallState{}, false
	}
	return *r.ball, true
}

// PhysicsCopy returns a copy of a player's canonical physics state
func (r *Room) PhysicsCopy(playerID string) (PlayerPhysics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.phys[playerID]
	if !ok {
		return PlayerPhysics{}, false
	}
	return *p, true
}

// ApplyMovement stores a validated, lag-compensated movement as canonical.
// Stale sequence numbers are dropped so late packets can't rewind a player.
func (r *Room) ApplyMovement(playerID string, state PlayerPhysics) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.phys[playerID]
	if !ok {
		return Result{Reason: "player not in room"}
	}
	if state.LastSeq != 0 && state.LastSeq <= p.LastSeq {
		return Result{Reason: "stale movement sequence"}
	}
	cd := p.ContactCD // server-owned, never client-claimed
	*p = state
	p.ContactCD = cd
	r.touch()
	return Result{OK: true}
}

// ApplyBallClaim accepts a ball update from the authoritative player only.
// The last toucher holds ball authority; everyone else is rejected.
func (r *Room) ApplyBallClaim(playerID string, claim BallMsg) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RoomPlaying || r.ball == nil {
		return Result{Reason: "game is not in progress"}
	}
	if r.ball.LastToucherID != playerID {
		return Result{Reason: "not ball authority"}
	}
	r.ball.X = claim.X
	r.ball.Y = claim.Y
	r.ball.VX = claim.VX
	r.ball.VY = claim.VY
	r.ball.Spin = claim.Spin
	r.ball.UpdatedAt = time.Now()
	r.touch()
	return Result{OK: true}
}

func (r *Room) hasPlayerLocked(playerID string) bool {
	if r.left != nil && r.left.ID == playerID {
		return true
	}
	if r.right != nil && r.right.ID == playerID {
		return true
	}
	return false
}

func (r *Room) appendEvent(kind, playerID, detail string) {
	r.events = append(r.events, RoomEvent{
		At:       time.Now(),
		Kind:     kind,
		PlayerID: playerID,
		Detail:   detail,
	})
}

func (r *Room) touch() {
	r.lastActivity = time.Now()
}
