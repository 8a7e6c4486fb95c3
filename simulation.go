package main

import (
	"log"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Simulation owns the fixed-rate physics tick for every PLAYING room.
// One scheduler iterates all rooms; per-room state is only mutated through
// the room's own lock, so mutations within a room never interleave.
type Simulation struct {
	rooms    *RoomManager
	registry Registry
	end      *GameEnd
	journal  *EventJournal
	vcfg     ValidatorConfig

	tick uint64
	stop chan struct{}
}

// NewSimulation creates the simulation over the shared room table
func NewSimulation(rooms *RoomManager, registry Registry, end *GameEnd, journal *EventJournal) *Simulation {
	return &Simulation{
		rooms:    rooms,
		registry: registry,
		end:      end,
		journal:  journal,
		vcfg:     DefaultValidatorConfig(),
		stop:     make(chan struct{}),
	}
}

// Run drives the tick loop until Stop
func (s *Simulation) Run() {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Step()
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the tick loop
func (s *Simulation) Stop() {
	close(s.stop)
}

// Step advances every active room by one tick
func (s *Simulation) Step() {
	s.tick++
	dt := 1.0 / float64(TickRate)

	for _, room := range s.rooms.ActiveRooms() {
		if room.Status() != RoomPlaying {
			// Paused rooms sit still, but their pause deadline is still
			// enforced here so every pause source auto-resumes
			if room.PauseExpired() {
				s.autoResume(room.ID)
			}
			continue
		}
		if room.InGoalCooldown() {
			continue // physics and goal checks stay suspended
		}
		if room.PendingBallReset() {
			// The cooldown timer found the room paused and skipped the
			// reset; do it now so the old crossing cannot score again
			room.ResetBall()
			s.broadcastSnapshot(room)
			continue
		}

		goalSide, toucher := room.StepPhysics(dt)
		if goalSide != "" {
			s.serverGoal(room, goalSide, toucher)
			continue
		}

		if room.AdvanceClock(dt) {
			s.handleWin(room)
			continue
		}

		if s.tick%BroadcastEvery == 0 {
			s.broadcastSnapshot(room)
		}
	}
}

// serverGoal credits a goal the tick loop detected itself. The ball
// crossing the left line scores for the right player and vice versa; a
// last touch by the conceding player makes it an own goal.
func (s *Simulation) serverGoal(room *Room, goalSide, toucher string) {
	players := room.Players()
	if len(players) < 2 {
		return
	}
	scorer := players[1] // ball in left goal -> right player scores
	if goalSide == "right" {
		scorer = players[0]
	}
	goalType := "normal"
	if toucher != "" && toucher != scorer.ID {
		goalType = "own_goal"
	}
	s.scoreGoal(room, scorer.ID, goalType)
}

// HandleGoalAttempt validates a client-reported goal claim against the
// authoritative ball before crediting it
func (s *Simulation) HandleGoalAttempt(playerID string, msg GoalAttemptMsg) Result {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil {
		return Result{Reason: "not in an active game"}
	}
	if room.Status() != RoomPlaying {
		return Result{Reason: "game is not in progress"}
	}
	if room.InGoalCooldown() {
		return Result{Reason: "goal cooldown active"}
	}

	ball, ok := room.BallCopy()
	if !ok {
		return Result{Reason: "no active ball"}
	}
	valid, reason := ValidateGoal(s.vcfg, &ball, msg)
	if !valid {
		return Result{Reason: reason}
	}

	goalType := msg.GoalType
	if goalType == "" {
		goalType = "normal"
	}
	// The goal side decides who scores, not the reporter
	side := ball.InGoal()
	players := room.Players()
	if len(players) < 2 {
		return Result{Reason: "room not full"}
	}
	scorer := players[1]
	if side == "right" {
		scorer = players[0]
	}
	s.scoreGoal(room, scorer.ID, goalType)
	return Result{OK: true}
}

// scoreGoal applies the goal, broadcasts it, and either hands a finished
// game to the end coordinator or starts the goal cooldown
func (s *Simulation) scoreGoal(room *Room, scorerID, goalType string) {
	res := room.AddGoal(scorerID, goalType)
	if !res.OK {
		return // duplicate or late goal on a decided room; drop it
	}

	s.registry.BroadcastToRoom(room.ID, Envelope{T: MsgGoalScored, Data: GoalScoredMsg{
		ScorerID:   scorerID,
		GoalType:   goalType,
		ScoreLeft:  res.ScoreLeft,
		ScoreRight: res.ScoreRight,
	}})
	s.journal.Track(EvtGoal, scorerID, room.ID, goalType)

	if res.GameEnded {
		s.handleWin(room)
		return
	}

	room.StartGoalCooldown()
	roomID := room.ID
	room.SetGoalTimer(time.AfterFunc(GoalCooldownDuration, func() {
		r := s.rooms.Get(roomID)
		if r == nil || r.Status() != RoomPlaying {
			return
		}
		r.ResetBall()
		s.broadcastSnapshot(r)
	}))
}

// handleWin hands a room whose win condition tripped to the end coordinator
func (s *Simulation) handleWin(room *Room) {
	_, _, reason, _ := room.Outcome()
	if reason == "" {
		reason = EndTimeLimit
	}
	s.end.HandleGameEnd(room.ID, reason)
}

// HandleReady marks a player ready and starts the game once both are
func (s *Simulation) HandleReady(playerID string) Result {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil {
		return Result{Reason: "not in a room"}
	}
	res := room.SetReady(playerID)
	if !res.OK {
		return res
	}
	if check := room.CheckReadyToStart(); check.Ready {
		if start := room.StartGame(); start.OK {
			s.registry.BroadcastToRoom(room.ID, Envelope{T: MsgGameStarted, Data: GameStartedMsg{RoomID: room.ID}})
			s.journal.Track(EvtGameStart, "", room.ID, "")
			log.Printf("room %s: game started", room.ID)
		}
	}
	return Result{OK: true}
}

// HandleMovement validates a claimed movement, applies lag compensation,
// stores it as canonical, and relays it to the opponent. Invalid movement
// is rejected with the server-corrected state the client should snap to.
func (s *Simulation) HandleMovement(playerID string, msg MoveMsg) {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil || room.Status() != RoomPlaying {
		return
	}

	prev, ok := room.PhysicsCopy(playerID)
	if !ok {
		return
	}
	verdict := ValidateMovement(s.vcfg, &prev, msg)
	if !verdict.Valid {
		corrected := verdict.Corrected
		if corrected == nil {
			corrected = &prev
		}
		s.registry.SendTo(playerID, Envelope{T: MsgMoveRejected, Data: MoveRejectedMsg{
			Reason: verdict.Reason,
			Seq:    msg.Seq,
			X:      corrected.X,
			Y:      corrected.Y,
			VX:     corrected.VX,
			VY:     corrected.VY,
		}})
		return
	}

	// Lag compensation: extrapolate the claimed position forward by the
	// sender's measured round-trip latency, clamped
	lat := s.registry.Latency(playerID)
	if lat > MaxLagCompensation {
		lat = MaxLagCompensation
	}
	lag := lat.Seconds()
	state := PlayerPhysics{
		X:        Clamp(msg.X+msg.VX*lag, 0, ArenaWidth),
		Y:        Clamp(msg.Y+msg.VY*lag, 0, ArenaHeight),
		VX:       msg.VX,
		VY:       msg.VY,
		Facing:   msg.Facing,
		OnGround: msg.OnGround,
		Kicking:  msg.Kicking,
		LastSeq:  msg.Seq,
	}
	if !room.ApplyMovement(playerID, state).OK {
		return
	}

	s.registry.BroadcastToRoomExcept(room.ID, playerID, Envelope{T: MsgPlayerMoved, Data: PlayerMovedMsg{
		PlayerID: playerID,
		X:        state.X,
		Y:        state.Y,
		VX:       state.VX,
		VY:       state.VY,
		Facing:   state.Facing,
		Seq:      msg.Seq,
	}})
}

// HandleBallUpdate accepts a ball claim from the current ball authority
func (s *Simulation) HandleBallUpdate(playerID string, msg BallMsg) Result {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil || room.Status() != RoomPlaying {
		return Result{Reason: "game is not in progress"}
	}

	current, ok := room.BallCopy()
	if !ok {
		return Result{Reason: "no active ball"}
	}
	verdict := ValidateBallPhysics(s.vcfg, &current, msg)
	if !verdict.Valid {
		return Result{Reason: verdict.Reason}
	}

	if res := room.ApplyBallClaim(playerID, msg); !res.OK {
		return res
	}

	s.registry.BroadcastToRoomExcept(room.ID, playerID, Envelope{T: MsgBallUpdated, Data: BallUpdatedMsg{
		X: msg.X, Y: msg.Y, VX: msg.VX, VY: msg.VY, Spin: msg.Spin,
		Authoritative: playerID,
	}})
	return Result{OK: true}
}

// HandlePause pauses the requester's room and arms the auto-resume timer
func (s *Simulation) HandlePause(playerID, reason string) Result {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil {
		return Result{Reason: "not in an active game"}
	}
	res := room.PauseGame(playerID, reason)
	if !res.OK {
		return res
	}

	s.registry.BroadcastToRoom(room.ID, Envelope{T: MsgGamePaused, Data: GamePausedMsg{
		Reason:      reason,
		RequesterID: playerID,
		MaxDuration: PauseTimeout.Seconds(),
	}})
	s.journal.Track(EvtPause, playerID, room.ID, reason)

	roomID := room.ID
	room.SetPauseTimer(time.AfterFunc(PauseTimeout, func() {
		s.autoResume(roomID)
	}))
	return Result{OK: true}
}

// HandleResume resumes a paused room on the requester's behalf
func (s *Simulation) HandleResume(playerID string) Result {
	room := s.rooms.RoomForPlayer(playerID)
	if room == nil {
		return Result{Reason: "not in an active game"}
	}
	res := room.ResumeGame(playerID, false)
	if !res.OK {
		return res
	}
	s.registry.BroadcastToRoom(room.ID, Envelope{T: MsgGameResumed, Data: GameResumedMsg{Reason: "requested"}})
	s.journal.Track(EvtResume, playerID, room.ID, "requested")
	return Result{OK: true}
}

// autoResume fires when a pause outlives its maximum duration
func (s *Simulation) autoResume(roomID string) {
	room := s.rooms.Get(roomID)
	if room == nil {
		return
	}
	if !room.ResumeGame("", true).OK {
		return
	}
	s.registry.BroadcastToRoom(roomID, Envelope{T: MsgGameResumed, Data: GameResumedMsg{Reason: "timeout"}})
	s.journal.Track(EvtResume, "", roomID, "timeout")
}

// broadcastSnapshot sends the authoritative state as a binary msgpack frame
func (s *Simulation) broadcastSnapshot(room *Room) {
	snap := room.Snapshot(s.tick)
	data, err := msgpack.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal: %v", err)
		return
	}
	s.registry.BroadcastBinaryToRoom(room.ID, data)
}
