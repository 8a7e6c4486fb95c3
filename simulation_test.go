package main

import (
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// newSimHarness wires a simulation over a fresh room table with a started
// two-player room
func newSimHarness(t *testing.T, cfg ModeConfig) (*Simulation, *RoomManager, *mockRegistry, *Room, *Player, *Player) {
	t.Helper()
	rooms := NewRoomManager()
	reg := newMockRegistry()
	end := NewGameEnd(rooms, reg, nil, nil, "")
	sim := NewSimulation(rooms, reg, end, nil)

	room := rooms.CreateRoom(cfg)
	p1 := NewPlayer("p1", "Alice")
	p2 := NewPlayer("p2", "Bob")
	rooms.Seat(room, p1)
	rooms.Seat(room, p2)
	room.SetReady(p1.ID)
	room.SetReady(p2.ID)
	if res := room.StartGame(); !res.OK {
		t.Fatalf("start game: %s", res.Reason)
	}
	return sim, rooms, reg, room, p1, p2
}

func TestHandleReadyStartsGame(t *testing.T) {
	rooms := NewRoomManager()
	reg := newMockRegistry()
	end := NewGameEnd(rooms, reg, nil, nil, "")
	sim := NewSimulation(rooms, reg, end, nil)

	room := rooms.CreateRoom(ConfigForMode(ModeCasual))
	p1 := NewPlayer("p1", "Alice")
	p2 := NewPlayer("p2", "Bob")
	rooms.Seat(room, p1)
	rooms.Seat(room, p2)

	if res := sim.HandleReady(p1.ID); !res.OK {
		t.Fatalf("ready p1: %s", res.Reason)
	}
	if room.Status() == RoomPlaying {
		t.Fatal("game started with one ready player")
	}
	if res := sim.HandleReady(p2.ID); !res.OK {
		t.Fatalf("ready p2: %s", res.Reason)
	}
	if room.Status() != RoomPlaying {
		t.Fatalf("status = %s, want playing", room.Status())
	}
	if got := reg.broadcasts(MsgGameStarted); len(got) != 1 {
		t.Errorf("game_started broadcasts = %d, want 1", len(got))
	}
}

func TestStepAdvancesClock(t *testing.T) {
	sim, _, _, room, _, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	for i := 0; i < 10; i++ {
		sim.Step()
	}
	want := 10.0 / TickRate
	if got := room.Elapsed(); got < want*0.99 || got > want*1.01 {
		t.Errorf("elapsed = %f, want ~%f", got, want)
	}
}

func TestStepSkipsPausedRooms(t *testing.T) {
	sim, _, _, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))
	room.PauseGame(p1.ID, "afk")

	sim.Step()
	if room.Elapsed() != 0 {
		t.Error("paused room's clock advanced")
	}
}

func TestStepBroadcastsSnapshots(t *testing.T) {
	sim, _, reg, room, _, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	for i := 0; i < BroadcastEvery*3; i++ {
		sim.Step()
	}

	reg.mu.Lock()
	frames := len(reg.binary)
	var data []byte
	if frames > 0 {
		data = reg.binary[0]
	}
	reg.mu.Unlock()

	if frames == 0 {
		t.Fatal("no snapshot broadcasts")
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot decode: %v", err)
	}
	if snap.RoomID != room.ID {
		t.Errorf("snapshot room = %q, want %q", snap.RoomID, room.ID)
	}
	if len(snap.Players) != 2 {
		t.Errorf("snapshot players = %d, want 2", len(snap.Players))
	}
}

func TestMovementAppliedAndRelayed(t *testing.T) {
	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))
	prev, _ := room.PhysicsCopy(p1.ID)

	sim.HandleMovement(p1.ID, MoveMsg{X: prev.X + 20, Y: prev.Y, VX: 100, Seq: 1})

	got, _ := room.PhysicsCopy(p1.ID)
	if got.X != prev.X+20 {
		t.Errorf("movement not applied: X=%f", got.X)
	}
	if relayed := reg.broadcasts(MsgPlayerMoved); len(relayed) != 1 {
		t.Errorf("player_moved relays = %d, want 1", len(relayed))
	}
}

func TestMovementSpeedRejectedWithCorrection(t *testing.T) {
	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))
	prev, _ := room.PhysicsCopy(p1.ID)

	sim.HandleMovement(p1.ID, MoveMsg{X: prev.X, Y: prev.Y, VX: 5000, Seq: 1})

	got, _ := room.PhysicsCopy(p1.ID)
	if got.VX != prev.VX {
		t.Error("rejected movement mutated canonical state")
	}
	msgs := reg.sentTo(p1.ID)
	if len(msgs) != 1 || msgs[0].T != MsgMoveRejected {
		t.Fatalf("expected one move_rejected, got %v", msgs)
	}
	rej := msgs[0].Data.(MoveRejectedMsg)
	if rej.X != prev.X || rej.Y != prev.Y {
		t.Error("rejection should carry the server-corrected position")
	}
}

func TestMovementLagCompensationClamped(t *testing.T) {
	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))
	prev, _ := room.PhysicsCopy(p1.ID)

	// A full second of measured latency must be clamped to the cap
	reg.mu.Lock()
	reg.latency[p1.ID] = time.Second
	reg.mu.Unlock()

	claim := MoveMsg{X: prev.X, Y: prev.Y, VX: 100, Seq: 1}
	sim.HandleMovement(p1.ID, claim)

	got, _ := room.PhysicsCopy(p1.ID)
	want := prev.X + 100*MaxLagCompensation.Seconds()
	if got.X < want-0.5 || got.X > want+0.5 {
		t.Errorf("lag-compensated X = %f, want ~%f", got.X, want)
	}
}

func TestBallUpdateRequiresAuthority(t *testing.T) {
	sim, _, _, _, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	res := sim.HandleBallUpdate(p1.ID, BallMsg{X: BallCenterX, Y: BallCenterY, VX: 100})
	if res.OK {
		t.Fatal("ball update accepted from a player without authority")
	}
}

func TestBallUpdateFromAuthority(t *testing.T) {
	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	room.mu.Lock()
	room.ball.LastToucherID = p1.ID
	room.mu.Unlock()

	res := sim.HandleBallUpdate(p1.ID, BallMsg{X: 420, Y: 180, VX: 300, VY: -100})
	if !res.OK {
		t.Fatalf("authority ball update rejected: %s", res.Reason)
	}
	ball, _ := room.BallCopy()
	if ball.X != 420 || ball.VX != 300 {
		t.Errorf("ball claim not applied: %+v", ball)
	}
	if relayed := reg.broadcasts(MsgBallUpdated); len(relayed) != 1 {
		t.Errorf("ball_updated relays = %d, want 1", len(relayed))
	}
}

func TestGoalAttemptScores(t *testing.T) {
	sim, _, reg, room, _, p2 := newSimHarness(t, ConfigForMode(ModeCasual))

	// Put the authoritative ball inside the left goal
	room.mu.Lock()
	room.ball.X = -BallRadius - 10
	room.ball.Y = ArenaHeight - 40
	room.mu.Unlock()

	res := sim.HandleGoalAttempt(p2.ID, GoalAttemptMsg{X: -BallRadius - 10, Y: ArenaHeight - 40})
	if !res.OK {
		t.Fatalf("valid goal rejected: %s", res.Reason)
	}

	sl, sr := room.Score()
	if sl != 0 || sr != 1 {
		t.Errorf("score %d-%d, want 0-1 (left goal credits the right player)", sl, sr)
	}
	if got := reg.broadcasts(MsgGoalScored); len(got) != 1 {
		t.Errorf("goal_scored broadcasts = %d, want 1", len(got))
	}
	if !room.InGoalCooldown() {
		t.Error("goal should start the cooldown")
	}
}

func TestGoalAttemptFarClaimRejected(t *testing.T) {
	sim, _, _, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	room.mu.Lock()
	room.ball.X = -BallRadius - 10
	room.ball.Y = ArenaHeight - 40
	room.mu.Unlock()

	res := sim.HandleGoalAttempt(p1.ID, GoalAttemptMsg{X: ArenaWidth / 2, Y: 100})
	if res.OK {
		t.Error("goal claim far from the authoritative ball accepted")
	}
	if sl, sr := room.Score(); sl != 0 || sr != 0 {
		t.Errorf("rejected goal changed the score: %d-%d", sl, sr)
	}
}

func TestGoalAttemptDuringCooldownRejected(t *testing.T) {
	sim, _, _, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))
	room.StartGoalCooldown()

	res := sim.HandleGoalAttempt(p1.ID, GoalAttemptMsg{X: -20, Y: ArenaHeight - 40})
	if res.OK {
		t.Error("goal accepted during cooldown")
	}
}

func TestServerGoalOwnGoal(t *testing.T) {
	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	// Left player last touched; ball in the left goal -> own goal,
	// right player scores
	sim.serverGoal(room, "left", p1.ID)

	sl, sr := room.Score()
	if sl != 0 || sr != 1 {
		t.Errorf("score %d-%d, want 0-1", sl, sr)
	}
	goals := reg.broadcasts(MsgGoalScored)
	if len(goals) != 1 {
		t.Fatalf("goal_scored broadcasts = %d, want 1", len(goals))
	}
	if goals[0].Data.(GoalScoredMsg).GoalType != "own_goal" {
		t.Errorf("goal type = %q, want own_goal", goals[0].Data.(GoalScoredMsg).GoalType)
	}
}

func TestScoreLimitEndsViaGameEnd(t *testing.T) {
	sim, rooms, reg, room, p1, _ := newSimHarness(t, ModeConfig{Mode: ModeCasual, ScoreLimit: 1})
	_ = rooms

	sim.scoreGoal(room, p1.ID, "normal")

	if room.Status() != RoomFinished {
		t.Fatalf("status = %s, want finished", room.Status())
	}
	ended := reg.broadcasts(MsgGameEnded)
	if len(ended) != 1 {
		t.Fatalf("game_ended broadcasts = %d, want 1", len(ended))
	}
	msg := ended[0].Data.(GameEndedMsg)
	if msg.WinnerID != p1.ID || msg.Reason != EndScoreLimit {
		t.Errorf("outcome = %+v", msg)
	}
}

func TestTimeLimitDrawEndsViaGameEnd(t *testing.T) {
	sim, _, reg, room, _, _ := newSimHarness(t, ModeConfig{Mode: ModeCasual, TimeLimit: 0.01})

	sim.Step() // one tick pushes the clock past the tiny limit

	if room.Status() != RoomFinished {
		t.Fatalf("status = %s, want finished", room.Status())
	}
	ended := reg.broadcasts(MsgGameEnded)
	if len(ended) != 1 {
		t.Fatalf("game_ended broadcasts = %d, want 1", len(ended))
	}
	msg := ended[0].Data.(GameEndedMsg)
	if !msg.Draw || msg.WinnerID != "" || msg.Reason != EndDraw {
		t.Errorf("scoreless time-limit game should draw, got %+v", msg)
	}
}

func TestPauseBroadcastAndAutoResume(t *testing.T) {
	prev := PauseTimeout
	PauseTimeout = 40 * time.Millisecond
	defer func() { PauseTimeout = prev }()

	sim, _, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	if res := sim.HandlePause(p1.ID, "technical"); !res.OK {
		t.Fatalf("pause: %s", res.Reason)
	}
	if room.Status() != RoomPaused {
		t.Fatal("room should be paused")
	}
	if got := reg.broadcasts(MsgGamePaused); len(got) != 1 {
		t.Errorf("game_paused broadcasts = %d, want 1", len(got))
	}

	// Pause must not outlive the maximum duration
	deadline := time.Now().Add(time.Second)
	for room.Status() != RoomPlaying && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if room.Status() != RoomPlaying {
		t.Fatal("pause outlived its timeout")
	}
	resumed := reg.broadcasts(MsgGameResumed)
	if len(resumed) != 1 || resumed[0].Data.(GameResumedMsg).Reason != "timeout" {
		t.Errorf("auto-resume broadcast wrong: %v", resumed)
	}
}

func TestGoalCooldownLapsesWhilePaused(t *testing.T) {
	prev := GoalCooldownDuration
	GoalCooldownDuration = 30 * time.Millisecond
	defer func() { GoalCooldownDuration = prev }()

	sim, _, _, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	room.mu.Lock()
	room.ball.X = -BallRadius - 10
	room.ball.Y = ArenaHeight - 40
	room.mu.Unlock()

	sim.Step() // crossing detected, right player scores
	if sl, sr := room.Score(); sl != 0 || sr != 1 {
		t.Fatalf("score %d-%d, want 0-1", sl, sr)
	}

	// Pause before the cooldown expires; the reset timer finds the room
	// paused and skips the ball reset
	if res := sim.HandlePause(p1.ID, "technical"); !res.OK {
		t.Fatalf("pause: %s", res.Reason)
	}
	time.Sleep(3 * GoalCooldownDuration)
	if res := sim.HandleResume(p1.ID); !res.OK {
		t.Fatalf("resume: %s", res.Reason)
	}

	sim.Step()
	if sl, sr := room.Score(); sl != 0 || sr != 1 {
		t.Errorf("lapsed crossing scored again: %d-%d, want 0-1", sl, sr)
	}
	ball, _ := room.BallCopy()
	if ball.X != BallCenterX || ball.Y != BallCenterY {
		t.Errorf("ball not reset for kickoff: (%f, %f)", ball.X, ball.Y)
	}
}

func TestVacatedSlotPauseAutoResumes(t *testing.T) {
	prev := PauseTimeout
	PauseTimeout = 30 * time.Millisecond
	defer func() { PauseTimeout = prev }()

	sim, rooms, reg, room, p1, _ := newSimHarness(t, ConfigForMode(ModeCasual))

	// A player leaving mid-game pauses the room without going through
	// HandlePause, so no resume timer exists; the tick loop owns the deadline
	rooms.Unseat(p1.ID)
	if room.Status() != RoomPaused {
		t.Fatal("vacated slot should pause the room")
	}

	time.Sleep(2 * PauseTimeout)
	sim.Step()

	if room.Status() != RoomPlaying {
		t.Fatalf("status = %s, want playing after the pause deadline", room.Status())
	}
	resumed := reg.broadcasts(MsgGameResumed)
	if len(resumed) != 1 || resumed[0].Data.(GameResumedMsg).Reason != "timeout" {
		t.Errorf("auto-resume broadcast wrong: %v", resumed)
	}
}

func TestResumeByRequester(t *testing.T) {
	sim, _, reg, room, p1, p2 := newSimHarness(t, ConfigForMode(ModeCasual))
	sim.HandlePause(p1.ID, "break")

	if res := sim.HandleResume(p2.ID); res.OK {
		t.Error("opponent resumed someone else's pause")
	}
	if res := sim.HandleResume(p1.ID); !res.OK {
		t.Fatalf("requester resume: %s", res.Reason)
	}
	if room.Status() != RoomPlaying {
		t.Error("room should be playing after resume")
	}
	if got := reg.broadcasts(MsgGameResumed); len(got) != 1 {
		t.Errorf("game_resumed broadcasts = %d, want 1", len(got))
	}
}
