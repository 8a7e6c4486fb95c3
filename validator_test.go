package main

import "testing"

func TestValidateMovementAccepts(t *testing.T) {
	cfg := DefaultValidatorConfig()
	prev := NewPlayerPhysics("left")
	claim := MoveMsg{X: prev.X + 10, Y: prev.Y - 5, VX: 120, VY: -80, Seq: 1}

	v := ValidateMovement(cfg, prev, claim)
	if !v.Valid {
		t.Errorf("legal movement rejected: %s", v.Reason)
	}
}

func TestValidateMovementSpeedLimit(t *testing.T) {
	cfg := DefaultValidatorConfig()
	prev := NewPlayerPhysics("left")
	claim := MoveMsg{X: prev.X, Y: prev.Y, VX: cfg.MaxPlayerSpeed * 2}

	v := ValidateMovement(cfg, prev, claim)
	if v.Valid {
		t.Fatal("overspeed movement accepted")
	}
	if v.Corrected == nil {
		t.Fatal("rejection should carry the corrected state")
	}
	if v.Corrected.X != prev.X || v.Corrected.Y != prev.Y {
		t.Error("corrected state should be the last accepted position")
	}
}

func TestValidateMovementTeleport(t *testing.T) {
	cfg := DefaultValidatorConfig()
	prev := NewPlayerPhysics("left")
	claim := MoveMsg{X: prev.X + cfg.MaxTeleport*2, Y: prev.Y, VX: 100}

	if v := ValidateMovement(cfg, prev, claim); v.Valid {
		t.Error("teleport-sized jump accepted")
	}
}

func TestValidateMovementOutOfBounds(t *testing.T) {
	cfg := DefaultValidatorConfig()
	prev := &PlayerPhysics{X: 50, Y: 50}
	claim := MoveMsg{X: -40, Y: 50}

	if v := ValidateMovement(cfg, prev, claim); v.Valid {
		t.Error("out-of-bounds position accepted")
	}
}

func TestValidateBallAccepts(t *testing.T) {
	cfg := DefaultValidatorConfig()
	current := NewBallState()
	claim := BallMsg{X: current.X + 20, Y: current.Y, VX: 400, VY: -200}

	if v := ValidateBallPhysics(cfg, current, claim); !v.Valid {
		t.Errorf("legal ball claim rejected: %s", v.Reason)
	}
}

func TestValidateBallSpeedLimit(t *testing.T) {
	cfg := DefaultValidatorConfig()
	current := NewBallState()
	claim := BallMsg{X: current.X, Y: current.Y, VX: cfg.MaxBallSpeed * 2}

	v := ValidateBallPhysics(cfg, current, claim)
	if v.Valid {
		t.Fatal("overspeed ball claim accepted")
	}
	if v.Corrected == nil {
		t.Error("rejection should carry the authoritative ball")
	}
}

func TestValidateBallAllowsGoalMouthOverrun(t *testing.T) {
	cfg := DefaultValidatorConfig()
	current := NewBallState()
	// Past the left line but inside the goal mouth: legal
	claim := BallMsg{X: -30, Y: ArenaHeight - 40, VX: -300}
	if v := ValidateBallPhysics(cfg, current, claim); !v.Valid {
		t.Errorf("in-mouth overrun rejected: %s", v.Reason)
	}
	// Far past the line above the mouth: not legal
	claim = BallMsg{X: -ArenaWidth * 0.2, Y: 100, VX: -300}
	if v := ValidateBallPhysics(cfg, current, claim); v.Valid {
		t.Error("above-mouth overrun accepted")
	}
}

func TestValidateGoalAccepts(t *testing.T) {
	cfg := DefaultValidatorConfig()
	ball := &BallState{X: -BallRadius - 10, Y: ArenaHeight - 40}
	claim := GoalAttemptMsg{X: ball.X + 5, Y: ball.Y}

	ok, reason := ValidateGoal(cfg, ball, claim)
	if !ok {
		t.Errorf("valid goal claim rejected: %s", reason)
	}
}

func TestValidateGoalClaimTooFar(t *testing.T) {
	cfg := DefaultValidatorConfig()
	ball := &BallState{X: -BallRadius - 10, Y: ArenaHeight - 40}
	claim := GoalAttemptMsg{X: ball.X + cfg.GoalClaimSlack*2, Y: ball.Y}

	if ok, _ := ValidateGoal(cfg, ball, claim); ok {
		t.Error("goal claim far from the authoritative ball accepted")
	}
}

func TestValidateGoalBallNotInGoal(t *testing.T) {
	cfg := DefaultValidatorConfig()
	ball := NewBallState() // center field
	claim := GoalAttemptMsg{X: ball.X, Y: ball.Y}

	if ok, _ := ValidateGoal(cfg, ball, claim); ok {
		t.Error("goal accepted while the ball is in open play")
	}
}

func TestValidateGoalNilBall(t *testing.T) {
	cfg := DefaultValidatorConfig()
	if ok, _ := ValidateGoal(cfg, nil, GoalAttemptMsg{}); ok {
		t.Error("goal accepted with no active ball")
	}
}
