package main

import "math"

// Validation verdicts are pure data: valid or not, a reason, and the
// server state the client should reconcile to when invalid.

// MovementVerdict is the result of validating a claimed movement
type MovementVerdict struct {
	Valid     bool
	Reason    string
	Corrected *PlayerPhysics // authoritative state to snap to; nil when valid
}

// BallVerdict is the result of validating a claimed ball state
type BallVerdict struct {
	Valid     bool
	Reason    string
	Corrected *BallState
}

// ValidateMovement checks a claimed movement against speed, teleport, and
// arena bounds. prev is the last accepted state for the same player.
func ValidateMovement(cfg ValidatorConfig, prev *PlayerPhysics, claim MoveMsg) MovementVerdict {
	speed := math.Sqrt(claim.VX*claim.VX + claim.VY*claim.VY)
	if speed > cfg.MaxPlayerSpeed {
		return MovementVerdict{Reason: "speed exceeds limit", Corrected: copyPhysics(prev)}
	}
	if prev != nil {
		if Distance(prev.X, prev.Y, claim.X, claim.Y) > cfg.MaxTeleport {
			return MovementVerdict{Reason: "position jump exceeds limit", Corrected: copyPhysics(prev)}
		}
	}
	if claim.X < 0 || claim.X > ArenaWidth || claim.Y < 0 || claim.Y > ArenaHeight {
		return MovementVerdict{Reason: "position out of bounds", Corrected: copyPhysics(prev)}
	}
	return MovementVerdict{Valid: true}
}

// ValidateBallPhysics checks a claimed ball state from the authoritative
// player. Out-of-range claims come back with a clamped correction.
func ValidateBallPhysics(cfg ValidatorConfig, current *BallState, claim BallMsg) BallVerdict {
	speed := math.Sqrt(claim.VX*claim.VX + claim.VY*claim.VY)
	if speed > cfg.MaxBallSpeed {
		corrected := *current
		return BallVerdict{Reason: "ball speed exceeds limit", Corrected: &corrected}
	}
	if claim.Y < -BallRadius || claim.Y > ArenaHeight+BallRadius {
		corrected := *current
		return BallVerdict{Reason: "ball out of bounds", Corrected: &corrected}
	}
	// X may run past the walls inside the goal mouths
	if (claim.X < -ArenaWidth*0.1 || claim.X > ArenaWidth*1.1) && claim.Y <= GoalMouthTop {
		corrected := *current
		return BallVerdict{Reason: "ball out of bounds", Corrected: &corrected}
	}
	return BallVerdict{Valid: true}
}

// ValidateGoal checks a client goal claim against the authoritative ball.
// The claimed contact geometry must agree with where the server thinks the
// ball actually is.
func ValidateGoal(cfg ValidatorConfig, ball *BallState, claim GoalAttemptMsg) (bool, string) {
	if ball == nil {
		return false, "no active ball"
	}
	if Distance(ball.X, ball.Y, claim.X, claim.Y) > cfg.GoalClaimSlack {
		return false, "claimed ball position does not match authoritative state"
	}
	if ball.InGoal() == "" {
		return false, "ball is not in a goal area"
	}
	return true, ""
}

func copyPhysics(p *PlayerPhysics) *PlayerPhysics {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
