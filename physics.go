package main

import (
	"math"
	"time"
)

// BallState is the authoritative ball. Exactly one exists per active room.
// LastToucherID doubles as the ball-authority token: only the player who
// last made contact may submit ball-physics updates.
type BallState struct {
	X, Y          float64
	VX, VY        float64
	Spin          float64
	LastToucherID string
	UpdatedAt     time.Time
}

// NewBallState returns a ball at the kickoff spot with no authority assigned
func NewBallState() *BallState {
	return &BallState{X: BallCenterX, Y: BallCenterY, UpdatedAt: time.Now()}
}

// Reset returns the ball to the kickoff spot and clears authority
func (b *BallState) Reset() {
	b.X = BallCenterX
	b.Y = BallCenterY
	b.VX = 0
	b.VY = 0
	b.Spin = 0
	b.LastToucherID = ""
	b.UpdatedAt = time.Now()
}

// Step integrates the ball one tick: gravity, damping, and wall/ground/ceiling
// bounces. The goal mouths are left open so the ball can cross the line.
func (b *BallState) Step(dt float64) {
	b.VY += Gravity * dt
	b.VX *= BallDamping
	b.VY *= BallDamping
	b.Spin *= SpinDecay

	// Magnus-style drift from spin
	b.VX += b.Spin * dt

	b.X += b.VX * dt
	b.Y += b.VY * dt

	inMouth := b.Y > GoalMouthTop

	// Side walls bounce only above the goal mouths
	if !inMouth {
		if b.X < BallRadius {
			b.X = BallRadius
			b.VX = -b.VX * Restitution
		} else if b.X > ArenaWidth-BallRadius {
			b.X = ArenaWidth - BallRadius
			b.VX = -b.VX * Restitution
		}
	}

	// Ground
	if b.Y > ArenaHeight-BallRadius {
		b.Y = ArenaHeight - BallRadius
		b.VY = -b.VY * Restitution
		b.VX *= GroundFriction
		if math.Abs(b.VY) < 20 {
			b.VY = 0
		}
	}

	// Ceiling
	if b.Y < BallRadius {
		b.Y = BallRadius
		b.VY = -b.VY * Restitution
	}
}

// InGoal reports which goal the ball has fully crossed into:
// "left", "right", or "" for neither.
func (b *BallState) InGoal() string {
	if b.Y <= GoalMouthTop {
		return ""
	}
	if b.X < -BallRadius {
		return "left"
	}
	if b.X > ArenaWidth+BallRadius {
		return "right"
	}
	return ""
}

// PlayerPhysics is the server's canonical view of one player's character.
// Positions are client-claimed, validated, then lag-compensated before
// being stored here.
type PlayerPhysics struct {
	X, Y      float64
	VX, VY    float64
	Facing    int // -1 left, 1 right
	OnGround  bool
	Kicking   bool
	LastSeq   uint32
	ContactCD float64 // seconds until this player may touch the ball again
}

// NewPlayerPhysics spawns a character on its own half
func NewPlayerPhysics(side string) *PlayerPhysics {
	x := ArenaWidth * 0.25
	facing := 1
	if side == "right" {
		x = ArenaWidth * 0.75
		facing = -1
	}
	return &PlayerPhysics{
		X:        x,
		Y:        ArenaHeight - CharRadius,
		Facing:   facing,
		OnGround: true,
	}
}

// Tick decays per-player timers
func (p *PlayerPhysics) Tick(dt float64) {
	if p.ContactCD > 0 {
		p.ContactCD -= dt
	}
}

// ResolveContact applies ball-player contact rules and returns true if
// contact happened. An active kick applies a strong directional impulse,
// plain momentum transfers a fraction of player velocity, and a standing
// touch gives a small passive push. Every contact starts the per-player
// cooldown and transfers ball authority to the toucher.
func ResolveContact(playerID string, p *PlayerPhysics, b *BallState) bool {
	if p.ContactCD > 0 {
		return false
	}
	if !ballTouchesPlayer(b, p) {
		return false
	}

	// Exit direction: away from the player's center
	dx := b.X - p.X
	dy := b.Y - p.Y
	dist := math.Sqrt(dx*dx + dy*dy)
	if dist < 1e-6 {
		dx, dy, dist = float64(p.Facing), 0, 1
	}
	nx := dx / dist
	ny := dy / dist

	speed := math.Sqrt(p.VX*p.VX + p.VY*p.VY)

	switch {
	case p.Kicking:
		// Kick: strong impulse away from the player, biased toward the
		// ball's exit side and lifted slightly
		mag := KickImpulseMin + randFloat()*(KickImpulseMax-KickImpulseMin)
		b.VX = nx * mag
		b.VY = ny*mag - KickLift*mag
		b.Spin = p.VX * 0.5
	case speed > 40:
		// Running into the ball without kicking: momentum transfer
		b.VX += p.VX * MomentumTransfer
		b.VY += p.VY * MomentumTransfer
		// Push the ball out of the overlap
		b.X = p.X + nx*(CharRadius+BallRadius)
		b.Y = p.Y + ny*(CharRadius+BallRadius)
	default:
		// Standing touch: small passive push
		b.VX += nx * PassivePush
		b.VY += ny * PassivePush
	}

	b.LastToucherID = playerID
	b.UpdatedAt = time.Now()
	p.ContactCD = ContactCooldown
	return true
}
