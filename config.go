package main

import "time"

// GameMode defines the type of match
type GameMode int

const (
	ModeCasual GameMode = 0
	ModeRanked GameMode = 1
)

func (m GameMode) String() string {
	switch m {
	case ModeRanked:
		return "ranked"
	default:
		return "casual"
	}
}

// ModeConfig holds the win-condition settings for a match
type ModeConfig struct {
	Mode       GameMode
	TimeLimit  float64 // seconds; 0 = no limit
	ScoreLimit int     // goals; 0 = no limit
}

// ConfigForMode returns the configured limits for the given mode
func ConfigForMode(mode GameMode) ModeConfig {
	switch mode {
	case ModeRanked:
		return ModeConfig{Mode: ModeRanked, TimeLimit: 300, ScoreLimit: 7}
	default:
		return ModeConfig{Mode: ModeCasual, TimeLimit: 180, ScoreLimit: 5}
	}
}

// Simulation rates
const (
	TickRate       = 60 // physics ticks per second
	BroadcastRate  = 30 // state broadcasts per second
	TickDuration   = time.Second / TickRate
	BroadcastEvery = TickRate / BroadcastRate
)

// Arena geometry (world units; origin top-left, +Y down)
const (
	ArenaWidth   = 800.0
	ArenaHeight  = 450.0
	GoalMouthH   = 110.0                    // goal opening height, measured up from the ground
	GoalMouthTop = ArenaHeight - GoalMouthH // Y of the crossbar
	BallRadius   = 15.0
	CharRadius   = 25.0
	BallCenterX  = ArenaWidth / 2
	BallCenterY  = ArenaHeight / 3
)

// Ball physics
const (
	Gravity        = 1200.0 // units/s²
	BallDamping    = 0.995  // velocity multiplier per tick
	Restitution    = 0.72   // bounce energy retention
	GroundFriction = 0.92   // horizontal multiplier on ground bounce
	SpinDecay      = 0.98
)

// Ball contact rules
const (
	KickImpulseMin   = 520.0 // kick speed range, units/s
	KickImpulseMax   = 760.0
	KickLift         = 0.35 // upward bias applied to kick direction
	MomentumTransfer = 0.45 // fraction of player velocity passed on non-kick contact
	PassivePush      = 80.0 // nudge applied on contact with a stationary player
	ContactCooldown  = 0.25 // seconds a player is locked out after touching the ball
)

// Matchmaking
const (
	QueueCapacity      = 256
	SkillToleranceBase = 100 // starting acceptable ELO gap
	SkillToleranceStep = 50  // gap widens by this much per ToleranceInterval waited
	DefaultElo         = 1200
	DefaultWaitEst     = 30 * time.Second
)

var (
	ToleranceInterval    = 30 * time.Second
	QueueSweepInterval   = 5 * time.Second
	QueueCleanupInterval = 15 * time.Second
	QueueMaxWait         = 5 * time.Minute
)

// Room lifecycle timers. Vars so tests can shrink them.
var (
	GoalCooldownDuration = 3 * time.Second
	PauseTimeout         = 60 * time.Second
	RoomIdleTimeout      = 10 * time.Minute
	RoomSweepInterval    = time.Minute
	CleanupDelay         = 5 * time.Second
	MaxLagCompensation   = 250 * time.Millisecond
)

// ValidatorConfig bounds the client-claimed state the server will accept.
// These are tuning knobs, not physics truths; keep them loose enough that
// honest clients on bad connections don't trip them.
type ValidatorConfig struct {
	MaxPlayerSpeed float64 // units/s
	MaxTeleport    float64 // max claimed position jump per message
	MaxBallSpeed   float64
	GoalClaimSlack float64 // max distance between claimed and authoritative ball
}

// DefaultValidatorConfig returns the standard validation bounds
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxPlayerSpeed: 450,
		MaxTeleport:    120,
		MaxBallSpeed:   1400,
		GoalClaimSlack: 80,
	}
}
