package main

import (
	"math"
	"testing"
)

func TestBallGravityPullsDown(t *testing.T) {
	b := NewBallState()
	vyBefore := b.VY
	b.Step(1.0 / TickRate)
	if b.VY <= vyBefore {
		t.Errorf("expected VY to increase under gravity, got %f -> %f", vyBefore, b.VY)
	}
}

func TestBallGroundBounce(t *testing.T) {
	b := NewBallState()
	b.Y = ArenaHeight - BallRadius - 1
	b.VY = 300

	b.Step(1.0 / TickRate)

	if b.Y > ArenaHeight-BallRadius {
		t.Errorf("ball sank below ground: Y=%f", b.Y)
	}
	if b.VY >= 0 {
		t.Errorf("expected upward velocity after ground bounce, got %f", b.VY)
	}
}

func TestBallBounceLosesEnergy(t *testing.T) {
	b := NewBallState()
	b.Y = ArenaHeight - BallRadius - 1
	b.VY = 400

	b.Step(1.0 / TickRate)

	if math.Abs(b.VY) >= 400 {
		t.Errorf("bounce should lose energy: |VY|=%f", math.Abs(b.VY))
	}
}

func TestBallWallBounceAboveGoalMouth(t *testing.T) {
	b := NewBallState()
	b.X = BallRadius + 1
	b.Y = 100 // well above the goal mouth
	b.VX = -500

	b.Step(1.0 / TickRate)

	if b.VX <= 0 {
		t.Errorf("expected wall bounce to reverse VX, got %f", b.VX)
	}
	if b.X < BallRadius {
		t.Errorf("ball passed through the wall: X=%f", b.X)
	}
}

func TestBallCrossesGoalLineInsideMouth(t *testing.T) {
	b := NewBallState()
	b.X = 5
	b.Y = ArenaHeight - 30 // inside the goal mouth
	b.VX = -800

	// A few ticks should carry it past the line with no wall in the way
	for i := 0; i < 10 && b.InGoal() == ""; i++ {
		b.Step(1.0 / TickRate)
	}

	if b.InGoal() != "left" {
		t.Errorf("expected ball in left goal, InGoal=%q X=%f Y=%f", b.InGoal(), b.X, b.Y)
	}
}

func TestBallInGoalDetection(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want string
	}{
		{"center field", ArenaWidth / 2, 200, ""},
		{"left goal", -BallRadius - 5, ArenaHeight - 40, "left"},
		{"right goal", ArenaWidth + BallRadius + 5, ArenaHeight - 40, "right"},
		{"past line but above mouth", -BallRadius - 5, 100, ""},
		{"on the line", -BallRadius + 1, ArenaHeight - 40, ""},
	}
	for _, tt := range tests {
		b := &BallState{X: tt.x, Y: tt.y}
		if got := b.InGoal(); got != tt.want {
			t.Errorf("%s: InGoal() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBallReset(t *testing.T) {
	b := NewBallState()
	b.X = 50
	b.VX = 300
	b.Spin = 10
	b.LastToucherID = "p1"

	b.Reset()

	if b.X != BallCenterX || b.Y != BallCenterY {
		t.Errorf("reset position = (%f, %f), want kickoff spot", b.X, b.Y)
	}
	if b.VX != 0 || b.VY != 0 || b.Spin != 0 {
		t.Error("reset should zero velocities and spin")
	}
	if b.LastToucherID != "" {
		t.Error("reset should clear ball authority")
	}
}

func TestPlayerSpawnSides(t *testing.T) {
	left := NewPlayerPhysics("left")
	right := NewPlayerPhysics("right")

	if left.X >= ArenaWidth/2 {
		t.Errorf("left player spawned on wrong half: X=%f", left.X)
	}
	if right.X <= ArenaWidth/2 {
		t.Errorf("right player spawned on wrong half: X=%f", right.X)
	}
	if left.Facing != 1 || right.Facing != -1 {
		t.Error("players should face each other at kickoff")
	}
}

func TestResolveContactKick(t *testing.T) {
	p := &PlayerPhysics{X: 400, Y: 300, Kicking: true, Facing: 1}
	b := &BallState{X: 430, Y: 300} // touching, directly right

	if !ResolveContact("p1", p, b) {
		t.Fatal("expected contact")
	}

	speed := math.Sqrt(b.VX*b.VX + b.VY*b.VY)
	if b.VX < KickImpulseMin*0.5 {
		t.Errorf("kick should fire the ball away from the player, VX=%f", b.VX)
	}
	if speed < KickImpulseMin {
		t.Errorf("kick speed %f below minimum %f", speed, KickImpulseMin)
	}
	if b.VY >= 0 {
		t.Errorf("kick should lift the ball, VY=%f", b.VY)
	}
	if b.LastToucherID != "p1" {
		t.Errorf("contact should transfer ball authority, got %q", b.LastToucherID)
	}
	if p.ContactCD <= 0 {
		t.Error("contact should start the per-player cooldown")
	}
}

func TestResolveContactCooldownBlocks(t *testing.T) {
	p := &PlayerPhysics{X: 400, Y: 300, Kicking: true}
	b := &BallState{X: 430, Y: 300}

	ResolveContact("p1", p, b)
	vx := b.VX

	if ResolveContact("p1", p, b) {
		t.Error("second contact within cooldown should be ignored")
	}
	if b.VX != vx {
		t.Error("blocked contact must not change ball velocity")
	}
}

func TestResolveContactMomentumTransfer(t *testing.T) {
	p := &PlayerPhysics{X: 400, Y: 300, VX: 200}
	b := &BallState{X: 430, Y: 300}

	if !ResolveContact("p2", p, b) {
		t.Fatal("expected contact")
	}

	want := 200 * MomentumTransfer
	if math.Abs(b.VX-want) > 1 {
		t.Errorf("momentum transfer VX = %f, want ~%f", b.VX, want)
	}
	// Ball pushed out of the overlap
	if Distance(p.X, p.Y, b.X, b.Y) < CharRadius+BallRadius-1 {
		t.Error("ball should be pushed clear of the player")
	}
}

func TestResolveContactPassivePush(t *testing.T) {
	p := &PlayerPhysics{X: 400, Y: 300}
	b := &BallState{X: 430, Y: 300}

	if !ResolveContact("p1", p, b) {
		t.Fatal("expected contact")
	}
	if math.Abs(b.VX-PassivePush) > 1 {
		t.Errorf("passive push VX = %f, want ~%f", b.VX, PassivePush)
	}
}

func TestResolveContactNoTouchNoEffect(t *testing.T) {
	p := &PlayerPhysics{X: 100, Y: 300}
	b := &BallState{X: 600, Y: 300}

	if ResolveContact("p1", p, b) {
		t.Error("distant ball should not register contact")
	}
	if b.LastToucherID != "" {
		t.Error("no contact, no authority transfer")
	}
}

func TestPlayerTickDecaysCooldown(t *testing.T) {
	p := &PlayerPhysics{ContactCD: ContactCooldown}
	for i := 0; i < TickRate; i++ { // one simulated second
		p.Tick(1.0 / TickRate)
	}
	if p.ContactCD > 0 {
		t.Errorf("cooldown should have expired, got %f", p.ContactCD)
	}
}

func TestCheckCollision(t *testing.T) {
	if !CheckCollision(0, 0, 10, 15, 0, 10) {
		t.Error("overlapping circles should collide")
	}
	if CheckCollision(0, 0, 10, 30, 0, 10) {
		t.Error("separated circles should not collide")
	}
}
