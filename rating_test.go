package main

import (
	"math"
	"testing"
)

func TestEloExpectedEqualRatings(t *testing.T) {
	if e := EloExpected(1200, 1200); math.Abs(e-0.5) > 1e-9 {
		t.Errorf("equal ratings should expect 0.5, got %f", e)
	}
}

func TestEloExpectedFavorsHigherRating(t *testing.T) {
	strong := EloExpected(1500, 1200)
	weak := EloExpected(1200, 1500)
	if strong <= 0.5 || weak >= 0.5 {
		t.Errorf("expectations wrong way around: strong=%f weak=%f", strong, weak)
	}
	if math.Abs(strong+weak-1.0) > 1e-9 {
		t.Errorf("expectations should sum to 1, got %f", strong+weak)
	}
}

func TestEloUpdateWinAndLoss(t *testing.T) {
	winner := EloUpdate(1200, 1200, 1.0)
	loser := EloUpdate(1200, 1200, 0.0)

	if winner != 1216 {
		t.Errorf("even-match win = %d, want 1216", winner)
	}
	if loser != 1184 {
		t.Errorf("even-match loss = %d, want 1184", loser)
	}
}

func TestEloUpdateDrawEvenMatch(t *testing.T) {
	if got := EloUpdate(1200, 1200, 0.5); got != 1200 {
		t.Errorf("even-match draw should not move the rating, got %d", got)
	}
}

func TestEloUpdateUpsetPaysMore(t *testing.T) {
	upset := EloUpdate(1200, 1500, 1.0) - 1200
	expected := EloUpdate(1500, 1200, 1.0) - 1500
	if upset <= expected {
		t.Errorf("upset win gained %d, favored win gained %d; upset should pay more", upset, expected)
	}
}

func TestEloUpdateDrawAgainstStronger(t *testing.T) {
	if got := EloUpdate(1200, 1500, 0.5); got <= 1200 {
		t.Errorf("drawing a stronger opponent should gain rating, got %d", got)
	}
}
