package main

import "math"

const eloK = 32

// EloExpected returns the expected score for a player rated `rating`
// against an opponent rated `opponent` (standard logistic curve).
func EloExpected(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
}

// EloUpdate returns the new rating after a match.
// score is 1 for a win, 0.5 for a draw, 0 for a loss.
func EloUpdate(rating, opponent int, score float64) int {
	expected := EloExpected(rating, opponent)
	next := float64(rating) + eloK*(score-expected)
	return int(math.Round(next))
}
