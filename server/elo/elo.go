package elo

import "math"

// WinProbability is the expected score of a player rated a against b.
func WinProbability(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// Delta is the rating change for self after scoring score against opp.
func Delta(self, opp, score, k float64) float64 {
	return DeltaFromExpected(WinProbability(self, opp), score, k)
}

// DeltaFromExpected scales the surprise by k. Any non-zero change smaller
// than a point is pushed out to ±1 so every unequal result moves the rating.
func DeltaFromExpected(expected, score, k float64) float64 {
	d := k * (score - expected)
	if d != 0 && math.Abs(d) < 1 {
		return math.Copysign(1, d)
	}
	return d
}

// NewRating applies delta and rounds half to even.
func NewRating(self, delta float64) float64 {
	return math.RoundToEven(self + delta)
}

// Update is the outcome of one paired update.
type Update struct {
	Probability float64 // P(player1 wins) under pre-game ratings
	New1, New2  float64
	K1, K2      int
}

// Change1 is player1's persisted integer rating change.
func (u Update) Change1(old float64) int { return int(math.Round(u.New1 - old)) }
func (u Update) Change2(old float64) int { return int(math.Round(u.New2 - old)) }

// Pair rates one game. Each side uses its own k, so the two changes are not
// necessarily mirror images.
func Pair(r1, r2, score1 float64, k1, k2 int) Update {
	p := WinProbability(r1, r2)
	d1 := DeltaFromExpected(p, score1, float64(k1))
	d2 := DeltaFromExpected(1-p, 1-score1, float64(k2))
	return Update{
		Probability: p,
		New1:        NewRating(r1, d1),
		New2:        NewRating(r2, d2),
		K1:          k1,
		K2:          k2,
	}
}
