package elo

import "math"

// Record is a player's committed win/draw/loss tally.
type Record struct {
	Wins   int `json:"wins"`
	Draws  int `json:"draws"`
	Losses int `json:"losses"`
}

func (r Record) Games() int { return r.Wins + r.Draws + r.Losses }

// Add counts one game given the player's score (1, 0.5 or 0).
func (r *Record) Add(score float64) {
	switch {
	case score >= 1:
		r.Wins++
	case score <= 0:
		r.Losses++
	default:
		r.Draws++
	}
}

// ScoreRate counts draws as half a win.
func (r Record) ScoreRate() float64 {
	n := r.Games()
	if n == 0 {
		return 0
	}
	return (float64(r.Wins) + 0.5*float64(r.Draws)) / float64(n)
}

func (r Record) CI95() (low, hi float64) { return WilsonCI95(r.Wins, r.Draws, r.Games()) }

// WilsonCI95 for a Bernoulli score rate, ties counted as half.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}
