// Package leveling maps accumulated experience to a user level.
//
// Level 1 is free. Reaching level n (n >= 2) takes 100 * 1.5^(n-1)
// experience, so the thresholds run 150, 225, 337.5, 506.25 and so on.
package leveling

import "math"

const (
	BaseExperience = 100.0
	GrowthFactor   = 1.5

	// MaxLevel bounds the search. Its threshold is far beyond any int64
	// experience total.
	MaxLevel = 128
)

// Threshold is the minimum experience for level n. Threshold(1) is 0.
func Threshold(n int) float64 {
	if n <= 1 {
		return 0
	}
	return BaseExperience * math.Pow(GrowthFactor, float64(n-1))
}

// Level returns the greatest n with experience >= Threshold(n).
func Level(experience float64) int {
	if math.IsNaN(experience) || experience < Threshold(2) {
		return 1
	}
	n := 1
	for n < MaxLevel && experience >= Threshold(n+1) {
		n++
	}
	return n
}

// Progress describes a user's position on the leveling curve.
type Progress struct {
	Experience    int     `json:"experience"`
	Level         int     `json:"level"`
	NextLevel     int     `json:"nextLevel"`
	NextThreshold float64 `json:"nextThreshold"`
}

// ProgressFor builds the Progress view for an experience total.
func ProgressFor(experience int) Progress {
	lvl := Level(float64(experience))
	p := Progress{Experience: experience, Level: lvl, NextLevel: lvl}
	if lvl < MaxLevel {
		p.NextLevel = lvl + 1
		p.NextThreshold = Threshold(lvl + 1)
	}
	return p
}
