package gamification

import "math"

// Level maps cumulative experience points to a level tier:
// max(1, floor(sqrt(xp/100))). Monotonic non-decreasing, Level(0) == 1,
// no upper bound.
func Level(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	l := int(math.Sqrt(float64(totalXP) / 100.0))
	if l < 1 {
		return 1
	}
	return l
}

// NextLevelXP returns the cumulative XP required to reach the level after
// the given one. Used by the account endpoint to show remaining progress.
func NextLevelXP(level int) int64 {
	if level < 1 {
		level = 1
	}
	n := int64(level + 1)
	return n * n * 100
}
