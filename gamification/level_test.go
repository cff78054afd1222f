package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelBoundaries(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{50, 1},
		{99, 1},
		{100, 1},
		{399, 1},
		{400, 2},
		{899, 2},
		{900, 3},
		{1600, 4},
		{250000, 50},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Level(c.xp), "xp=%d", c.xp)
	}
}

func TestLevelNeverBelowOne(t *testing.T) {
	assert.Equal(t, 1, Level(-500))
	assert.Equal(t, 1, Level(0))
}

func TestLevelMonotonic(t *testing.T) {
	prev := Level(0)
	for xp := int64(0); xp <= 5000; xp += 37 {
		l := Level(xp)
		assert.GreaterOrEqual(t, l, prev, "xp=%d", xp)
		prev = l
	}
}

func TestNextLevelXP(t *testing.T) {
	assert.Equal(t, int64(400), NextLevelXP(1))
	assert.Equal(t, int64(900), NextLevelXP(2))
	assert.Equal(t, int64(400), NextLevelXP(0))
	// reaching NextLevelXP really crosses the boundary
	for level := 1; level < 20; level++ {
		assert.Equal(t, level+1, Level(NextLevelXP(level)))
	}
}
