package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPToLevel_KnownValues(t *testing.T) {
	tests := []struct {
		xp    int64
		level int
	}{
		{xp: -5, level: 0},
		{xp: 0, level: 0},
		{xp: 1, level: 0},
		{xp: 59, level: 0},
		{xp: 60, level: 1},
		{xp: 363, level: 1},
		{xp: 364, level: 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, XPToLevel(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevelToXP_KnownValues(t *testing.T) {
	assert.Equal(t, int64(0), LevelToXP(-1))
	assert.Equal(t, int64(0), LevelToXP(0))
	assert.Equal(t, int64(60), LevelToXP(1))
	assert.Equal(t, int64(363), LevelToXP(2))
}

func TestFormula_NotExactInverse(t *testing.T) {
	// The floor of level 2 is 363 XP, but 363 XP still reads as level 1.
	assert.Equal(t, 1, XPToLevel(LevelToXP(2)))
}

func TestXPToLevel_NonDecreasing(t *testing.T) {
	prev := XPToLevel(0)
	for xp := int64(1); xp <= 200_000; xp++ {
		level := XPToLevel(xp)
		if level < prev {
			t.Fatalf("level decreased at xp=%d: %d -> %d", xp, prev, level)
		}
		if level-prev > 1 {
			t.Fatalf("single XP jumped more than one level at xp=%d", xp)
		}
		prev = level
	}
}

func TestLevelToXP_NonDecreasing(t *testing.T) {
	prev := LevelToXP(0)
	for level := 1; level <= 500; level++ {
		xp := LevelToXP(level)
		assert.GreaterOrEqual(t, xp, prev, "level=%d", level)
		prev = xp
	}
}

func TestProgress(t *testing.T) {
	t.Run("no xp", func(t *testing.T) {
		p := Progress(0)
		assert.Equal(t, 0, p.Level)
		assert.Equal(t, int64(0), p.FloorCurrent)
		assert.Equal(t, int64(60), p.FloorNext)
		assert.Equal(t, 0.0, p.Fraction)
		assert.Equal(t, int64(60), p.Remaining())
	})

	t.Run("halfway through level zero", func(t *testing.T) {
		p := Progress(30)
		assert.InDelta(t, 0.5, p.Fraction, 1e-9)
		assert.InDelta(t, 50.0, p.Percent(), 1e-9)
	})

	t.Run("rounding gap is clamped", func(t *testing.T) {
		p := Progress(363)
		assert.Equal(t, 1, p.Level)
		assert.Equal(t, int64(60), p.FloorCurrent)
		assert.Equal(t, int64(363), p.FloorNext)
		assert.Equal(t, 1.0, p.Fraction)
		assert.Equal(t, int64(0), p.Remaining())
	})

	t.Run("fraction always in range", func(t *testing.T) {
		for xp := int64(0); xp < 50_000; xp += 7 {
			p := Progress(xp)
			assert.GreaterOrEqual(t, p.Fraction, 0.0)
			assert.LessOrEqual(t, p.Fraction, 1.0)
		}
	})
}
