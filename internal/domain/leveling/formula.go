// Package leveling converts accumulated voice XP into levels and back.
// The curve is fixed: every displayed level in the community depends on the
// exact exponents and scale factor below, so they are not configurable.
package leveling

import "math"

const (
	// xpScale is the number of XP points that defines the unit of the curve.
	xpScale = 60.0

	// levelExponent maps scaled XP onto levels.
	levelExponent = 0.385

	// xpExponent maps levels back onto XP floors.
	xpExponent = 2.6
)

// XPToLevel returns the level reached with the given amount of XP.
// Negative input is treated as zero.
func XPToLevel(xp int64) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Floor(math.Pow(float64(xp)/xpScale, levelExponent)))
}

// LevelToXP returns the XP floor of the given level.
// Negative input is treated as zero.
func LevelToXP(level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(math.Floor(math.Pow(float64(level), xpExponent) * xpScale))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS WITHIN A LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// LevelProgress describes where an XP total sits between two level floors.
type LevelProgress struct {
	// XP is the total the progress was computed for.
	XP int64

	// Level is XPToLevel(XP).
	Level int

	// FloorCurrent is LevelToXP(Level).
	FloorCurrent int64

	// FloorNext is LevelToXP(Level + 1).
	FloorNext int64

	// Fraction is the position between the two floors, in [0, 1].
	Fraction float64
}

// Remaining returns the XP still needed to reach the next level floor.
func (p LevelProgress) Remaining() int64 {
	if p.FloorNext <= p.XP {
		return 0
	}
	return p.FloorNext - p.XP
}

// Percent returns Fraction as a percentage.
func (p LevelProgress) Percent() float64 {
	return p.Fraction * 100
}

// Progress computes the progress of xp within its current level.
//
// XPToLevel and LevelToXP are not exact inverses under rounding, so the raw
// fraction can land marginally outside [0, 1]; it is clamped.
func Progress(xp int64) LevelProgress {
	if xp < 0 {
		xp = 0
	}

	level := XPToLevel(xp)
	floor := LevelToXP(level)
	next := LevelToXP(level + 1)

	var fraction float64
	if span := next - floor; span > 0 {
		fraction = float64(xp-floor) / float64(span)
	}

	return LevelProgress{
		XP:           xp,
		Level:        level,
		FloorCurrent: floor,
		FloorNext:    next,
		Fraction:     clamp01(fraction),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
