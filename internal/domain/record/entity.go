// Package record contains the voice XP record set: one Record per member who
// has ever earned XP, the in-memory Store that owns them, and the ports used
// to persist and back them up.
//
// Invariants:
//   - at most one Record per member ID;
//   - a Record's XP never decreases;
//   - a Record exists only once its member earned a first point.
package record

import (
	"strings"

	"github.com/gmz-labs/voicexp/internal/domain/leveling"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
)

// Record is the accumulated XP of one member.
// The JSON field names are the durable store format.
type Record struct {
	MemberID string `json:"memberId"`
	XP       int64  `json:"xp"`
}

// Level returns the level derived from the record's XP.
func (r Record) Level() int {
	return leveling.XPToLevel(r.XP)
}

// Validate checks the record against the record set invariants.
func (r Record) Validate() error {
	if strings.TrimSpace(r.MemberID) == "" {
		return shared.ErrEmptyMemberID
	}
	if r.XP < 0 {
		return shared.ErrNegativeXP
	}
	return nil
}

// Increment is the outcome of a single UpsertIncrement call.
type Increment struct {
	MemberID string
	OldXP    int64
	NewXP    int64

	// Created is true when the call materialized the record.
	Created bool
}

// OldLevel returns the level before the increment.
func (i Increment) OldLevel() int {
	return leveling.XPToLevel(i.OldXP)
}

// NewLevel returns the level after the increment.
func (i Increment) NewLevel() int {
	return leveling.XPToLevel(i.NewXP)
}
