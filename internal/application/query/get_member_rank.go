// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/leveling"
	"github.com/gmz-labs/voicexp/internal/domain/record"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MEMBER RANK QUERY
// Returns where a member stands: rank, level and progress towards the next
// level. A member without a record is unranked, which is not an error.
// ══════════════════════════════════════════════════════════════════════════════

// GetMemberRankQuery contains the query parameters.
type GetMemberRankQuery struct {
	MemberID string
}

// Validate checks the query parameters.
func (q GetMemberRankQuery) Validate() error {
	if q.MemberID == "" {
		return errors.New("member_id is required")
	}
	return nil
}

// RankSummaryDTO describes a member's standing.
type RankSummaryDTO struct {
	MemberID string `json:"member_id"`

	// Rank is the 1-based position in the leaderboard, 0 when unranked.
	Rank int `json:"rank"`

	// Ranked is false when the member has never earned XP.
	Ranked bool `json:"ranked"`

	// Total is the number of ranked members.
	Total int `json:"total"`

	XP    int64 `json:"xp"`
	Level int   `json:"level"`

	// Progress is the position between the current and next level floors (0.0 - 1.0).
	Progress float64 `json:"progress"`

	XPFloorCurrent int64 `json:"xp_floor_current"`
	XPFloorNext    int64 `json:"xp_floor_next"`

	// HoursToNextLevel is the voice time still needed at the accrual rate.
	HoursToNextLevel int `json:"hours_to_next_level"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetMemberRankHandler handles GetMemberRankQuery.
type GetMemberRankHandler struct {
	store     *record.Store
	xpPerHour float64
}

// NewGetMemberRankHandler creates a handler. accrualInterval is the period of
// the accrual tick (one XP per tick); it drives HoursToNextLevel.
func NewGetMemberRankHandler(store *record.Store, accrualInterval time.Duration) *GetMemberRankHandler {
	if accrualInterval <= 0 {
		accrualInterval = time.Minute
	}
	return &GetMemberRankHandler{
		store:     store,
		xpPerHour: float64(time.Hour) / float64(accrualInterval),
	}
}

// Handle executes the query.
func (h *GetMemberRankHandler) Handle(ctx context.Context, q GetMemberRankQuery) (*RankSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// XP, rank and total all come from the same copy.
	ranked := h.store.RankedDescending()

	dto := &RankSummaryDTO{MemberID: q.MemberID, Total: len(ranked)}
	for i, r := range ranked {
		if r.MemberID == q.MemberID {
			dto.Rank = i + 1
			dto.Ranked = true
			dto.XP = r.XP
			break
		}
	}

	p := leveling.Progress(dto.XP)
	dto.Level = p.Level
	dto.Progress = p.Fraction
	dto.XPFloorCurrent = p.FloorCurrent
	dto.XPFloorNext = p.FloorNext
	dto.HoursToNextLevel = int(math.Ceil(float64(p.Remaining()) / h.xpPerHour))

	return dto, nil
}
