// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCRUE XP COMMAND
// Applies one accrual tick: exactly one XP point per eligible member, and a
// level-up event for every member whose level changed.
// ══════════════════════════════════════════════════════════════════════════════

// firstLevel is the level announced to a member on their very first point,
// whatever the formula says about 1 XP.
const firstLevel = 1

// AccrueXPCommand contains the members eligible on one tick.
// Eligibility is decided upstream and trusted as-is.
type AccrueXPCommand struct {
	// TickID correlates the increments and events of one tick in logs.
	TickID string

	// MemberIDs are the eligible members. Duplicates are ignored.
	MemberIDs []string
}

// Validate validates the command.
func (c AccrueXPCommand) Validate() error {
	for _, id := range c.MemberIDs {
		if id == "" {
			return errors.New("accrue_xp: member id cannot be empty")
		}
	}
	return nil
}

// LevelUp is a level change detected during a tick.
type LevelUp struct {
	MemberID string
	NewLevel int
	XP       int64
}

// AccrueXPResult contains the outcome of one tick.
type AccrueXPResult struct {
	TickID string

	// Increments holds one entry per distinct eligible member.
	Increments []record.Increment

	// Created is the number of records materialized by this tick.
	Created int

	// LevelUps holds at most one entry per member.
	LevelUps []LevelUp

	// PublishFailures counts level-up events the publisher rejected.
	PublishFailures int

	AppliedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AccrueXPHandler handles the AccrueXPCommand.
type AccrueXPHandler struct {
	store     *record.Store
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewAccrueXPHandler creates a new AccrueXPHandler. The publisher may be nil,
// in which case level-ups are only reported in the result.
func NewAccrueXPHandler(store *record.Store, publisher shared.EventPublisher, logger *slog.Logger) *AccrueXPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccrueXPHandler{
		store:     store,
		publisher: publisher,
		logger:    logger.With("handler", "accrue_xp"),
	}
}

// Handle applies one tick. An increment that already happened is never undone,
// whatever happens to its level-up event afterwards.
func (h *AccrueXPHandler) Handle(ctx context.Context, cmd AccrueXPCommand) (*AccrueXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &AccrueXPResult{
		TickID:     cmd.TickID,
		Increments: make([]record.Increment, 0, len(cmd.MemberIDs)),
		AppliedAt:  time.Now(),
	}

	seen := make(map[string]struct{}, len(cmd.MemberIDs))
	for _, memberID := range cmd.MemberIDs {
		if _, dup := seen[memberID]; dup {
			continue
		}
		seen[memberID] = struct{}{}

		inc, err := h.store.UpsertIncrement(memberID)
		if err != nil {
			h.logger.Warn("increment rejected",
				"tick_id", cmd.TickID,
				"member_id", memberID,
				"error", err,
			)
			continue
		}
		result.Increments = append(result.Increments, inc)
		if inc.Created {
			result.Created++
		}

		levelUp, ok := detectLevelUp(inc)
		if !ok {
			continue
		}
		result.LevelUps = append(result.LevelUps, levelUp)

		if !h.publish(cmd.TickID, levelUp) {
			result.PublishFailures++
		}
	}

	h.logger.DebugContext(ctx, "tick applied",
		"tick_id", cmd.TickID,
		"increments", len(result.Increments),
		"level_ups", len(result.LevelUps),
	)

	return result, nil
}

// detectLevelUp compares the levels around one increment. A brand-new record
// always reports the first level.
func detectLevelUp(inc record.Increment) (LevelUp, bool) {
	if inc.Created {
		return LevelUp{MemberID: inc.MemberID, NewLevel: firstLevel, XP: inc.NewXP}, true
	}

	oldLevel, newLevel := inc.OldLevel(), inc.NewLevel()
	if oldLevel == newLevel {
		return LevelUp{}, false
	}
	return LevelUp{MemberID: inc.MemberID, NewLevel: newLevel, XP: inc.NewXP}, true
}

func (h *AccrueXPHandler) publish(tickID string, lu LevelUp) bool {
	if h.publisher == nil {
		return true
	}

	event := shared.NewLevelUpEvent(lu.MemberID, lu.NewLevel, lu.XP)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(tickID)

	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("level-up event dropped",
			"tick_id", tickID,
			"member_id", lu.MemberID,
			"new_level", lu.NewLevel,
			"error", err,
		)
		return false
	}
	return true
}
