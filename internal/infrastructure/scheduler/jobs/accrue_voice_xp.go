// Package jobs contains the scheduled jobs of the tracker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmz-labs/voicexp/internal/application/command"
	"github.com/gmz-labs/voicexp/internal/domain/presence"
	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCRUE VOICE XP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AccrueVoiceXPJob is the accrual tick: it asks the presence source who is
// eligible and grants each of them one XP point.
type AccrueVoiceXPJob struct {
	source  presence.Source
	handler *command.AccrueXPHandler
	store   *record.Store
	metrics *metrics.Collector
	logger  *slog.Logger
	config  AccrueVoiceXPConfig
}

// AccrueVoiceXPConfig contains configuration for the accrual job.
type AccrueVoiceXPConfig struct {
	// Timeout bounds the presence lookup.
	Timeout time.Duration
}

// DefaultAccrueVoiceXPConfig returns sensible defaults.
func DefaultAccrueVoiceXPConfig() AccrueVoiceXPConfig {
	return AccrueVoiceXPConfig{Timeout: 20 * time.Second}
}

// NewAccrueVoiceXPJob creates the accrual job. collector may be nil.
func NewAccrueVoiceXPJob(
	source presence.Source,
	handler *command.AccrueXPHandler,
	store *record.Store,
	collector *metrics.Collector,
	logger *slog.Logger,
	config AccrueVoiceXPConfig,
) *AccrueVoiceXPJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccrueVoiceXPJob{
		source:  source,
		handler: handler,
		store:   store,
		metrics: collector,
		logger:  logger.With("job", "accrue_voice_xp"),
		config:  config,
	}
}

// Name returns the job name.
func (j *AccrueVoiceXPJob) Name() string {
	return "accrue_voice_xp"
}

// Description returns a human-readable description.
func (j *AccrueVoiceXPJob) Description() string {
	return "Grants one XP point to every eligible member in a voice channel"
}

// Run executes one accrual tick. An unavailable guild skips the tick and is
// not a job failure.
func (j *AccrueVoiceXPJob) Run(ctx context.Context) error {
	tickID := uuid.NewString()

	lookupCtx := ctx
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	members, err := j.source.EligibleMembers(lookupCtx)
	if err != nil {
		if errors.Is(err, shared.ErrGuildUnavailable) {
			j.logger.Warn("guild unavailable, tick skipped", "tick_id", tickID, "error", err)
			j.metrics.ObserveTick(metrics.OutcomeUnavailable, 0, 0, j.store.Len())
			return nil
		}
		j.metrics.ObserveTick(metrics.OutcomeError, 0, 0, j.store.Len())
		return fmt.Errorf("eligible members: %w", err)
	}

	result, err := j.handler.Handle(ctx, command.AccrueXPCommand{
		TickID:    tickID,
		MemberIDs: members,
	})
	if err != nil {
		j.metrics.ObserveTick(metrics.OutcomeError, 0, 0, j.store.Len())
		return fmt.Errorf("accrue xp: %w", err)
	}

	j.metrics.ObserveTick(metrics.OutcomeOK, len(result.Increments), len(result.LevelUps), j.store.Len())

	if len(result.LevelUps) > 0 {
		j.logger.Info("tick applied",
			"tick_id", tickID,
			"eligible", len(members),
			"created", result.Created,
			"level_ups", len(result.LevelUps),
		)
	}

	return nil
}
