package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH RECORDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// FlushRecordsJob writes a full snapshot of the store to the durable
// repository. A failed flush leaves the previous durable state intact and is
// retried at the next schedule only.
type FlushRecordsJob struct {
	store   *record.Store
	repo    record.Repository
	metrics *metrics.Collector
	logger  *slog.Logger
	timeout time.Duration
}

// NewFlushRecordsJob creates the flush job. collector may be nil.
func NewFlushRecordsJob(store *record.Store, repo record.Repository, collector *metrics.Collector, logger *slog.Logger, timeout time.Duration) *FlushRecordsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushRecordsJob{
		store:   store,
		repo:    repo,
		metrics: collector,
		logger:  logger.With("job", "flush_records"),
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *FlushRecordsJob) Name() string {
	return "flush_records"
}

// Description returns a human-readable description.
func (j *FlushRecordsJob) Description() string {
	return "Replaces the durable record store with the in-memory record set"
}

// Run executes the flush.
func (j *FlushRecordsJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	snapshot := j.store.Snapshot()

	err := j.repo.Save(ctx, snapshot)
	j.metrics.ObserveFlush(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save %d records: %w", len(snapshot), err)
	}

	j.logger.Debug("records flushed", "records", len(snapshot), "duration", time.Since(start).String())
	return nil
}
