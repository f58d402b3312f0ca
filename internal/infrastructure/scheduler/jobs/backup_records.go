package jobs

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKUP RECORDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// BackupRecordsJob ships the durable-format encoding of the record set to an
// off-process sink.
type BackupRecordsJob struct {
	store   *record.Store
	sink    record.BackupSink
	metrics *metrics.Collector
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewBackupRecordsJob creates the backup job. collector may be nil.
func NewBackupRecordsJob(store *record.Store, sink record.BackupSink, collector *metrics.Collector, logger *slog.Logger, timeout time.Duration) *BackupRecordsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupRecordsJob{
		store:   store,
		sink:    sink,
		metrics: collector,
		logger:  logger.With("job", "backup_records", "sink", sink.Name()),
		timeout: timeout,
		now:     time.Now,
	}
}

// Name returns the job name.
func (j *BackupRecordsJob) Name() string {
	return "backup_records"
}

// Description returns a human-readable description.
func (j *BackupRecordsJob) Description() string {
	return "Ships a copy of the record set to the backup sink"
}

// Run executes the backup.
func (j *BackupRecordsJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	backup, err := NewBackup(j.store.Snapshot(), j.now())
	if err != nil {
		return err
	}

	err = j.sink.Ship(ctx, backup)
	j.metrics.ObserveBackup(j.sink.Name(), err)
	if err != nil {
		return fmt.Errorf("ship backup %s: %w", backup.ID, err)
	}

	j.logger.Info("backup shipped",
		"backup_id", backup.ID,
		"records", backup.Records,
		"bytes", len(backup.Payload),
		"digest", backup.Digest,
	)
	return nil
}

// NewBackup encodes records and stamps the result with a BLAKE2b-256 digest.
func NewBackup(records []record.Record, takenAt time.Time) (record.Backup, error) {
	payload, err := record.Encode(records)
	if err != nil {
		return record.Backup{}, fmt.Errorf("encode backup: %w", err)
	}

	sum := blake2b.Sum256(payload)
	return record.Backup{
		ID:      uuid.NewString(),
		Payload: payload,
		Digest:  hex.EncodeToString(sum[:]),
		Records: len(records),
		TakenAt: takenAt.UTC(),
	}, nil
}
