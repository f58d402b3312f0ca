package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/pkg/retry"
)

// BackupFilename is the attachment name operators restore from.
const BackupFilename = "database.json"

// ErrNoChannel is returned when a Discord adapter has no target channel.
var ErrNoChannel = errors.New("discord channel not configured")

// ══════════════════════════════════════════════════════════════════════════════
// DISCORD SINK
// ══════════════════════════════════════════════════════════════════════════════

// FileSender posts a message with an attached file.
type FileSender interface {
	SendFile(ctx context.Context, channelID, content, filename string, data []byte) (*discord.Message, error)
}

// DiscordBackupSink posts each backup as a file to the backup channel.
type DiscordBackupSink struct {
	sender    FileSender
	channelID string
}

// NewDiscordBackupSink creates the sink.
func NewDiscordBackupSink(sender FileSender, channelID string) *DiscordBackupSink {
	return &DiscordBackupSink{sender: sender, channelID: channelID}
}

// Name implements record.BackupSink.
func (s *DiscordBackupSink) Name() string { return "discord" }

// Ship implements record.BackupSink.
func (s *DiscordBackupSink) Ship(ctx context.Context, backup record.Backup) error {
	if s.channelID == "" {
		return ErrNoChannel
	}
	if _, err := s.sender.SendFile(ctx, s.channelID, backupCaption(backup), BackupFilename, backup.Payload); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrBackupSinkFailed, err)
	}
	return nil
}

func backupCaption(b record.Backup) string {
	return fmt.Sprintf("Sauvegarde du %s · %d membres · blake2b-256 `%s`",
		b.TakenAt.Format("2006-01-02 15:04 MST"), b.Records, b.Digest)
}

// ══════════════════════════════════════════════════════════════════════════════
// S3 SINK
// ══════════════════════════════════════════════════════════════════════════════

// ObjectPutter stores an object under a key.
type ObjectPutter interface {
	Key(at time.Time, name string) string
	Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error
}

// S3BackupSink writes each backup as its own object.
type S3BackupSink struct {
	store   ObjectPutter
	retrier *retry.Retrier
}

// NewS3BackupSink creates the sink. A nil retrier uses retry.ObjectStoreRetrier.
func NewS3BackupSink(store ObjectPutter, retrier *retry.Retrier) *S3BackupSink {
	if retrier == nil {
		retrier = retry.ObjectStoreRetrier()
	}
	return &S3BackupSink{store: store, retrier: retrier}
}

// Name implements record.BackupSink.
func (s *S3BackupSink) Name() string { return "s3" }

// Ship implements record.BackupSink.
func (s *S3BackupSink) Ship(ctx context.Context, backup record.Backup) error {
	key := s.store.Key(backup.TakenAt, backup.ID+".json")
	meta := map[string]string{
		"digest":   backup.Digest,
		"records":  strconv.Itoa(backup.Records),
		"taken-at": backup.TakenAt.Format(time.RFC3339),
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		if err := s.store.Put(ctx, key, backup.Payload, "application/json", meta); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrBackupSinkFailed, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOP SINK
// ══════════════════════════════════════════════════════════════════════════════

// NopBackupSink discards backups; the flush job still keeps the durable copy.
type NopBackupSink struct {
	logger *slog.Logger
}

// NewNopBackupSink creates the sink.
func NewNopBackupSink(logger *slog.Logger) *NopBackupSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NopBackupSink{logger: logger}
}

// Name implements record.BackupSink.
func (s *NopBackupSink) Name() string { return "none" }

// Ship implements record.BackupSink.
func (s *NopBackupSink) Ship(_ context.Context, backup record.Backup) error {
	s.logger.Debug("backup discarded", "backup_id", backup.ID, "records", backup.Records)
	return nil
}
