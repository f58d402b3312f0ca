package record

import (
	"context"
	"time"
)

// Repository is the durable store of the record set.
// Implementations replace the whole set on every Save; there is no
// incremental format.
type Repository interface {
	// Load reads the full record set. A missing or malformed store is an
	// error, never an empty set.
	Load(ctx context.Context) ([]Record, error)

	// Save atomically replaces the stored set with records.
	Save(ctx context.Context, records []Record) error
}

// Backup is a full serialization of the record set shipped off-process.
type Backup struct {
	// ID uniquely names this backup.
	ID string

	// Payload is the durable-format encoding of the record set.
	Payload []byte

	// Digest is a hex checksum of Payload, for operators verifying a copy.
	Digest string

	// Records is the number of records in Payload.
	Records int

	// TakenAt is when the snapshot was copied from the store.
	TakenAt time.Time
}

// BackupSink receives periodic backups (an archival chat channel, an object
// store bucket, ...). Backups are for human operators, not automated restore.
type BackupSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Ship delivers one backup.
	Ship(ctx context.Context, backup Backup) error
}
