package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gmz-labs/voicexp/internal/domain/record"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements record.Repository on the voice_xp_records
// table. Save replaces the table contents in one transaction.
type RecordRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection, logger *slog.Logger) *RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordRepository{
		conn:   conn,
		logger: logger.With("component", "postgres_records"),
	}
}

// Load implements record.Repository. Rows come back in insertion order and
// are validated like the JSON file format.
func (r *RecordRepository) Load(ctx context.Context) ([]record.Record, error) {
	rows, err := r.conn.Query(ctx, `SELECT member_id, xp FROM voice_xp_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Record, error) {
		var rec record.Record
		err := row.Scan(&rec.MemberID, &rec.XP)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan records: %w", err)
	}

	if _, err := record.NewStore(records); err != nil {
		return nil, fmt.Errorf("postgres: stored records: %w", err)
	}

	r.logger.Info("records loaded", "records", len(records))
	return records, nil
}

// Save implements record.Repository.
func (r *RecordRepository) Save(ctx context.Context, records []record.Record) error {
	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{rec.MemberID, rec.XP, i}
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM voice_xp_records`); err != nil {
			return fmt.Errorf("postgres: clear records: %w", err)
		}

		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"voice_xp_records"},
			[]string{"member_id", "xp", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("postgres: copy records: %w", recordViolation(err))
		}
		if int(n) != len(records) {
			return fmt.Errorf("postgres: copied %d of %d records", n, len(records))
		}
		return nil
	})
}
