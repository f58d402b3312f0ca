// Package sqlite implements the record repository on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gmz-labs/voicexp/internal/domain/record"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS voice_xp_records (
    member_id TEXT PRIMARY KEY CHECK (length(trim(member_id)) > 0),
    xp INTEGER NOT NULL CHECK (xp >= 0),
    position INTEGER NOT NULL UNIQUE
);
`

// RecordRepository implements record.Repository on SQLite.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*RecordRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &RecordRepository{
		db:     db,
		logger: logger.With("component", "sqlite_records", "path", path),
	}, nil
}

// Close closes the database handle.
func (r *RecordRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Load implements record.Repository.
func (r *RecordRepository) Load(ctx context.Context) ([]record.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT member_id, xp FROM voice_xp_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load records: %w", err)
	}
	defer rows.Close()

	records := make([]record.Record, 0)
	for rows.Next() {
		var rec record.Record
		if err := rows.Scan(&rec.MemberID, &rec.XP); err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate records: %w", err)
	}

	if _, err := record.NewStore(records); err != nil {
		return nil, fmt.Errorf("sqlite: stored records: %w", err)
	}

	r.logger.Info("records loaded", "records", len(records))
	return records, nil
}

// Save implements record.Repository by replacing the table contents in one
// transaction.
func (r *RecordRepository) Save(ctx context.Context, records []record.Record) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM voice_xp_records`); err != nil {
		return fmt.Errorf("sqlite: clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO voice_xp_records (member_id, xp, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err = stmt.ExecContext(ctx, rec.MemberID, rec.XP, i); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", rec.MemberID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
