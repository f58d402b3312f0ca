// Package file implements the record repository on a single JSON file.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gmz-labs/voicexp/internal/domain/record"
)

// ErrStoreMissing is returned by Load when the file does not exist and the
// repository was not allowed to create it.
var ErrStoreMissing = errors.New("record file does not exist")

// JSONStoreConfig contains configuration for JSONStore.
type JSONStoreConfig struct {
	// Path is the location of the record file.
	Path string

	// InitEmpty creates the file with an empty set when it is missing.
	InitEmpty bool

	// Logger for structured logging.
	Logger *slog.Logger
}

// JSONStore is a record.Repository keeping the whole set in one file. Saves
// write a temporary file in the same directory, sync it and rename it over
// the target, so readers see either the old or the new set.
type JSONStore struct {
	mu        sync.Mutex
	path      string
	initEmpty bool
	logger    *slog.Logger
}

// NewJSONStore creates a JSONStore.
func NewJSONStore(config JSONStoreConfig) (*JSONStore, error) {
	if config.Path == "" {
		return nil, errors.New("file store: path is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &JSONStore{
		path:      config.Path,
		initEmpty: config.InitEmpty,
		logger:    config.Logger.With("component", "file_store", "path", config.Path),
	}, nil
}

// Load implements record.Repository.
func (s *JSONStore) Load(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if !s.initEmpty {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, s.path)
		}
		s.logger.Warn("record file missing, creating an empty one")
		if err := s.write(nil); err != nil {
			return nil, err
		}
		return []record.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	records, err := record.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}

	s.logger.Info("records loaded", "records", len(records))
	return records, nil
}

// Save implements record.Repository.
func (s *JSONStore) Save(ctx context.Context, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(records)
}

func (s *JSONStore) write(records []record.Record) error {
	data, err := record.Encode(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".records-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Path returns the file location.
func (s *JSONStore) Path() string {
	return s.path
}
