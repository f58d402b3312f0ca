package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	s, err := NewJSONStore(JSONStoreConfig{Path: path})
	require.NoError(t, err)

	records := []record.Record{{MemberID: "b", XP: 7}, {MemberID: "a", XP: 7}}
	require.NoError(t, s.Save(context.Background(), records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"memberId":"b","xp":7},{"memberId":"a","xp":7}]`, string(raw))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestJSONStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")

	s, err := NewJSONStore(JSONStoreConfig{Path: path})
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrStoreMissing)

	s, err = NewJSONStore(JSONStoreConfig{Path: path, InitEmpty: true})
	require.NoError(t, err)
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestJSONStore_MalformedFileIsNotReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"memberId":"a"}`), 0o644))

	s, err := NewJSONStore(JSONStoreConfig{Path: path, InitEmpty: true})
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"memberId":"a"}`, string(raw))
}

func TestJSONStore_SaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "database.json")
	s, err := NewJSONStore(JSONStoreConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), nil))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestNewJSONStore_RequiresPath(t *testing.T) {
	_, err := NewJSONStore(JSONStoreConfig{})
	assert.Error(t, err)
}
