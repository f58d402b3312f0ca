package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *RecordRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "voicexp.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRecordRepository_EmptyDatabase(t *testing.T) {
	repo := openTestRepo(t)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestRecordRepository_SaveReplacesAndKeepsOrder(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := []record.Record{{MemberID: "b", XP: 7}, {MemberID: "a", XP: 7}, {MemberID: "c", XP: 2}}
	require.NoError(t, repo.Save(ctx, first))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	second := []record.Record{{MemberID: "a", XP: 8}}
	require.NoError(t, repo.Save(ctx, second))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestRecordRepository_FailedSaveRollsBack(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	good := []record.Record{{MemberID: "a", XP: 1}}
	require.NoError(t, repo.Save(ctx, good))

	// Duplicate member IDs violate the primary key.
	err := repo.Save(ctx, []record.Record{{MemberID: "x", XP: 1}, {MemberID: "x", XP: 2}})
	require.Error(t, err)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, loaded)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ", nil)
	assert.Error(t, err)
}
