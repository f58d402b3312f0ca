package jobs

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gmz-labs/voicexp/internal/application/command"
	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type stubSource struct {
	members []string
	err     error
}

func (s stubSource) EligibleMembers(context.Context) ([]string, error) {
	return s.members, s.err
}

type memRepo struct {
	mu    sync.Mutex
	saved []record.Record
	err   error
}

func (r *memRepo) Load(context.Context) ([]record.Record, error) { return r.saved, nil }

func (r *memRepo) Save(_ context.Context, records []record.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = records
	return nil
}

type memSink struct {
	shipped []record.Backup
	err     error
}

func (s *memSink) Name() string { return "memory" }

func (s *memSink) Ship(_ context.Context, b record.Backup) error {
	if s.err != nil {
		return s.err
	}
	s.shipped = append(s.shipped, b)
	return nil
}

func newAccrueJob(store *record.Store, source stubSource) *AccrueVoiceXPJob {
	handler := command.NewAccrueXPHandler(store, nil, nil)
	return NewAccrueVoiceXPJob(source, handler, store, metrics.NewCollector(), nil, DefaultAccrueVoiceXPConfig())
}

func TestAccrueVoiceXPJob_GrantsEligibleMembers(t *testing.T) {
	store := record.NewEmptyStore()
	job := newAccrueJob(store, stubSource{members: []string{"a", "b"}})

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	r, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), r.XP)
	assert.Equal(t, 2, store.Len())
}

func TestAccrueVoiceXPJob_GuildUnavailableSkipsTick(t *testing.T) {
	store, err := record.NewStore([]record.Record{{MemberID: "a", XP: 5}})
	require.NoError(t, err)
	job := newAccrueJob(store, stubSource{err: shared.ErrGuildUnavailable})

	assert.NoError(t, job.Run(context.Background()))

	r, _ := store.Get("a")
	assert.Equal(t, int64(5), r.XP)
}

func TestAccrueVoiceXPJob_SourceFailure(t *testing.T) {
	store := record.NewEmptyStore()
	job := newAccrueJob(store, stubSource{err: errors.New("redis down")})

	assert.Error(t, job.Run(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestFlushRecordsJob(t *testing.T) {
	store, err := record.NewStore([]record.Record{{MemberID: "a", XP: 3}})
	require.NoError(t, err)
	repo := &memRepo{}
	job := NewFlushRecordsJob(store, repo, nil, nil, time.Second)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []record.Record{{MemberID: "a", XP: 3}}, repo.saved)

	_, err = store.UpsertIncrement("b")
	require.NoError(t, err)
	repo.err = errors.New("read-only filesystem")

	assert.Error(t, job.Run(context.Background()))
	assert.Len(t, repo.saved, 1, "failed flush must not change durable state")
}

func TestBackupRecordsJob(t *testing.T) {
	store, err := record.NewStore([]record.Record{{MemberID: "a", XP: 3}, {MemberID: "b", XP: 9}})
	require.NoError(t, err)
	sink := &memSink{}
	job := NewBackupRecordsJob(store, sink, nil, nil, time.Second)
	job.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, sink.shipped, 1)

	b := sink.shipped[0]
	assert.Equal(t, 2, b.Records)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, job.now(), b.TakenAt)

	decoded, err := record.Decode(b.Payload)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), decoded)

	sum := blake2b.Sum256(b.Payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), b.Digest)

	sink.err = errors.New("channel missing")
	assert.Error(t, job.Run(context.Background()))
}

func TestNewBackup_Empty(t *testing.T) {
	b, err := NewBackup(nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b.Payload))
	assert.Equal(t, 0, b.Records)
}
