package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gmz-labs/voicexp/internal/domain/leveling"
	"github.com/gmz-labs/voicexp/internal/domain/presence"
	"github.com/gmz-labs/voicexp/internal/domain/record"
	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.LevelUpEvent
	err    error
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.(shared.LevelUpEvent))
	return nil
}

func TestAccrueXP_NewMemberAlwaysReachesLevelOne(t *testing.T) {
	store := record.NewEmptyStore()
	pub := &recordingPublisher{}
	h := NewAccrueXPHandler(store, pub, nil)

	res, err := h.Handle(context.Background(), AccrueXPCommand{TickID: "t1", MemberIDs: []string{"alice"}})
	require.NoError(t, err)

	require.Len(t, res.Increments, 1)
	assert.Equal(t, int64(0), res.Increments[0].OldXP)
	assert.Equal(t, int64(1), res.Increments[0].NewXP)
	assert.Equal(t, 1, res.Created)

	require.Len(t, res.LevelUps, 1)
	assert.Equal(t, LevelUp{MemberID: "alice", NewLevel: 1, XP: 1}, res.LevelUps[0])

	require.Len(t, pub.events, 1)
	assert.Equal(t, "alice", pub.events[0].MemberID)
	assert.Equal(t, 1, pub.events[0].NewLevel)
	assert.Equal(t, "t1", pub.events[0].CorrelationID)
}

func TestAccrueXP_EmitsOnLevelBoundaryOnly(t *testing.T) {
	store, err := record.NewStore([]record.Record{{MemberID: "bob", XP: 58}})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	h := NewAccrueXPHandler(store, pub, nil)

	// 58 -> 59: still level 0.
	res, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	assert.Empty(t, res.LevelUps)

	// 59 -> 60: level 1.
	res, err = h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	require.Len(t, res.LevelUps, 1)
	assert.Equal(t, leveling.XPToLevel(60), res.LevelUps[0].NewLevel)

	// 60 -> 61: nothing.
	res, err = h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"bob"}})
	require.NoError(t, err)
	assert.Empty(t, res.LevelUps)

	assert.Len(t, pub.events, 1)
}

func TestAccrueXP_ExactlyOneIncrementPerMemberPerTick(t *testing.T) {
	store := record.NewEmptyStore()
	h := NewAccrueXPHandler(store, nil, nil)

	res, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"a", "b", "a", "a"}})
	require.NoError(t, err)
	assert.Len(t, res.Increments, 2)

	a, _ := store.Get("a")
	b, _ := store.Get("b")
	assert.Equal(t, int64(1), a.XP)
	assert.Equal(t, int64(1), b.XP)
}

func TestAccrueXP_MutedMemberExcludedUpstream(t *testing.T) {
	store := record.NewEmptyStore()
	h := NewAccrueXPHandler(store, nil, nil)

	eligible := presence.EligibleMembers([]presence.VoiceState{
		{MemberID: "a", ChannelID: "general"},
		{MemberID: "b", ChannelID: "general", SelfMute: true},
		{MemberID: "c", ChannelID: "general"},
	})

	res, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: eligible})
	require.NoError(t, err)
	assert.Len(t, res.Increments, 2)

	_, ok := store.Get("b")
	assert.False(t, ok)
}

func TestAccrueXP_PublishFailureKeepsIncrement(t *testing.T) {
	store := record.NewEmptyStore()
	pub := &recordingPublisher{err: errors.New("bus closed")}
	h := NewAccrueXPHandler(store, pub, nil)

	res, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"carol"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PublishFailures)
	assert.Len(t, res.LevelUps, 1)

	r, ok := store.Get("carol")
	require.True(t, ok)
	assert.Equal(t, int64(1), r.XP)
}

func TestAccrueXP_RejectsEmptyMemberID(t *testing.T) {
	h := NewAccrueXPHandler(record.NewEmptyStore(), nil, nil)

	_, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: []string{"a", ""}})
	assert.Error(t, err)
}

func TestAccrueXP_XPNeverDecreasesAcrossTicks(t *testing.T) {
	store := record.NewEmptyStore()
	h := NewAccrueXPHandler(store, nil, nil)

	ticks := [][]string{{"a", "b"}, {"b"}, {}, {"a", "c"}, {"c", "b", "a"}}
	last := map[string]int64{}
	for _, members := range ticks {
		_, err := h.Handle(context.Background(), AccrueXPCommand{MemberIDs: members})
		require.NoError(t, err)
		for _, r := range store.Snapshot() {
			assert.GreaterOrEqual(t, r.XP, last[r.MemberID])
			last[r.MemberID] = r.XP
		}
	}
	assert.Equal(t, map[string]int64{"a": 3, "b": 3, "c": 2}, last)
}
