package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	mu   sync.Mutex
	errs []error
}

func (o *observed) observe(_ shared.EventType, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *observed) all() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	var obs observed
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs.observe})
	defer bus.Close()

	var got []shared.LevelUpEvent
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		got = append(got, e.(shared.LevelUpEvent))
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("alice", 2, 400)))

	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].MemberID)
	assert.Equal(t, 2, got[0].NewLevel)
	assert.Equal(t, []error{nil}, obs.all())
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	var obs observed
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Observer: obs.observe})

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewLevelUpEvent("m", 1, 1)))
	}
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(10), handled.Load())
	assert.Len(t, obs.all(), 10)
	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("m", 1, 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_HandlerFailuresStayInside(t *testing.T) {
	var obs observed
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs.observe})
	defer bus.Close()

	var after atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		panic("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		return errors.New("channel gone")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		after.Add(1)
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewLevelUpEvent("m", 1, 1)))

	errs := obs.all()
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], ErrHandlerPanic)
	assert.EqualError(t, errs[1], "channel gone")
	assert.NoError(t, errs[2])
	assert.Equal(t, int32(1), after.Load())
}

func TestInMemoryEventBus_NoHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	assert.NoError(t, bus.Publish(shared.NewLevelUpEvent("m", 1, 1)))
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
}
