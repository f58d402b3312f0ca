// Package messaging implements the in-process event bus that carries level-up
// events from the accrual engine to their handlers.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// HandlerObserver receives handler outcomes, e.g. to feed Prometheus.
// Recovered panics arrive as errors wrapping ErrHandlerPanic.
type HandlerObserver func(eventType shared.EventType, duration time.Duration, err error)

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode makes Publish return before handlers run.
	AsyncMode bool

	// WorkerPoolSize bounds concurrently running async handlers (default: 4).
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// Observer, when set, is told about every handler execution.
	Observer HandlerObserver
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4}
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is an in-memory implementation of shared.EventBus.
// Handlers never take the publisher down: panics are recovered, errors are
// logged and reported to the observer.
type InMemoryEventBus struct {
	logger   *slog.Logger
	observe  HandlerObserver
	async    bool
	slots    chan struct{}
	pending  sync.WaitGroup
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	closed   bool
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 4
	}
	return &InMemoryEventBus{
		logger:   config.Logger.With("component", "event_bus"),
		observe:  config.Observer,
		async:    config.AsyncMode,
		slots:    make(chan struct{}, config.WorkerPoolSize),
		handlers: make(map[shared.EventType][]shared.EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// Publish delivers an event to every handler subscribed to its type. Handler
// failures are not returned; only a nil event or a closed bus is an error.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := append([]shared.EventHandler(nil), b.handlers[event.EventType()]...)
	if b.async {
		// Counted under the read lock so Close cannot miss them.
		b.pending.Add(len(handlers))
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if !b.async {
			b.deliver(event, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.pending.Done()
			b.slots <- struct{}{}
			defer func() { <-b.slots }()
			b.deliver(event, h)
		}(h)
	}
	return nil
}

// deliver runs one handler with panic recovery and reports the outcome.
func (b *InMemoryEventBus) deliver(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := b.invoke(event, h)
	if b.observe != nil {
		b.observe(event.EventType(), time.Since(start), err)
	}
	if err != nil {
		b.logger.Error("handler error", "event_type", event.EventType(), "aggregate_id", event.AggregateID(), "error", err)
	}
}

func (b *InMemoryEventBus) invoke(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Close stops accepting events and waits for scheduled handlers to finish.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.pending.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)
