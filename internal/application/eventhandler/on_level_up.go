// Package eventhandler contains domain event handlers. They are the reactive
// side of the system: they run side effects such as announcements and never
// feed back into the record set.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Announces level-ups. Delivery is best effort: a failed announcement is
// logged and dropped; the XP that caused it is already stored.
// ═══════════════════════════════════════════════════════════════════════════

// Announcer delivers a level-up announcement to the community.
type Announcer interface {
	Announce(ctx context.Context, memberID string, newLevel int) error
}

// LevelUpConfig contains the handler configuration.
type LevelUpConfig struct {
	// Timeout bounds a single announcement.
	Timeout time.Duration
}

// DefaultLevelUpConfig returns the default configuration.
func DefaultLevelUpConfig() LevelUpConfig {
	return LevelUpConfig{Timeout: 10 * time.Second}
}

// OnLevelUpHandler handles shared.LevelUpEvent.
type OnLevelUpHandler struct {
	announcer Announcer
	logger    *slog.Logger
	config    LevelUpConfig
}

// NewOnLevelUpHandler creates a new handler.
func NewOnLevelUpHandler(announcer Announcer, logger *slog.Logger, config LevelUpConfig) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultLevelUpConfig().Timeout
	}
	return &OnLevelUpHandler{
		announcer: announcer,
		logger:    logger.With("handler", "on_level_up"),
		config:    config,
	}
}

// Handle implements shared.EventHandler. It never returns an error for a
// failed delivery, so the bus does not treat announcements as retryable.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelUp, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.announcer.Announce(ctx, levelUp.MemberID, levelUp.NewLevel); err != nil {
		h.logger.Warn("level-up announcement dropped",
			"member_id", levelUp.MemberID,
			"new_level", levelUp.NewLevel,
			"correlation_id", levelUp.CorrelationID,
			"error", err,
		)
		return nil
	}

	h.logger.Info("level-up announced",
		"member_id", levelUp.MemberID,
		"new_level", levelUp.NewLevel,
	)
	return nil
}
