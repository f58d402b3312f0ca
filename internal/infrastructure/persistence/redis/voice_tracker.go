package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gmz-labs/voicexp/internal/domain/presence"
	"github.com/gmz-labs/voicexp/internal/domain/shared"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// VOICE TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// TTLGuildHeartbeat is how long a guild stays available without a refresh
// from the gateway relay.
const TTLGuildHeartbeat = 3 * time.Minute

// VoiceTracker keeps the voice states of one guild in Redis.
//
// Layout:
//   - "voice:{guild}:states" is a hash member_id -> JSON VoiceState
//   - "voice:{guild}:heartbeat" is set with a TTL while the relay sees the
//     guild; without it the guild is unavailable and ticks are skipped
type VoiceTracker struct {
	client       *redis.Client
	guildID      string
	heartbeatTTL time.Duration
}

// NewVoiceTracker creates a tracker for guildID. A non-positive heartbeatTTL
// falls back to TTLGuildHeartbeat.
func NewVoiceTracker(client *redis.Client, guildID string, heartbeatTTL time.Duration) *VoiceTracker {
	if heartbeatTTL <= 0 {
		heartbeatTTL = TTLGuildHeartbeat
	}
	return &VoiceTracker{client: client, guildID: guildID, heartbeatTTL: heartbeatTTL}
}

// StatesKey returns the hash key holding a guild's voice states.
func StatesKey(guildID string) string {
	return "voice:" + guildID + ":states"
}

// HeartbeatKey returns the key marking a guild as available.
func HeartbeatKey(guildID string) string {
	return "voice:" + guildID + ":heartbeat"
}

// VoiceStates implements presence.StateReader.
func (t *VoiceTracker) VoiceStates(ctx context.Context) ([]presence.VoiceState, error) {
	pipe := t.client.Pipeline()
	heartbeat := pipe.Exists(ctx, HeartbeatKey(t.guildID))
	states := pipe.HGetAll(ctx, StatesKey(t.guildID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read voice states: %w", err)
	}

	if heartbeat.Val() == 0 {
		return nil, fmt.Errorf("guild %s: %w", t.guildID, shared.ErrGuildUnavailable)
	}

	return decodeStates(states.Val())
}

// ReplaceVoiceStates swaps in a full snapshot of the guild's voice states and
// refreshes the heartbeat, atomically.
func (t *VoiceTracker) ReplaceVoiceStates(ctx context.Context, states []presence.VoiceState) error {
	fields := make([]interface{}, 0, 2*len(states))
	now := time.Now().UTC()
	for _, s := range states {
		if s.MemberID == "" {
			return ErrMemberIDEmpty
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		fields = append(fields, s.MemberID, data)
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, StatesKey(t.guildID))
		if len(fields) > 0 {
			pipe.HSet(ctx, StatesKey(t.guildID), fields...)
		}
		pipe.Set(ctx, HeartbeatKey(t.guildID), now.Format(time.RFC3339), t.heartbeatTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace voice states: %w", err)
	}
	return nil
}

// UpsertVoiceState records one member's voice state and refreshes the
// heartbeat. A state without a channel removes the member.
func (t *VoiceTracker) UpsertVoiceState(ctx context.Context, state presence.VoiceState) error {
	if state.MemberID == "" {
		return ErrMemberIDEmpty
	}
	if state.ChannelID == "" {
		return t.RemoveVoiceState(ctx, state.MemberID)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, StatesKey(t.guildID), state.MemberID, data)
	pipe.Set(ctx, HeartbeatKey(t.guildID), state.UpdatedAt.Format(time.RFC3339), t.heartbeatTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert voice state: %w", err)
	}
	return nil
}

// RemoveVoiceState forgets a member that left voice.
func (t *VoiceTracker) RemoveVoiceState(ctx context.Context, memberID string) error {
	if memberID == "" {
		return ErrMemberIDEmpty
	}
	if err := t.client.HDel(ctx, StatesKey(t.guildID), memberID).Err(); err != nil {
		return fmt.Errorf("remove voice state: %w", err)
	}
	return nil
}

// MarkAvailable refreshes the guild heartbeat without touching states.
func (t *VoiceTracker) MarkAvailable(ctx context.Context) error {
	if err := t.client.Set(ctx, HeartbeatKey(t.guildID), time.Now().UTC().Format(time.RFC3339), t.heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("mark guild available: %w", err)
	}
	return nil
}

// Ping checks that Redis answers.
func (t *VoiceTracker) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// decodeStates turns a states hash into voice states, sorted by member ID.
// An undecodable entry fails the whole read so a corrupt feed never grants
// XP to a partial set.
func decodeStates(raw map[string]string) ([]presence.VoiceState, error) {
	states := make([]presence.VoiceState, 0, len(raw))
	for memberID, val := range raw {
		var s presence.VoiceState
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			return nil, fmt.Errorf("%w: member %s: %v", ErrSerialization, memberID, err)
		}
		if s.MemberID == "" {
			s.MemberID = memberID
		}
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].MemberID < states[j].MemberID })
	return states, nil
}
