// Package presence models who is sitting in which voice channel and decides
// which members are eligible to earn XP on a given tick.
package presence

import (
	"context"
	"sort"
	"time"
)

// VoiceState is the voice presence of one guild member, as reported by the
// chat platform gateway.
type VoiceState struct {
	MemberID  string    `json:"member_id"`
	ChannelID string    `json:"channel_id"`
	Bot       bool      `json:"bot"`
	Mute      bool      `json:"mute"`
	Deaf      bool      `json:"deaf"`
	SelfMute  bool      `json:"self_mute"`
	SelfDeaf  bool      `json:"self_deaf"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Muted reports whether the member is muted, by a moderator or by themself.
func (v VoiceState) Muted() bool {
	return v.Mute || v.SelfMute
}

// Deafened reports whether the member is deafened, by a moderator or by themself.
func (v VoiceState) Deafened() bool {
	return v.Deaf || v.SelfDeaf
}

// Connected reports whether the member currently sits in a voice channel.
func (v VoiceState) Connected() bool {
	return v.ChannelID != "" && v.MemberID != ""
}

// Earning reports whether the member itself qualifies, ignoring occupancy.
func (v VoiceState) Earning() bool {
	return v.Connected() && !v.Bot && !v.Muted() && !v.Deafened()
}

// EligibleMembers filters one guild's voice states down to the members that
// earn XP this tick: humans, neither muted nor deafened, sitting in a channel
// with more than one occupant. Occupancy counts everyone in the channel,
// bots and muted members included.
//
// The result is sorted and free of duplicates.
func EligibleMembers(states []VoiceState) []string {
	occupants := make(map[string]map[string]struct{})
	for _, s := range states {
		if !s.Connected() {
			continue
		}
		if occupants[s.ChannelID] == nil {
			occupants[s.ChannelID] = make(map[string]struct{})
		}
		occupants[s.ChannelID][s.MemberID] = struct{}{}
	}

	seen := make(map[string]struct{})
	eligible := make([]string, 0, len(states))
	for _, s := range states {
		if !s.Earning() || len(occupants[s.ChannelID]) <= 1 {
			continue
		}
		if _, dup := seen[s.MemberID]; dup {
			continue
		}
		seen[s.MemberID] = struct{}{}
		eligible = append(eligible, s.MemberID)
	}

	sort.Strings(eligible)
	return eligible
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// StateReader returns the current voice states of the tracked guild.
// It returns shared.ErrGuildUnavailable when the guild context cannot be found.
type StateReader interface {
	VoiceStates(ctx context.Context) ([]VoiceState, error)
}

// Source supplies, once per tick, the members eligible for XP.
type Source interface {
	EligibleMembers(ctx context.Context) ([]string, error)
}

// Scanner is the Source built on top of a StateReader.
type Scanner struct {
	reader StateReader
}

// NewScanner creates a Scanner.
func NewScanner(reader StateReader) *Scanner {
	return &Scanner{reader: reader}
}

// EligibleMembers implements Source.
func (s *Scanner) EligibleMembers(ctx context.Context) ([]string, error) {
	states, err := s.reader.VoiceStates(ctx)
	if err != nil {
		return nil, err
	}
	return EligibleMembers(states), nil
}
