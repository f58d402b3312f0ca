package query

import (
	"context"

	"github.com/gmz-labs/voicexp/internal/domain/record"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns the top of the XP ranking.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultLeaderboardSize is the size of the /top board.
	DefaultLeaderboardSize = 15

	// MaxLeaderboardSize bounds a single query.
	MaxLeaderboardSize = 100
)

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Limit is the number of entries; out-of-range values fall back to the
	// default or maximum.
	Limit int
}

func (q GetLeaderboardQuery) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLeaderboardSize
	case q.Limit > MaxLeaderboardSize:
		return MaxLeaderboardSize
	default:
		return q.Limit
	}
}

// LeaderboardEntryDTO is one line of the leaderboard.
type LeaderboardEntryDTO struct {
	// Rank is 1-based.
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
}

// LeaderboardDTO is the leaderboard page.
type LeaderboardDTO struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount is the number of ranked members.
	TotalCount int `json:"total_count"`
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	store *record.Store
}

// NewGetLeaderboardHandler creates a handler.
func NewGetLeaderboardHandler(store *record.Store) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{store: store}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := h.store.RankedDescending()
	total := len(ranked)
	if n := q.limit(); len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]LeaderboardEntryDTO, len(ranked))
	for i, r := range ranked {
		entries[i] = LeaderboardEntryDTO{
			Rank:     i + 1,
			MemberID: r.MemberID,
			XP:       r.XP,
			Level:    r.Level(),
		}
	}

	return &LeaderboardDTO{Entries: entries, TotalCount: total}, nil
}
