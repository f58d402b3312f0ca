package handler

import (
	"context"
	"fmt"

	"github.com/gmz-labs/voicexp/internal/application/query"
	api "github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// /top
// Shows the top of the server leaderboard.
// ══════════════════════════════════════════════════════════════════════════════

// NameResolver maps member IDs to display names. It always returns an entry
// per ID, falling back to a mention.
type NameResolver interface {
	DisplayNames(ctx context.Context, memberIDs []string) map[string]string
}

// TopHandler handles /top.
type TopHandler struct {
	board     *query.GetLeaderboardHandler
	names     NameResolver
	presenter *presenter.Presenter
	size      int
}

// NewTopHandler creates a handler showing the top size members.
func NewTopHandler(board *query.GetLeaderboardHandler, names NameResolver, p *presenter.Presenter, size int) *TopHandler {
	if size <= 0 {
		size = query.DefaultLeaderboardSize
	}
	return &TopHandler{board: board, names: names, presenter: p, size: size}
}

// Handle answers the interaction.
func (h *TopHandler) Handle(ctx context.Context, _ *api.Interaction) (*api.InteractionResponse, error) {
	result, err := h.board.Handle(ctx, query.GetLeaderboardQuery{Limit: h.size})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	ids := make([]string, len(result.Entries))
	for i, e := range result.Entries {
		ids[i] = e.MemberID
	}

	return api.ReplyEmbeds(h.presenter.TopEmbed(result, h.names.DisplayNames(ctx, ids), h.size)), nil
}
