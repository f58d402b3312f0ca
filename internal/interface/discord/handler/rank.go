// Package handler contains the slash command handlers.
package handler

import (
	"context"
	"fmt"

	"github.com/gmz-labs/voicexp/internal/application/query"
	api "github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// /rank [user]
// Shows the standing of the invoker, or of the user given as argument.
// ══════════════════════════════════════════════════════════════════════════════

// RankOptionUser is the name of the optional user argument.
const RankOptionUser = "user"

// RankHandler handles /rank.
type RankHandler struct {
	ranks     *query.GetMemberRankHandler
	presenter *presenter.Presenter
}

// NewRankHandler creates a handler.
func NewRankHandler(ranks *query.GetMemberRankHandler, p *presenter.Presenter) *RankHandler {
	return &RankHandler{ranks: ranks, presenter: p}
}

// Handle answers the interaction.
func (h *RankHandler) Handle(ctx context.Context, i *api.Interaction) (*api.InteractionResponse, error) {
	target, ok := i.OptionUser(RankOptionUser)
	if !ok {
		target = i.Invoker()
	}
	if target == nil || target.ID == "" {
		return api.ReplyEphemeral("Impossible de déterminer l'utilisateur."), nil
	}

	summary, err := h.ranks.Handle(ctx, query.GetMemberRankQuery{MemberID: target.ID})
	if err != nil {
		return nil, fmt.Errorf("rank of %s: %w", target.ID, err)
	}

	return api.ReplyEmbeds(h.presenter.RankEmbed(target, summary)), nil
}
