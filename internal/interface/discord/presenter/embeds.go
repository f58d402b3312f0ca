// Package presenter turns query results into Discord embeds.
package presenter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gmz-labs/voicexp/internal/application/query"
	api "github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// EmbedColor is the accent colour of every embed.
	EmbedColor = 0x206694

	// DefaultFooter signs every embed.
	DefaultFooter = "Bot réalisé par g.mz !"

	// ProgressBarCells is the width of the progress bar; cells fill two at a
	// time, one pair per 10 %.
	ProgressBarCells = 20

	barFull  = "█"
	barEmpty = "░"
)

var medals = []string{"🥇", "🥈", "🥉"}

// Presenter builds embeds.
type Presenter struct {
	footer string
}

// New creates a Presenter. An empty footer uses DefaultFooter.
func New(footer string) *Presenter {
	if footer == "" {
		footer = DefaultFooter
	}
	return &Presenter{footer: footer}
}

// ══════════════════════════════════════════════════════════════════════════════
// /rank
// ══════════════════════════════════════════════════════════════════════════════

// RankEmbed renders a member's standing.
func (p *Presenter) RankEmbed(user *api.User, s *query.RankSummaryDTO) api.Embed {
	embed := api.Embed{
		Title: "Rang de " + displayName(user),
		Color: EmbedColor,
		Fields: []api.EmbedField{
			{Name: "Rang", Value: RankString(s)},
			{Name: "Niveau", Value: strconv.Itoa(s.Level)},
			{Name: "Progression", Value: fmt.Sprintf("%s (%dh restantes)", ProgressBar(s.Progress), s.HoursToNextLevel)},
		},
		Footer: &api.EmbedFooter{Text: p.footer},
	}
	if url := user.AvatarURL(); url != "" {
		embed.Thumbnail = &api.EmbedImage{URL: url}
	}
	return embed
}

// RankString is "n/total", or "Non classé" for a member without XP.
func RankString(s *query.RankSummaryDTO) string {
	if !s.Ranked {
		return "Non classé"
	}
	return fmt.Sprintf("%d/%d", s.Rank, s.Total)
}

// ProgressBar draws fraction (clamped to [0,1]) on ProgressBarCells cells.
func ProgressBar(fraction float64) string {
	fraction = math.Max(0, math.Min(1, fraction))
	tenths := int(math.Round(fraction * 10))
	full := 2 * tenths
	return strings.Repeat(barFull, full) + strings.Repeat(barEmpty, ProgressBarCells-full)
}

func displayName(u *api.User) string {
	if name := u.DisplayName(); name != "" {
		return name
	}
	return "<@" + u.ID + ">"
}

// ══════════════════════════════════════════════════════════════════════════════
// /top
// ══════════════════════════════════════════════════════════════════════════════

// TopEmbed renders the leaderboard, one member per line, with medals for
// the podium. names maps member IDs to display names.
func (p *Presenter) TopEmbed(board *query.LeaderboardDTO, names map[string]string, size int) api.Embed {
	var sb strings.Builder
	for i, e := range board.Entries {
		if i < len(medals) {
			sb.WriteString(medals[i])
		}
		name, ok := names[e.MemberID]
		if !ok {
			name = "<@" + e.MemberID + ">"
		}
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}

	value := sb.String()
	if value == "" {
		value = "Personne n'est encore classé."
	}

	return api.Embed{
		Title:  "Classement du serveur",
		Color:  EmbedColor,
		Fields: []api.EmbedField{{Name: fmt.Sprintf("Top %d:", size), Value: value}},
		Footer: &api.EmbedFooter{Text: p.footer},
	}
}
