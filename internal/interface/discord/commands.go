package discord

import (
	api "github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/interface/discord/handler"
)

// Command names.
const (
	CommandRank = "rank"
	CommandTop  = "top"
)

// Commands returns the slash command definitions registered at startup.
func Commands() []api.ApplicationCommand {
	return []api.ApplicationCommand{
		{
			Type:        api.CommandTypeChatInput,
			Name:        CommandRank,
			Description: "Consulter votre classement (ou celui d'un autre utilisateur).",
			Options: []api.CommandOption{{
				Type:        api.OptionTypeUser,
				Name:        handler.RankOptionUser,
				Description: "L'utilisateur dont le classement doit être consulté (défaut: vous-même).",
			}},
		},
		{
			Type:        api.CommandTypeChatInput,
			Name:        CommandTop,
			Description: "Consulter le classement du serveur.",
		},
	}
}
