package handlers

import (
	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
)

// InteractionCreate handles slash command interactions.
func InteractionCreate(store *database.Store) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		if i.ApplicationCommandData().Name == "repost" {
			HandleRepostCommand(s, i, store)
		}
	}
}
