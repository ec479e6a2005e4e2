package handlers

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
)

// HandleRepostCommand handles the /repost command group. Currently the only
// subcommand is `config six-month`, which toggles whether the invoking
// author's reposts of links older than the default window are still deleted.
func HandleRepostCommand(s *discordgo.Session, i *discordgo.InteractionCreate, store *database.Store) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 || data.Options[0].Name != "config" {
		return
	}
	group := data.Options[0]
	if len(group.Options) == 0 || group.Options[0].Name != "six-month" {
		return
	}

	var flag bool
	for _, opt := range group.Options[0].Options {
		if opt.Name == "delete" {
			flag = opt.BoolValue()
		}
	}

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if userID == "" {
		return
	}

	var reply string
	if err := store.SetAuthorPolicy(userID, flag); err != nil {
		log.Printf("Error updating policy for %s: %v", userID, err)
		reply = "Error: could not update your configuration."
	} else if flag {
		reply = "Your reposts of 6+ month old links will now be deleted too."
	} else {
		reply = "Your reposts of 6+ month old links will be left alone."
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to /repost config for %s: %v", userID, err)
	}
}
