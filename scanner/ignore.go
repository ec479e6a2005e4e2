package scanner

import (
	"github.com/bwmarrin/discordgo"
)

// Ignore returns the predicate deciding which messages are outside this
// bot's scope: other channels, message types that are not ordinary posts or
// replies, and the bot's own messages.
func Ignore(channelID, selfID string) func(*discordgo.Message) bool {
	return func(m *discordgo.Message) bool {
		if m.ChannelID != channelID {
			return true
		}
		if m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply {
			return true
		}
		if m.Author != nil && m.Author.ID == selfID {
			return true
		}
		return false
	}
}
