package repost

import (
	"github.com/bwmarrin/discordgo"
)

// Platform is the slice of the Discord REST surface the detection and
// enforcement paths touch. *discordgo.Session satisfies it.
type Platform interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// IsNotFound reports whether err is Discord's "no longer exists" answer to a
// fetch or delete. Treated as a benign terminal state, never as a failure.
func IsNotFound(err error) bool {
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		return restErr.Response.StatusCode == 404
	}
	return false
}

// IsMissingPermission reports whether err means the bot lacks permission for
// the attempted action.
func IsMissingPermission(err error) bool {
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		return restErr.Response.StatusCode == 403
	}
	return false
}
