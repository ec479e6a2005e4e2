package command

import "github.com/bwmarrin/discordgo"

// RepostCommand defines the structure for the /repost command.
type RepostCommand struct{}

// Definition returns the application command definition.
func (c *RepostCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "repost",
		Description: "Interact with the repost watcher",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "config",
				Description: "Configure how your messages are handled",
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "six-month",
						Description: "Configure whether reposts of 6+ month old links are deleted",
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Options: []*discordgo.ApplicationCommandOption{
							{
								Name:        "delete",
								Description: "Whether reposts of 6+ month old links are deleted",
								Type:        discordgo.ApplicationCommandOptionBoolean,
								Required:    true,
							},
						},
					},
				},
			},
		},
	}
}
