package repost

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
	"repost-bot/models"
	"repost-bot/utils"
)

// fallbackNoticeTTL is how long the in-channel fallback notice survives when
// the author cannot receive DMs.
const fallbackNoticeTTL = 30 * time.Second

// Enforcer applies the repost policy: remove the offending post and tell its
// author why.
type Enforcer struct {
	store     *database.Store
	platform  Platform
	noticeTTL time.Duration
}

// NewEnforcer builds an enforcer over the store and platform.
func NewEnforcer(store *database.Store, platform Platform) *Enforcer {
	return &Enforcer{store: store, platform: platform, noticeTTL: fallbackNoticeTTL}
}

// Enforce removes the store row for the post, then deletes the Discord
// message and notifies the author on a separate goroutine. The store removal
// runs first so a later detection pass cannot pick the post up as its own
// prior candidate; the platform actions are fire-and-forget because they
// matter only for user-facing effect, not store consistency.
func (e *Enforcer) Enforce(post models.Post, violations []Violation) error {
	if err := e.store.DeletePost(post.ID); err != nil {
		return fmt.Errorf("failed to remove enforced post %s: %w", post.ID, err)
	}
	go e.applyPlatformActions(post, violations)
	return nil
}

func (e *Enforcer) applyPlatformActions(post models.Post, violations []Violation) {
	deleteFailed := false
	err := e.platform.ChannelMessageDelete(post.ChannelID, post.ID)
	switch {
	case err == nil, IsNotFound(err):
	case IsMissingPermission(err):
		// Nothing further to do; the notice asks the author instead.
		log.Printf("repost: lacking permission to delete post %s", post.ID)
		deleteFailed = true
	default:
		log.Printf("repost: failed to delete post %s: %v", post.ID, err)
		deleteFailed = true
	}

	e.notifyAuthor(post, violations, deleteFailed)
	utils.Info("repost", "Enforce",
		fmt.Sprintf("Post %s by %s removed (%d prior occurrence(s))", post.ID, post.AuthorID, len(violations)))
}

// notifyAuthor DMs the author a notice listing each violation; when the DM
// fails (DMs disabled is routine) it falls back to a short-lived in-channel
// message addressed to them.
func (e *Enforcer) notifyAuthor(post models.Post, violations []Violation, deleteFailed bool) {
	notice := buildNotice(post, violations, deleteFailed)

	dm, err := e.platform.UserChannelCreate(post.AuthorID)
	if err == nil {
		if _, err = e.platform.ChannelMessageSendEmbed(dm.ID, notice); err == nil {
			return
		}
	}
	log.Printf("repost: DM to %s failed (%v), falling back to channel notice", post.AuthorID, err)

	content := fmt.Sprintf("<@%s> %s", post.AuthorID, noticeText(post, violations, deleteFailed))
	msg, err := e.platform.ChannelMessageSend(post.ChannelID, content)
	if err != nil {
		log.Printf("repost: fallback notice for %s failed: %v", post.AuthorID, err)
		return
	}
	time.AfterFunc(e.noticeTTL, func() {
		if err := e.platform.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil && !IsNotFound(err) {
			log.Printf("repost: failed to delete fallback notice %s: %v", msg.ID, err)
		}
	})
}

func buildNotice(post models.Post, violations []Violation, deleteFailed bool) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Repost removed",
		Color:       utils.ColorWarn,
		Description: noticeText(post, violations, deleteFailed),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func noticeText(post models.Post, violations []Violation, deleteFailed bool) string {
	var b strings.Builder
	if len(violations) > 0 {
		b.WriteString("Your post repeated a link that was already posted here:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s posted by <@%s> at <t:%d:f> (%s)\n",
				linkLabel(v.Link), v.Prior.AuthorID, v.Prior.UpdatedAt()/1000, messageURL(v.Prior))
		}
	} else {
		b.WriteString("Your post carried neither a link nor an attachment.\n")
	}
	if deleteFailed {
		b.WriteString("I could not delete the post myself, please delete it.")
	}
	return strings.TrimSpace(b.String())
}

func linkLabel(l models.Link) string {
	switch l.Kind {
	case models.LinkTwitter:
		return fmt.Sprintf("https://twitter.com/i/web/status/%s", l.LinkID)
	case models.LinkPixiv:
		if l.SubIndex > 0 {
			return fmt.Sprintf("https://www.pixiv.net/artworks/%s/%d", l.LinkID, l.SubIndex+1)
		}
		return fmt.Sprintf("https://www.pixiv.net/artworks/%s", l.LinkID)
	default:
		return string(l.Kind) + ":" + l.LinkID
	}
}

func messageURL(p models.Post) string {
	guild := p.GuildID
	if guild == "" {
		guild = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guild, p.ChannelID, p.ID)
}
