package models

import (
	"github.com/bwmarrin/discordgo"
)

// LinkKind identifies which website a normalized link points at.
type LinkKind string

const (
	LinkTwitter LinkKind = "twitter"
	LinkPixiv   LinkKind = "pixiv"
)

// Post represents one mirrored Discord message.
// IDs are Discord snowflakes kept as strings; they exceed the signed 64-bit
// range in Discord's encoding and must be compared with utils.CompareBigints,
// never by native integer parsing.
type Post struct {
	ID              string `db:"id"`
	ChannelID       string `db:"channel_id"`
	GuildID         string `db:"guild_id"` // empty for DMs
	AuthorID        string `db:"author_id"`
	Content         string `db:"content"`
	AttachmentCount int    `db:"attachment_count"`
	CreatedAt       int64  `db:"created_at"` // unix milliseconds
	EditedAt        int64  `db:"edited_at"`  // unix milliseconds, 0 when never edited
	SyncFence       int64  `db:"sync_fence"` // detection epoch that last refreshed this row
}

// UpdatedAt returns the edit timestamp when present, falling back to the
// creation timestamp. Repost precedence orders by this value.
func (p *Post) UpdatedAt() int64 {
	if p.EditedAt != 0 {
		return p.EditedAt
	}
	return p.CreatedAt
}

// Link is a normalized website reference extracted from a post's content.
// ChannelID and OccurredAt are denormalized from the owning post so the
// repost query can run against the links table alone.
type Link struct {
	PostID     string   `db:"post_id"`
	Kind       LinkKind `db:"kind"`
	LinkID     string   `db:"link_id"` // canonical id, big-int string
	SubIndex   int      `db:"sub_index"`
	ChannelID  string   `db:"channel_id"`
	OccurredAt int64    `db:"occurred_at"`
}

// AuthorPolicy is a per-author override of the enforcement rules. Absence of
// a row means the defaults apply.
type AuthorPolicy struct {
	AuthorID       string `db:"author_id"`
	FlagOldReposts bool   `db:"flag_old_reposts"` // also flag reposts older than the default window
}

// NewPostFromMessage converts a fully populated Discord message into a Post.
func NewPostFromMessage(m *discordgo.Message) Post {
	post := Post{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		GuildID:         m.GuildID,
		Content:         m.Content,
		AttachmentCount: len(m.Attachments),
		CreatedAt:       m.Timestamp.UnixMilli(),
	}
	if m.Author != nil {
		post.AuthorID = m.Author.ID
	}
	if m.EditedTimestamp != nil {
		post.EditedAt = m.EditedTimestamp.UnixMilli()
	}
	return post
}
