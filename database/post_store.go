package database

import (
	"database/sql"
	"fmt"

	"repost-bot/models"
)

// Store is the CRUD and query facade over the posts and links tables.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record pairs a post with its derived links for batch operations.
type Record struct {
	Post  models.Post
	Links []models.Link
}

const postColumns = "id, channel_id, guild_id, author_id, content, attachment_count, created_at, edited_at, sync_fence"

// InsertPost stores a post and its links in one transaction. Inserting an id
// that already exists is a no-op, so duplicate event delivery is harmless.
func (s *Store) InsertPost(post models.Post, postLinks []models.Link) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.ChannelID, post.GuildID, post.AuthorID, post.Content,
		post.AttachmentCount, post.CreatedAt, post.EditedAt, post.SyncFence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post %s: %w", post.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already present: keep the existing row and its links.
		return nil
	}
	if err := insertLinks(tx, postLinks); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplacePost overwrites a post's mutable fields and rebuilds its links in
// one transaction.
func (s *Store) ReplacePost(post models.Post, postLinks []models.Link) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE posts SET content = ?, attachment_count = ?, edited_at = ?, sync_fence = ? WHERE id = ?`,
		post.Content, post.AttachmentCount, post.EditedAt, post.SyncFence, post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post %s: %w", post.ID, err)
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE post_id = ?`, post.ID); err != nil {
		return fmt.Errorf("failed to clear links for post %s: %w", post.ID, err)
	}
	if err := insertLinks(tx, postLinks); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePost removes a post and its links. Deleting an absent id is a no-op.
func (s *Store) DeletePost(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM links WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete links for post %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return tx.Commit()
}

// GetPost fetches one post by id, returning nil when absent.
func (s *Store) GetPost(id string) (*models.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// HasPost reports whether a row exists for id.
func (s *Store) HasPost(id string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count post %s: %w", id, err)
	}
	return count > 0, nil
}

// LastPostID returns the highest post id stored for a channel, or "0" when
// the channel has no rows. Snowflakes are TEXT, so "highest" orders by
// length first.
func (s *Store) LastPostID(channelID string) (string, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM posts WHERE channel_id = ? ORDER BY length(id) DESC, id DESC LIMIT 1`,
		channelID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last post id for channel %s: %w", channelID, err)
	}
	return id, nil
}

// LastOccurrence finds the most recent other post in the link's channel that
// produced the same reference strictly before the given instant. Returns nil
// when no prior occurrence exists.
func (s *Store) LastOccurrence(link models.Link, excludePostID string, before int64) (*models.Post, error) {
	row := s.db.QueryRow(
		`SELECT p.id, p.channel_id, p.guild_id, p.author_id, p.content, p.attachment_count, p.created_at, p.edited_at, p.sync_fence
         FROM links l JOIN posts p ON p.id = l.post_id
         WHERE l.kind = ? AND l.link_id = ? AND l.sub_index = ? AND l.channel_id = ?
           AND l.post_id != ? AND l.occurred_at < ?
         ORDER BY l.occurred_at DESC, length(l.post_id) DESC, l.post_id DESC
         LIMIT 1`,
		link.Kind, link.LinkID, link.SubIndex, link.ChannelID, excludePostID, before,
	)
	return scanPost(row)
}

// CommitBackfill replaces any stale rows sharing the staged ids and inserts
// the staged batch, all in one transaction. A full-history entry is treated
// as more authoritative than whatever a previous partial run left behind.
func (s *Store) CommitBackfill(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin backfill transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if _, err := tx.Exec(`DELETE FROM links WHERE post_id = ?`, rec.Post.ID); err != nil {
			return fmt.Errorf("failed to clear stale links for post %s: %w", rec.Post.ID, err)
		}
		if _, err := tx.Exec(`DELETE FROM posts WHERE id = ?`, rec.Post.ID); err != nil {
			return fmt.Errorf("failed to clear stale post %s: %w", rec.Post.ID, err)
		}
		_, err := tx.Exec(
			`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Post.ID, rec.Post.ChannelID, rec.Post.GuildID, rec.Post.AuthorID, rec.Post.Content,
			rec.Post.AttachmentCount, rec.Post.CreatedAt, rec.Post.EditedAt, rec.Post.SyncFence,
		)
		if err != nil {
			return fmt.Errorf("failed to insert backfilled post %s: %w", rec.Post.ID, err)
		}
		if err := insertLinks(tx, rec.Links); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MaxSyncFence returns the highest fence ever written, zero for an empty
// table. Fences persist across runs, so a new process seeds its epoch counter
// past this value rather than starting over and colliding with them.
func (s *Store) MaxSyncFence() (int64, error) {
	var fence sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(sync_fence) FROM posts`).Scan(&fence); err != nil {
		return 0, fmt.Errorf("failed to query max sync fence: %w", err)
	}
	return fence.Int64, nil
}

// SetSyncFence records which detection epoch last refreshed a post.
func (s *Store) SetSyncFence(id string, epoch int64) error {
	if _, err := s.db.Exec(`UPDATE posts SET sync_fence = ? WHERE id = ?`, epoch, id); err != nil {
		return fmt.Errorf("failed to set sync fence for post %s: %w", id, err)
	}
	return nil
}

func insertLinks(tx *sql.Tx, postLinks []models.Link) error {
	for _, l := range postLinks {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO links (post_id, kind, link_id, sub_index, channel_id, occurred_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			l.PostID, l.Kind, l.LinkID, l.SubIndex, l.ChannelID, l.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert link %s/%s for post %s: %w", l.Kind, l.LinkID, l.PostID, err)
		}
	}
	return nil
}

func scanPost(row *sql.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID, &p.ChannelID, &p.GuildID, &p.AuthorID, &p.Content,
		&p.AttachmentCount, &p.CreatedAt, &p.EditedAt, &p.SyncFence,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	return &p, nil
}
