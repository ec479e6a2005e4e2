package database

import (
	"database/sql"
	"fmt"

	"repost-bot/models"
)

// GetAuthorPolicy fetches the per-author policy override, returning nil when
// the author has never configured one (the defaults apply).
func (s *Store) GetAuthorPolicy(authorID string) (*models.AuthorPolicy, error) {
	var p models.AuthorPolicy
	var flag int
	err := s.db.QueryRow(
		`SELECT author_id, flag_old_reposts FROM author_policies WHERE author_id = ?`,
		authorID,
	).Scan(&p.AuthorID, &flag)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query policy for author %s: %w", authorID, err)
	}
	p.FlagOldReposts = flag != 0
	return &p, nil
}

// SetAuthorPolicy creates or updates the per-author policy override.
func (s *Store) SetAuthorPolicy(authorID string, flagOldReposts bool) error {
	flag := 0
	if flagOldReposts {
		flag = 1
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO author_policies (author_id, flag_old_reposts) VALUES (?, ?)`,
		authorID, flag,
	)
	if err != nil {
		return fmt.Errorf("failed to set policy for author %s: %w", authorID, err)
	}
	return nil
}
