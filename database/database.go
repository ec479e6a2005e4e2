package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens (creating if necessary) the SQLite database at dbPath and
// ensures the schema exists.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

// createTables creates the posts, links and author_policies tables if they
// don't exist.
func createTables(db *sql.DB) error {
	// Snowflakes and canonical link ids are stored as TEXT: they can exceed
	// the signed 64-bit range and are ordered by (length, lexicographic)
	// where needed.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS posts (
            id TEXT PRIMARY KEY,
            channel_id TEXT NOT NULL,
            guild_id TEXT NOT NULL DEFAULT '',
            author_id TEXT NOT NULL,
            content TEXT NOT NULL,
            attachment_count INTEGER NOT NULL DEFAULT 0,
            created_at INTEGER NOT NULL,
            edited_at INTEGER NOT NULL DEFAULT 0,
            sync_fence INTEGER NOT NULL DEFAULT 0
        );`,
		// (post, reference) primary key: identical references within one
		// post merge into a single row.
		`CREATE TABLE IF NOT EXISTS links (
            post_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            link_id TEXT NOT NULL,
            sub_index INTEGER NOT NULL DEFAULT 0,
            channel_id TEXT NOT NULL,
            occurred_at INTEGER NOT NULL,
            PRIMARY KEY (post_id, kind, link_id, sub_index)
        );`,
		`CREATE TABLE IF NOT EXISTS author_policies (
            author_id TEXT PRIMARY KEY,
            flag_old_reposts INTEGER NOT NULL DEFAULT 0
        );`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	// Indexes for the max(id)-per-channel and repost lookups.
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_posts_channel_id ON posts(channel_id, id);",
		"CREATE INDEX IF NOT EXISTS idx_links_occurrence ON links(kind, link_id, sub_index, channel_id, occurred_at);",
	}
	for _, indexQuery := range indexes {
		if _, err := db.Exec(indexQuery); err != nil {
			log.Printf("Warning: failed to create index: %v", err)
		}
	}

	return nil
}
