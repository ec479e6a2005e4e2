// Package scanner reconciles full channel history against the store: once at
// startup before live events are admitted, and periodically afterwards to
// catch anything a gateway gap dropped.
package scanner

import (
	"fmt"
	"log"
	"sort"

	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
	"repost-bot/links"
	"repost-bot/models"
	"repost-bot/utils"
)

const maxMessagesPerFetch = 100

// HistoryFetcher is the slice of the Discord REST surface the syncer needs.
// *discordgo.Session satisfies it.
type HistoryFetcher interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Syncer pages through channel history and folds it into the store.
type Syncer struct {
	fetcher HistoryFetcher
	store   *database.Store
	ignore  func(*discordgo.Message) bool
}

// NewSyncer builds a syncer. ignore may be nil to stage every message.
func NewSyncer(fetcher HistoryFetcher, store *database.Store, ignore func(*discordgo.Message) bool) *Syncer {
	return &Syncer{fetcher: fetcher, store: store, ignore: ignore}
}

// Fetch pages through every message in the channel with an id strictly after
// sinceID, normalizes each page to ascending id order (Discord does not
// guarantee any order within a page), and stages Post+Links records for the
// messages that pass the ignore filter. It returns the staged records plus
// the highest id observed ("0" when the channel is empty and sinceID was the
// zero sentinel). Nothing is written; the caller decides how to commit.
func (s *Syncer) Fetch(channelID, sinceID string) ([]database.Record, string, error) {
	after := sinceID
	if after == "" {
		after = "0"
	}

	var records []database.Record
	for {
		page, err := s.fetcher.ChannelMessages(channelID, maxMessagesPerFetch, "", after, "")
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch history page after %s: %w", after, err)
		}
		if len(page) == 0 {
			break
		}
		sort.Slice(page, func(i, j int) bool {
			return utils.CompareBigints(page[i].ID, page[j].ID) < 0
		})
		for _, m := range page {
			if s.ignore != nil && s.ignore(m) {
				continue
			}
			post := models.NewPostFromMessage(m)
			records = append(records, database.Record{Post: post, Links: links.Derive(&post)})
		}
		after = page[len(page)-1].ID
		if len(page) < maxMessagesPerFetch {
			break
		}
	}
	return records, after, nil
}

// Sync fetches everything after sinceID and commits it in one transaction
// that overwrites any stale rows sharing the same ids. It returns the cursor
// plus the set of staged ids, which the reconciler uses as its
// duplicate-suppression grace set. Only the startup backfill may use this:
// the authoritative overwrite is unsafe once live handlers are running.
func (s *Syncer) Sync(channelID, sinceID string) (string, map[string]struct{}, error) {
	records, after, err := s.Fetch(channelID, sinceID)
	if err != nil {
		return "", nil, err
	}
	staged := make(map[string]struct{}, len(records))
	for _, rec := range records {
		staged[rec.Post.ID] = struct{}{}
	}
	if err := s.store.CommitBackfill(records); err != nil {
		return "", nil, fmt.Errorf("failed to commit backfill of %d posts: %w", len(records), err)
	}
	log.Printf("scanner: synchronized %d posts in channel %s, cursor %s", len(records), channelID, after)
	return after, staged, nil
}
