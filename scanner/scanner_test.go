package scanner

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
	"repost-bot/utils"
)

// fakeHistory serves a fixed message set the way Discord does: up to limit
// messages with ids strictly greater than afterID, in no particular order.
type fakeHistory struct {
	messages []*discordgo.Message
	calls    int
}

func (f *fakeHistory) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.calls++
	var page []*discordgo.Message
	for _, m := range f.messages {
		if utils.CompareBigints(m.ID, afterID) > 0 {
			page = append(page, m)
		}
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "200",
		Author:    &discordgo.User{ID: "1000"},
		Content:   content,
		Timestamp: time.Now(),
	}
}

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init db failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return database.NewStore(db)
}

func TestSyncEmptyChannel(t *testing.T) {
	store := newTestStore(t)
	syncer := NewSyncer(&fakeHistory{}, store, nil)

	cursor, staged, err := syncer.Sync("200", "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if cursor != "0" {
		t.Fatalf("cursor = %q, want sentinel 0", cursor)
	}
	if len(staged) != 0 {
		t.Fatalf("staged = %v, want empty", staged)
	}
}

func TestSyncStagesHistoryAndReturnsCursor(t *testing.T) {
	store := newTestStore(t)
	// Deliver out of order; the syncer must normalize to ascending ids.
	history := &fakeHistory{messages: []*discordgo.Message{
		message("300", "https://twitter.com/a/status/42"),
		message("100", "plain text"),
		message("200", "https://www.pixiv.net/artworks/66458540"),
	}}
	syncer := NewSyncer(history, store, nil)

	cursor, staged, err := syncer.Sync("200", "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if cursor != "300" {
		t.Fatalf("cursor = %q, want 300", cursor)
	}
	if len(staged) != 3 {
		t.Fatalf("staged %d posts, want 3", len(staged))
	}
	for _, id := range []string{"100", "200", "300"} {
		if _, ok := staged[id]; !ok {
			t.Fatalf("post %s missing from staged set", id)
		}
		row, err := store.GetPost(id)
		if err != nil {
			t.Fatalf("get %s failed: %v", id, err)
		}
		if row == nil {
			t.Fatalf("post %s not stored", id)
		}
	}

	last, err := store.LastPostID("200")
	if err != nil {
		t.Fatalf("last post id failed: %v", err)
	}
	if last != "300" {
		t.Fatalf("last post id = %q, want 300", last)
	}
}

func TestSyncPaginatesUntilShortPage(t *testing.T) {
	store := newTestStore(t)
	history := &fakeHistory{}
	for i := 1; i <= 150; i++ {
		history.messages = append(history.messages, message(strconv.Itoa(i*10), "msg"))
	}
	syncer := NewSyncer(history, store, nil)

	cursor, staged, err := syncer.Sync("200", "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if cursor != "1500" {
		t.Fatalf("cursor = %q, want 1500", cursor)
	}
	if len(staged) != 150 {
		t.Fatalf("staged %d posts, want 150", len(staged))
	}
	// One full page, one short page.
	if history.calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", history.calls)
	}
}

func TestSyncHonorsSinceIDAndIgnoreFilter(t *testing.T) {
	store := newTestStore(t)
	history := &fakeHistory{messages: []*discordgo.Message{
		message("100", "old"),
		message("200", "kept"),
		message("300", "ignored"),
	}}
	ignore := func(m *discordgo.Message) bool { return m.Content == "ignored" }
	syncer := NewSyncer(history, store, ignore)

	cursor, staged, err := syncer.Sync("200", "100")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	// The cursor still advances past ignored messages.
	if cursor != "300" {
		t.Fatalf("cursor = %q, want 300", cursor)
	}
	if _, ok := staged["100"]; ok {
		t.Fatalf("post at the since cursor was restaged")
	}
	if _, ok := staged["300"]; ok {
		t.Fatalf("ignored post was staged")
	}
	if _, ok := staged["200"]; !ok {
		t.Fatalf("post 200 missing from staged set")
	}
}
