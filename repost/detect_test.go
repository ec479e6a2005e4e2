package repost

import (
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"repost-bot/database"
	"repost-bot/links"
	"repost-bot/models"
)

// fakePlatform serves canned messages and records the mutating calls.
type fakePlatform struct {
	mu       sync.Mutex
	messages map[string]*discordgo.Message
	deleted  []string
	sent     []string
	dmFails  bool
	dmSent   []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{messages: make(map[string]*discordgo.Message)}
}

func notFoundErr() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: 404}}
}

func (f *fakePlatform) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[messageID]; ok {
		return m, nil
	}
	return nil, notFoundErr()
}

func (f *fakePlatform) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "fallback-notice", ChannelID: channelID}, nil
}

func (f *fakePlatform) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmFails {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: 403}}
	}
	f.dmSent = append(f.dmSent, embed.Description)
	return &discordgo.Message{ID: "dm-notice", ChannelID: channelID}, nil
}

func (f *fakePlatform) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
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

// storePost inserts a post with the given content and mirrors it on the fake
// platform so detection re-fetches succeed.
func storePost(t *testing.T, store *database.Store, platform *fakePlatform, id, channel, author, content string, createdAt time.Time) models.Post {
	t.Helper()
	msg := &discordgo.Message{
		ID:        id,
		ChannelID: channel,
		Author:    &discordgo.User{ID: author},
		Content:   content,
		Timestamp: createdAt,
	}
	platform.mu.Lock()
	platform.messages[id] = msg
	platform.mu.Unlock()

	post := models.NewPostFromMessage(msg)
	if err := store.InsertPost(post, links.Derive(&post)); err != nil {
		t.Fatalf("insert post %s failed: %v", id, err)
	}
	return post
}

func TestDetectFindsPriorOccurrence(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	detector := NewDetector(store, platform)

	earlier := storePost(t, store, platform, "111", "200", "1000",
		"check this out https://twitter.com/a/status/42", time.Now().Add(-time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"same https://x.com/b/status/42", time.Now())

	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Prior.ID != earlier.ID {
		t.Fatalf("violations = %+v, want one naming post 111", violations)
	}
	if violations[0].Prior.UpdatedAt() >= later.UpdatedAt() {
		t.Fatalf("prior is not strictly older than the inspected post")
	}

	// The earlier post on its own has no prior occurrence.
	violations, err = detector.Detect(&earlier, links.Derive(&earlier))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none for the earlier post", violations)
	}
}

func TestDetectRemovesVanishedCandidate(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	detector := NewDetector(store, platform)

	earlier := storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"https://twitter.com/b/status/42", time.Now())

	// The candidate vanished upstream before we could re-fetch it.
	platform.mu.Lock()
	delete(platform.messages, earlier.ID)
	platform.mu.Unlock()

	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none: the candidate no longer exists", violations)
	}
	if row, _ := store.GetPost(earlier.ID); row != nil {
		t.Fatalf("vanished candidate still stored: %+v", row)
	}
}

func TestDetectTrustsEditedCandidate(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	detector := NewDetector(store, platform)

	earlier := storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"https://twitter.com/b/status/42", time.Now())

	// Upstream, the candidate was edited to drop the link; the store has not
	// seen that edit yet.
	platform.mu.Lock()
	platform.messages[earlier.ID].Content = "nothing here anymore"
	platform.mu.Unlock()

	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none after the candidate's edit", violations)
	}
}

func TestDetectRefetchesCandidateFencedByEarlierRun(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()

	earlier := storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"https://twitter.com/b/status/42", time.Now())

	// A previous process fenced the candidate; the post was then deleted
	// while the bot was down.
	if err := store.SetSyncFence(earlier.ID, 1); err != nil {
		t.Fatalf("set fence failed: %v", err)
	}
	platform.mu.Lock()
	delete(platform.messages, earlier.ID)
	platform.mu.Unlock()

	// A detector built over that store must not mistake the persisted fence
	// for one of its own epochs.
	detector := NewDetector(store, platform)
	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none from the stale candidate", violations)
	}
	if row, _ := store.GetPost(earlier.ID); row != nil {
		t.Fatalf("vanished candidate still stored: %+v", row)
	}
}

func TestDetectDefaultWindowExcludesOldLinks(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	detector := NewDetector(store, platform)

	storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-8*30*24*time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"https://twitter.com/b/status/42", time.Now())

	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %+v, want none outside the default window", violations)
	}

	// The author opted in to flagging old reposts as well.
	if err := store.SetAuthorPolicy(later.AuthorID, true); err != nil {
		t.Fatalf("set policy failed: %v", err)
	}
	violations, err = detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %+v, want the old occurrence under the extended window", violations)
	}
}

func TestEnforceRemovesStoreRowAndNotifies(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	detector := NewDetector(store, platform)
	enforcer := NewEnforcer(store, platform)

	earlier := storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-time.Hour))
	later := storePost(t, store, platform, "222", "200", "2000",
		"https://x.com/b/status/42", time.Now())

	violations, err := detector.Detect(&later, links.Derive(&later))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Prior.ID != earlier.ID {
		t.Fatalf("violations = %+v", violations)
	}

	if err := enforcer.Enforce(later, violations); err != nil {
		t.Fatalf("enforce failed: %v", err)
	}

	// The store row goes first, synchronously.
	if row, _ := store.GetPost(later.ID); row != nil {
		t.Fatalf("enforced post still stored: %+v", row)
	}

	waitFor(t, func() bool {
		platform.mu.Lock()
		defer platform.mu.Unlock()
		return len(platform.deleted) == 1 && len(platform.dmSent) == 1
	})
	platform.mu.Lock()
	defer platform.mu.Unlock()
	if platform.deleted[0] != later.ID {
		t.Fatalf("deleted %v, want the enforced post", platform.deleted)
	}
}

func TestEnforceFallsBackToChannelNotice(t *testing.T) {
	store := newTestStore(t)
	platform := newFakePlatform()
	platform.dmFails = true
	enforcer := NewEnforcer(store, platform)
	enforcer.noticeTTL = 10 * time.Millisecond

	post := storePost(t, store, platform, "222", "200", "2000",
		"https://twitter.com/b/status/42", time.Now())
	prior := storePost(t, store, platform, "111", "200", "1000",
		"https://twitter.com/a/status/42", time.Now().Add(-time.Hour))

	err := enforcer.Enforce(post, []Violation{{
		Link:  links.Derive(&post)[0],
		Prior: prior,
	}})
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}

	waitFor(t, func() bool {
		platform.mu.Lock()
		defer platform.mu.Unlock()
		return len(platform.sent) == 1
	})

	// The fallback notice deletes itself after its TTL.
	waitFor(t, func() bool {
		platform.mu.Lock()
		defer platform.mu.Unlock()
		for _, id := range platform.deleted {
			if id == "fallback-notice" {
				return true
			}
		}
		return false
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
