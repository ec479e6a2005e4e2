package handlers

import (
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"

	"repost-bot/database"
	"repost-bot/links"
	"repost-bot/lockqueue"
	"repost-bot/models"
	"repost-bot/repost"
	"repost-bot/scanner"
	"repost-bot/utils"
)

// graceWindow is how long after the startup backfill commits that its post
// ids are still treated as already handled, so a live create event replayed
// for one of them is recognized as a duplicate.
const graceWindow = time.Minute

// Reconciler consumes gateway lifecycle events and applies them against the
// store, funneling every handler for a given post id through a per-id lock
// queue. Live events are admitted only once the startup backfill has
// committed (the ready gate).
type Reconciler struct {
	store    *database.Store
	platform repost.Platform
	fetcher  scanner.HistoryFetcher
	queue    *lockqueue.KeyedLockQueue
	detector *repost.Detector
	enforcer *repost.Enforcer

	channelID      string
	deleteNoImages bool
	selfID         string

	ready     chan struct{}
	startOnce sync.Once

	mu         sync.Mutex
	backfilled map[string]struct{}
}

// NewReconciler wires a reconciler to a live session, reading the monitored
// channel and content policy from configuration.
func NewReconciler(session *discordgo.Session, store *database.Store) *Reconciler {
	return newReconciler(store, session, session,
		viper.GetString("bot.channelId"), viper.GetBool("bot.deleteNoImages"))
}

func newReconciler(store *database.Store, platform repost.Platform, fetcher scanner.HistoryFetcher, channelID string, deleteNoImages bool) *Reconciler {
	return &Reconciler{
		store:          store,
		platform:       platform,
		fetcher:        fetcher,
		queue:          lockqueue.NewKeyedLockQueue(),
		detector:       repost.NewDetector(store, platform),
		enforcer:       repost.NewEnforcer(store, platform),
		channelID:      channelID,
		deleteNoImages: deleteNoImages,
		ready:          make(chan struct{}),
		backfilled:     make(map[string]struct{}),
	}
}

// Ready runs the startup backfill and opens the gate for live events.
func (r *Reconciler) Ready(s *discordgo.Session, ev *discordgo.Ready) {
	log.Printf("Logged in as: %v#%v", ev.User.Username, ev.User.Discriminator)
	r.selfID = ev.User.ID
	r.startOnce.Do(func() { go r.startup() })
}

// startup reconciles channel history against the store before any live
// handler runs, then opens the ready gate. The backfilled ids stay in the
// grace set for a short window past the gate.
func (r *Reconciler) startup() {
	defer close(r.ready)

	sinceID, err := r.store.LastPostID(r.channelID)
	if err != nil {
		log.Printf("reconciler: failed to read backfill cursor: %v", err)
		return
	}
	syncer := scanner.NewSyncer(r.fetcher, r.store, scanner.Ignore(r.channelID, r.selfID))
	cursor, staged, err := syncer.Sync(r.channelID, sinceID)
	if err != nil {
		// Live events still have to flow; the cron re-sync retries later.
		utils.Error("reconciler", "Backfill", err.Error())
		return
	}
	r.mu.Lock()
	r.backfilled = staged
	r.mu.Unlock()
	time.AfterFunc(graceWindow, func() {
		r.mu.Lock()
		r.backfilled = make(map[string]struct{})
		r.mu.Unlock()
	})
	log.Printf("reconciler: backfill complete, cursor %s", cursor)
}

// Resync fetches channel history after the stored cursor and folds each post
// through the per-id lock queue, so gap recovery cannot interleave with a
// live handler or an in-flight enforcement for the same id. Unlike the
// startup backfill it never overwrites: a row already present (possibly
// carrying an edit newer than the fetched snapshot) is left alone.
func (r *Reconciler) Resync() {
	sinceID, err := r.store.LastPostID(r.channelID)
	if err != nil {
		log.Printf("reconciler: re-sync: failed to read cursor: %v", err)
		return
	}
	syncer := scanner.NewSyncer(r.fetcher, r.store, scanner.Ignore(r.channelID, r.selfID))
	records, cursor, err := syncer.Fetch(r.channelID, sinceID)
	if err != nil {
		utils.Error("reconciler", "Resync", err.Error())
		return
	}
	for _, rec := range records {
		rec := rec
		r.queue.Enqueue(rec.Post.ID, func() {
			<-r.ready
			exists, err := r.store.HasPost(rec.Post.ID)
			if err != nil {
				log.Printf("reconciler: re-sync %s: %v", rec.Post.ID, err)
				return
			}
			if exists {
				return
			}
			if err := r.store.InsertPost(rec.Post, rec.Links); err != nil {
				log.Printf("reconciler: re-sync %s: %v", rec.Post.ID, err)
			}
		})
	}
	log.Printf("reconciler: re-sync staged %d posts, cursor %s", len(records), cursor)
}

// MessageCreate handles a live post creation.
func (r *Reconciler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if r.ignored(m.Message) {
		return
	}
	msg := m.Message
	r.queue.Enqueue(msg.ID, func() {
		<-r.ready
		r.handleCreate(msg)
	})
}

// MessageUpdate handles a live post edit.
func (r *Reconciler) MessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	// Update payloads are partial; only channel and id are trusted here.
	if m.ChannelID != r.channelID {
		return
	}
	msg := m.Message
	r.queue.Enqueue(msg.ID, func() {
		<-r.ready
		r.handleUpdate(msg)
	})
}

// MessageDelete handles a live post deletion.
func (r *Reconciler) MessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m.ChannelID != r.channelID {
		return
	}
	id := m.ID
	r.queue.Enqueue(id, func() {
		<-r.ready
		r.handleDelete(id)
	})
}

// MessageDeleteBulk fans a bulk deletion out into per-id deletions, each
// serialized under its own id so unrelated deletes are not head-of-line
// blocked.
func (r *Reconciler) MessageDeleteBulk(s *discordgo.Session, m *discordgo.MessageDeleteBulk) {
	if m.ChannelID != r.channelID {
		return
	}
	for _, id := range m.Messages {
		id := id
		r.queue.Enqueue(id, func() {
			<-r.ready
			r.handleDelete(id)
		})
	}
}

func (r *Reconciler) ignored(m *discordgo.Message) bool {
	return scanner.Ignore(r.channelID, r.selfID)(m)
}

func (r *Reconciler) inGrace(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.backfilled[id]
	return ok
}

// handleCreate inserts the post and runs detection. Duplicate delivery
// (including a replay of a post the backfill already staged) is a no-op.
func (r *Reconciler) handleCreate(m *discordgo.Message) {
	if r.inGrace(m.ID) {
		return
	}
	exists, err := r.store.HasPost(m.ID)
	if err != nil {
		log.Printf("reconciler: create %s: %v", m.ID, err)
		return
	}
	if exists {
		return
	}
	post := models.NewPostFromMessage(m)
	postLinks := links.Derive(&post)
	if err := r.store.InsertPost(post, postLinks); err != nil {
		log.Printf("reconciler: create %s: %v", m.ID, err)
		return
	}
	r.detectAndEnforce(post, postLinks)
}

// handleUpdate folds an edit into the store. A payload without an edit
// timestamp is treated as partial and replaced by a re-fetch of the canonical
// post. Updates with no externally visible content change are dropped, as are
// replays older than the stored state. An update for an unknown row likewise
// re-fetches and treats the result as a create; a post that vanished in the
// meantime is a benign no-op.
func (r *Reconciler) handleUpdate(m *discordgo.Message) {
	stored, err := r.store.GetPost(m.ID)
	if err != nil {
		log.Printf("reconciler: update %s: %v", m.ID, err)
		return
	}
	if stored == nil {
		full, err := r.platform.ChannelMessage(m.ChannelID, m.ID)
		if err != nil {
			if !repost.IsNotFound(err) {
				log.Printf("reconciler: update %s: re-fetch failed: %v", m.ID, err)
			}
			return
		}
		if !r.ignored(full) {
			r.handleCreate(full)
		}
		return
	}

	// Discord delivers an update with only the id and channel populated when
	// it resolves a link embed, which happens for nearly every post this bot
	// watches. Such a payload carries no edit timestamp; re-fetch the
	// canonical post instead of comparing its empty fields against the row.
	if m.EditedTimestamp == nil {
		full, err := r.platform.ChannelMessage(m.ChannelID, m.ID)
		if err != nil {
			if !repost.IsNotFound(err) {
				log.Printf("reconciler: update %s: re-fetch failed: %v", m.ID, err)
			}
			return
		}
		m = full
	}

	if m.Content == stored.Content {
		return
	}
	var incomingEdit int64
	if m.EditedTimestamp != nil {
		incomingEdit = m.EditedTimestamp.UnixMilli()
	}
	if incomingEdit != 0 && stored.UpdatedAt() >= incomingEdit {
		// Replayed stale update.
		return
	}

	updated := *stored
	updated.Content = m.Content
	updated.AttachmentCount = len(m.Attachments)
	if incomingEdit != 0 {
		updated.EditedAt = incomingEdit
	}
	postLinks := links.Derive(&updated)
	if err := r.store.ReplacePost(updated, postLinks); err != nil {
		log.Printf("reconciler: update %s: %v", m.ID, err)
		return
	}
	r.detectAndEnforce(updated, postLinks)
}

// handleDelete removes the store row; deleting an absent id is a no-op.
func (r *Reconciler) handleDelete(id string) {
	if err := r.store.DeletePost(id); err != nil {
		log.Printf("reconciler: delete %s: %v", id, err)
	}
}

// detectAndEnforce runs repost detection for a freshly synchronized post and
// applies the policy when it is violated. Detection errors abandon this pass
// only; the next event for the post naturally re-attempts.
func (r *Reconciler) detectAndEnforce(post models.Post, postLinks []models.Link) {
	violations, err := r.detector.Detect(&post, postLinks)
	if err != nil {
		utils.Error("reconciler", "Detect", err.Error())
		return
	}
	lacksContent := r.deleteNoImages && len(postLinks) == 0 && post.AttachmentCount == 0
	if len(violations) == 0 && !lacksContent {
		return
	}
	if err := r.enforcer.Enforce(post, violations); err != nil {
		utils.Error("reconciler", "Enforce", err.Error())
	}
}
