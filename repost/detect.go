package repost

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"repost-bot/database"
	"repost-bot/links"
	"repost-bot/models"
)

// DefaultWindow is how far back a prior occurrence still counts as a repost
// unless the author's policy extends it.
const DefaultWindow = 6 * 30 * 24 * time.Hour

// Violation is one prior occurrence of a link the inspected post repeats.
type Violation struct {
	Link  models.Link
	Prior models.Post
}

// Detector finds prior occurrences of a post's links in the same channel.
type Detector struct {
	store    *database.Store
	platform Platform
	window   time.Duration
	epoch    atomic.Int64
}

// NewDetector builds a detector over the store and platform with the default
// repost window. The epoch counter starts past the highest fence already in
// the store: fences written by a previous process must read as stale here, so
// their candidates get re-fetched rather than trusted.
func NewDetector(store *database.Store, platform Platform) *Detector {
	d := &Detector{store: store, platform: platform, window: DefaultWindow}
	fence, err := store.MaxSyncFence()
	if err != nil {
		log.Printf("repost: failed to read the highest stored sync fence: %v", err)
	}
	d.epoch.Store(fence)
	return d
}

// Detect reports which of the post's links were already posted in the same
// channel within the applicable window.
//
// A candidate's stored state may be stale relative to an edit not yet
// observed, so the pass iterates: re-fetch every candidate not yet fenced to
// this epoch, fold the fresh state into the store, and re-query. A post is
// fetched at most once per epoch; a second fetch attempt for the same id
// means the loop is not converging and aborts the pass.
func (d *Detector) Detect(post *models.Post, postLinks []models.Link) ([]Violation, error) {
	epoch := d.epoch.Add(1)
	fetched := make(map[string]bool)

	for {
		candidates, stale, err := d.queryCandidates(post, postLinks, epoch)
		if err != nil {
			return nil, err
		}
		if len(stale) == 0 {
			return d.applyPolicy(post, candidates)
		}
		for _, id := range stale {
			if fetched[id] {
				return nil, fmt.Errorf("detection epoch %d: candidate %s re-queued after fetch", epoch, id)
			}
			fetched[id] = true
			if err := d.refresh(post.ChannelID, id, epoch); err != nil {
				return nil, err
			}
		}
	}
}

// queryCandidates runs the prior-occurrence query for every link, splitting
// the hits into trusted candidates and ids still needing a re-fetch.
func (d *Detector) queryCandidates(post *models.Post, postLinks []models.Link, epoch int64) ([]Violation, []string, error) {
	var candidates []Violation
	var stale []string
	seenStale := make(map[string]bool)

	for _, l := range postLinks {
		prior, err := d.store.LastOccurrence(l, post.ID, post.UpdatedAt())
		if err != nil {
			return nil, nil, err
		}
		if prior == nil {
			continue
		}
		if prior.SyncFence != epoch {
			if !seenStale[prior.ID] {
				seenStale[prior.ID] = true
				stale = append(stale, prior.ID)
			}
			continue
		}
		candidates = append(candidates, Violation{Link: l, Prior: *prior})
	}
	return candidates, stale, nil
}

// refresh replaces a candidate's stored state with the platform's current
// view and fences it to the running epoch. A vanished post reconciles the
// store by removing the row.
func (d *Detector) refresh(channelID, id string, epoch int64) error {
	msg, err := d.platform.ChannelMessage(channelID, id)
	if err != nil {
		if IsNotFound(err) {
			log.Printf("repost: candidate %s no longer exists, removing from store", id)
			return d.store.DeletePost(id)
		}
		return fmt.Errorf("failed to re-fetch candidate %s: %w", id, err)
	}
	fresh := models.NewPostFromMessage(msg)
	fresh.SyncFence = epoch
	return d.store.ReplacePost(fresh, links.Derive(&fresh))
}

// applyPolicy keeps only the candidates inside the author's repost window.
func (d *Detector) applyPolicy(post *models.Post, candidates []Violation) ([]Violation, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	unbounded := false
	policy, err := d.store.GetAuthorPolicy(post.AuthorID)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		unbounded = policy.FlagOldReposts
	}
	if unbounded {
		return candidates, nil
	}

	cutoff := time.Now().Add(-d.window).UnixMilli()
	var violations []Violation
	for _, v := range candidates {
		if v.Prior.UpdatedAt() >= cutoff {
			violations = append(violations, v)
		}
	}
	return violations, nil
}
