package links

import (
	"net/url"

	"repost-bot/models"
)

// Ref is a canonical website reference: which site, which work, and which
// image within the work.
type Ref struct {
	Kind  models.LinkKind
	ID    string
	Index int
}

// Normalize maps a URL to its canonical reference. ok is false when the URL
// is not a recognized Twitter/X or Pixiv link.
func Normalize(u *url.URL) (Ref, bool) {
	if id, ok := ParseTwitterURL(u); ok {
		return Ref{Kind: models.LinkTwitter, ID: id}, true
	}
	if id, index, ok := ParsePixivURL(u); ok {
		return Ref{Kind: models.LinkPixiv, ID: id, Index: index}, true
	}
	return Ref{}, false
}

// Derive extracts and normalizes every recognized link in a post's content
// into denormalized Link rows. Identical references within one post are
// merged into a single row.
func Derive(post *models.Post) []models.Link {
	contents := Parse(post.Content)
	seen := make(map[Ref]struct{})
	var out []models.Link
	for _, cl := range contents.Links {
		ref, ok := Normalize(cl.URL)
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, models.Link{
			PostID:     post.ID,
			Kind:       ref.Kind,
			LinkID:     ref.ID,
			SubIndex:   ref.Index,
			ChannelID:  post.ChannelID,
			OccurredAt: post.UpdatedAt(),
		})
	}
	return out
}
