package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Matches http(s) URL tokens: stop at whitespace or an opening angle bracket,
// and drop trailing closing punctuation from the match.
var urlRegex = regexp.MustCompile(`https?://[^\s<]+[^<.,:;"')\]\s]`)

// Contents is a message body split into its leading comment and the URLs
// found in it, in order of appearance.
type Contents struct {
	Comment string
	Links   []ContentLink
}

// ContentLink is one extracted URL plus the free text following it, up to the
// next URL or the end of the message.
type ContentLink struct {
	URL      *url.URL
	Trailing string
}

// Parse scans content for URL tokens. Tokens that fail to parse as a URL are
// kept as ordinary text rather than aborting extraction. The text before the
// first parsed URL becomes the comment; text between URLs becomes the
// preceding link's trailing segment. All segments are whitespace-trimmed.
func Parse(content string) Contents {
	var links []ContentLink
	comment := &strings.Builder{}
	segment := comment // text currently being accumulated
	last := 0

	for _, m := range urlRegex.FindAllStringIndex(content, -1) {
		token := content[m[0]:m[1]]
		u, err := url.Parse(token)
		if err != nil || u.Host == "" {
			// Malformed token: leave it in the surrounding text.
			continue
		}
		segment.WriteString(content[last:m[0]])
		if len(links) > 0 {
			links[len(links)-1].Trailing = strings.TrimSpace(segment.String())
		}
		links = append(links, ContentLink{URL: u})
		segment = &strings.Builder{}
		last = m[1]
	}
	segment.WriteString(content[last:])
	if len(links) > 0 {
		links[len(links)-1].Trailing = strings.TrimSpace(segment.String())
	}

	return Contents{
		Comment: strings.TrimSpace(comment.String()),
		Links:   links,
	}
}
