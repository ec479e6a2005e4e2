package links

import (
	"net/url"
	"regexp"
	"strconv"

	"repost-bot/utils"
)

// The official domain plus mirror front-ends. Subdomains are accepted.
var pixivHosts = []string{
	"pixiv.net",
	"phixiv.net",
	"ppxiv.net",
}

var (
	pixivPathRegex  = regexp.MustCompile(`^/(?:en/)?artworks/(\d+)(?:/(\d+))?/?$`)
	pixivOldIDRegex = regexp.MustCompile(`^\d+$`)
)

const (
	pixivOldPath  = "/member_illust.php"
	pixivOldParam = "illust_id"
)

// ParsePixivURL extracts the canonical artwork id and zero-based image index
// from a Pixiv URL. The URL carries the index one-based; an index that cannot
// be represented safely rejects the whole link rather than truncating, as
// does an id too large to index.
func ParsePixivURL(u *url.URL) (string, int, bool) {
	if !hostAllowed(u.Hostname(), pixivHosts) {
		return "", 0, false
	}

	var id string
	index := 0

	if m := pixivPathRegex.FindStringSubmatch(u.Path); m != nil {
		id = m[1]
		if m[2] != "" {
			oneBased, err := strconv.ParseInt(m[2], 10, 32)
			if err != nil || oneBased < 1 {
				return "", 0, false
			}
			index = int(oneBased) - 1
		}
	}

	if u.Path == pixivOldPath {
		if old := u.Query().Get(pixivOldParam); pixivOldIDRegex.MatchString(old) {
			id = old
		}
	}

	if id == "" {
		return "", 0, false
	}
	if utils.CompareBigints(id, utils.MaxSQLInt) > 0 {
		return "", 0, false
	}
	return id, index, true
}
