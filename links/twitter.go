package links

import (
	"net/url"
	"regexp"
	"strings"

	"repost-bot/utils"
)

// The official domain plus read-only mirror front-ends. Subdomains
// (www, mobile, ...) are accepted for each.
var twitterHosts = []string{
	"twitter.com",
	"x.com",
	"vxtwitter.com",
	"fxtwitter.com",
	"twittpr.com",
}

var twitterPathRegexes = []*regexp.Regexp{
	regexp.MustCompile(`^/[^/]+/status/(\d+)(?:/photo/\d+)?/?$`),
	regexp.MustCompile(`^/i/web/status/(\d+)/?$`),
}

// ParseTwitterURL extracts the canonical status id from a Twitter/X URL.
// Returns ok=false for URLs that are not a recognized status link, including
// ids too large to index.
func ParseTwitterURL(u *url.URL) (string, bool) {
	if !hostAllowed(u.Hostname(), twitterHosts) {
		return "", false
	}
	for _, re := range twitterPathRegexes {
		if m := re.FindStringSubmatch(u.Path); m != nil {
			id := m[1]
			if utils.CompareBigints(id, utils.MaxSQLInt) > 0 {
				return "", false
			}
			return id, true
		}
	}
	return "", false
}

func hostAllowed(hostname string, hosts []string) bool {
	for _, h := range hosts {
		if hostname == h || strings.HasSuffix(hostname, "."+h) {
			return true
		}
	}
	return false
}
