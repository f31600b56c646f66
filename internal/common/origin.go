package common

import (
	"net/url"
	"strings"
)

// Origin derives the cookie/request origin from a URL. Scoping is
// hostname-only: the wrapper page and the resolved content endpoint may
// share a registrable domain but differ in scheme or port, and the
// upstream host groups session state by hostname.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Origins derives the distinct origins implied by a set of URLs,
// preserving first-seen order. Empty and unparseable URLs are skipped.
func Origins(rawURLs ...string) []string {
	seen := make(map[string]bool)
	origins := []string{}
	for _, raw := range rawURLs {
		if raw == "" {
			continue
		}
		origin := Origin(raw)
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
	}
	return origins
}
