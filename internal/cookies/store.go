// Package cookies implements the origin-scoped session jar. Unlike
// net/http/cookiejar it tracks no expiry, path, or domain attributes:
// an entry's value is always the most recently observed one for that
// origin, entries are never deleted, and jar lifetime equals process
// lifetime. The upstream host rotates session credentials via Set-Cookie
// on ordinary responses, so the jar only needs overwrite-on-observe.
package cookies

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
)

// Store maps origin (hostname) -> cookie name -> cookie value.
type Store struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
	logger  arbor.ILogger
}

// NewStore parses the seed cookie-header string and copies the resulting
// name->value set into the jar entry for every given origin. A seed that
// cannot be parsed as a cookie header is a startup error (process-fatal
// in the caller).
func NewStore(seed string, origins []string, logger arbor.ILogger) (*Store, error) {
	pairs, err := parseCookieHeader(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed cookie string: %w", err)
	}

	entries := make(map[string]map[string]string, len(origins))
	for _, origin := range origins {
		if origin == "" {
			continue
		}
		entry := make(map[string]string, len(pairs))
		for name, value := range pairs {
			entry[name] = value
		}
		entries[origin] = entry
	}

	logger.Debug().
		Int("cookies", len(pairs)).
		Int("origins", len(entries)).
		Msg("Cookie store initialized from seed")

	return &Store{
		entries: entries,
		logger:  logger,
	}, nil
}

// Header renders the jar entry for the URL's origin as a Cookie header
// value. A missing entry is not fatal: the request proceeds without
// cookies and a warning is logged.
func (s *Store) Header(rawURL string) string {
	origin := common.Origin(rawURL)

	s.mu.RLock()
	entry, ok := s.entries[origin]
	if !ok || len(entry) == 0 {
		s.mu.RUnlock()
		s.logger.Warn().
			Str("origin", origin).
			Str("url", rawURL).
			Msg("No jar entry for origin, sending request without cookies")
		return ""
	}

	names := make([]string, 0, len(entry))
	for name := range entry {
		names = append(names, name)
	}
	pairs := make([]string, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		pairs = append(pairs, name+"="+entry[name])
	}
	s.mu.RUnlock()

	return strings.Join(pairs, "; ")
}

// ApplyServerUpdates merges Set-Cookie directives into the entry for the
// URL's origin, creating the entry when absent. Each directive is parsed
// independently: a malformed directive is logged and skipped without
// aborting the batch, and directives lacking a name or a non-empty value
// are ignored silently. Expiry and scope attributes on directives are
// ignored.
func (s *Store) ApplyServerUpdates(rawURL string, directives []string) {
	if len(directives) == 0 {
		return
	}

	origin := common.Origin(rawURL)
	if origin == "" {
		s.logger.Warn().Str("url", rawURL).Msg("Cannot derive origin for cookie updates")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[origin]
	if !ok {
		entry = make(map[string]string)
		s.entries[origin] = entry
	}

	applied := 0
	for _, directive := range directives {
		cookie, err := http.ParseSetCookie(directive)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("origin", origin).
				Msg("Skipping malformed Set-Cookie directive")
			continue
		}
		if cookie.Name == "" || cookie.Value == "" {
			continue
		}
		entry[cookie.Name] = cookie.Value
		applied++
	}

	if applied > 0 {
		s.logger.Debug().
			Str("origin", origin).
			Int("applied", applied).
			Int("received", len(directives)).
			Msg("Applied session-refresh directives")
	}
}

// Entry returns a copy of one origin's name->value pairs.
func (s *Store) Entry(origin string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[origin]
	if !ok {
		return nil
	}
	copied := make(map[string]string, len(entry))
	for name, value := range entry {
		copied[name] = value
	}
	return copied
}

// parseCookieHeader parses a Cookie request-header value into name->value
// pairs. Later duplicates overwrite earlier ones.
func parseCookieHeader(seed string) (map[string]string, error) {
	cookies, err := http.ParseCookie(seed)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]string, len(cookies))
	for _, cookie := range cookies {
		pairs[cookie.Name] = cookie.Value
	}
	return pairs, nil
}
