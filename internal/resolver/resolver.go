// Package resolver discovers the real content endpoint. The upstream host
// may only expose it indirectly: a wrapper page embeds the deployment in
// an iframe whose src carries a signed, rotating token, so the URL has to
// be re-extracted rather than configured statically.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/cookies"
	"github.com/ternarybob/vigil/internal/httpclient"
)

// ErrNoTarget signals that neither extraction nor the configured fallback
// produced a usable target URL for this attempt.
var ErrNoTarget = errors.New("no target URL available")

// frameSelector matches the distinguished embedded-frame element on the
// wrapper page. A bare iframe is accepted as a fallback because the
// hosting platform has changed the class attribute before.
const (
	frameSelector         = "iframe.space-iframe"
	fallbackFrameSelector = "iframe[src]"
)

// Resolver resolves the content endpoint from the wrapper page, falling
// back to the statically configured target URL.
type Resolver struct {
	pageURL       string
	fallbackURL   string
	expectedCodes []int
	store         *cookies.Store
	client        *http.Client
	logger        arbor.ILogger
}

// New creates a resolver. pageURL and fallbackURL may each be empty, but
// the caller guarantees at least one is set.
func New(pageURL, fallbackURL string, expectedCodes []int, store *cookies.Store, client *http.Client, logger arbor.ILogger) *Resolver {
	return &Resolver{
		pageURL:       pageURL,
		fallbackURL:   fallbackURL,
		expectedCodes: expectedCodes,
		store:         store,
		client:        client,
		logger:        logger,
	}
}

// Resolve returns the URL to poll this attempt. Extraction failures are
// soft: each is logged and falls back to the configured direct URL. Only
// when both paths are empty does resolution fail with ErrNoTarget.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.pageURL != "" {
		if extracted := r.extractFromPage(ctx); extracted != "" {
			return extracted, nil
		}
	}

	if r.fallbackURL != "" {
		if r.pageURL != "" {
			r.logger.Debug().
				Str("url", r.fallbackURL).
				Msg("Falling back to configured target URL")
		}
		return r.fallbackURL, nil
	}

	return "", ErrNoTarget
}

// extractFromPage fetches the wrapper page and pulls the embedded frame's
// src attribute. Returns "" on any failure; failure markers are not
// checked here - only the resolved target's response is classified.
func (r *Resolver) extractFromPage(ctx context.Context) string {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.pageURL, nil)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", r.pageURL).Msg("Failed to build wrapper page request")
		return ""
	}

	httpclient.SetBrowserHeaders(req)
	if header := r.store.Header(r.pageURL); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", r.pageURL).Msg("Wrapper page fetch failed")
		return ""
	}
	defer resp.Body.Close()

	// Session-refresh directives apply even when the page itself is
	// unusable this attempt.
	r.store.ApplyServerUpdates(r.pageURL, resp.Header.Values("Set-Cookie"))

	if !r.statusExpected(resp.StatusCode) {
		r.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("url", r.pageURL).
			Msg("Wrapper page returned unexpected status")
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", r.pageURL).Msg("Failed to parse wrapper page HTML")
		return ""
	}

	frame := doc.Find(frameSelector).First()
	if frame.Length() == 0 {
		frame = doc.Find(fallbackFrameSelector).First()
	}
	if frame.Length() == 0 {
		r.logger.Warn().Str("url", r.pageURL).Msg("No embedded frame found on wrapper page")
		return ""
	}

	src, ok := frame.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		r.logger.Warn().Str("url", r.pageURL).Msg("Embedded frame has no src attribute")
		return ""
	}

	resolved, err := r.absolute(strings.TrimSpace(src))
	if err != nil {
		r.logger.Warn().Err(err).Str("src", src).Msg("Embedded frame src is not a usable URL")
		return ""
	}

	r.logger.Info().
		Str("target", resolved).
		Dur("elapsed", time.Since(started)).
		Msg("Resolved content endpoint from wrapper page")

	return resolved
}

// absolute resolves a possibly relative frame src against the page URL.
func (r *Resolver) absolute(src string) (string, error) {
	parsed, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}

	base, err := url.Parse(r.pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", r.pageURL, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

func (r *Resolver) statusExpected(code int) bool {
	for _, expected := range r.expectedCodes {
		if code == expected {
			return true
		}
	}
	return false
}
