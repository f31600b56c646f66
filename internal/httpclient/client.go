// Package httpclient builds the HTTP clients used for polling. The
// header-receipt and body-read phases carry independent timeouts: header
// receipt via the transport's ResponseHeaderTimeout, the full request via
// the client timeout. Exceeding either surfaces as a transport error on
// the attempt.
package httpclient

import (
	"net/http"
	"time"
)

// Browser-like static header set replayed on every poll request. The
// upstream host serves different content to obvious non-browser clients.
const (
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	Accept         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	AcceptLanguage = "en-US,en;q=0.9"
)

// New creates the polling HTTP client. headerTimeout bounds the
// response-header receipt phase; requestTimeout bounds the whole request
// including body read.
func New(headerTimeout, requestTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: headerTimeout,
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// NewDefault creates a simple HTTP client with a single overall timeout,
// used for monitor pushes where phase timeouts are overkill.
func NewDefault(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// SetBrowserHeaders applies the static browser header set to a request.
// The Cookie header is managed separately by the cookie store.
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", Accept)
	req.Header.Set("Accept-Language", AcceptLanguage)
}
