// Package classify decides whether a polled response means the upstream
// deployment is alive. The upstream host is known to serve dead-deployment
// pages with a nominally successful status code, so body markers are
// checked before the status code is consulted.
package classify

import "strings"

// Outcome is the classification of one polled response.
type Outcome int

const (
	// Success: no failure marker present and status code accepted.
	Success Outcome = iota
	// ContentFailure: a failure marker is present in the body,
	// regardless of status code.
	ContentFailure
	// UnexpectedStatus: no marker, but status code outside the
	// accepted set.
	UnexpectedStatus
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ContentFailure:
		return "content_failure"
	case UnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

// DefaultMarkers is the built-in ordered set of literal substrings whose
// presence in a response body unconditionally signals a dead deployment.
var DefaultMarkers = []string{
	"This space is sleeping",
	"Space not found",
	"has been paused",
	"Build error",
}

// Classify applies the fixed decision order: body markers first, then
// status-code membership, then success. The ordering is load-bearing -
// checking status first would mask a dead deployment that returns an
// accepted status alongside marker text.
func Classify(body string, statusCode int, expectedCodes []int, markers []string) Outcome {
	for _, marker := range markers {
		if marker != "" && strings.Contains(body, marker) {
			return ContentFailure
		}
	}

	for _, code := range expectedCodes {
		if statusCode == code {
			return Success
		}
	}

	return UnexpectedStatus
}

// MatchedMarker returns the first marker found in the body, or "".
// Used for operator-facing failure messages.
func MatchedMarker(body string, markers []string) string {
	for _, marker := range markers {
		if marker != "" && strings.Contains(body, marker) {
			return marker
		}
	}
	return ""
}
