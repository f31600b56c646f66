package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	expected := []int{200, 304}
	markers := []string{"This space is sleeping", "Space not found"}

	tests := []struct {
		name   string
		body   string
		status int
		want   Outcome
	}{
		{"accepted status, clean body", "<html>all good</html>", 200, Success},
		{"second accepted status", "", 304, Success},
		{"unexpected status, clean body", "<html>moved</html>", 302, UnexpectedStatus},
		{"server error, clean body", "oops", 500, UnexpectedStatus},
		{"marker overrides accepted status", "<html>This space is sleeping</html>", 200, ContentFailure},
		{"marker with unexpected status", "Space not found", 404, ContentFailure},
		{"marker embedded mid-body", "prefix This space is sleeping suffix", 200, ContentFailure},
		{"second marker matches", "... Space not found ...", 200, ContentFailure},
		{"empty body accepted status", "", 200, Success},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.body, tt.status, expected, markers)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Content signal must take precedence over status membership for every
// accepted status code, not just 200.
func TestClassifyMarkerPrecedence(t *testing.T) {
	markers := []string{"sleeping"}
	for _, status := range []int{200, 201, 204, 304, 404, 500} {
		got := Classify("the app is sleeping", status, []int{200, 201, 204, 304, 404, 500}, markers)
		assert.Equal(t, ContentFailure, got, "status %d", status)
	}
}

func TestClassifyEmptyMarkerIgnored(t *testing.T) {
	// An empty marker string must not match every body.
	got := Classify("healthy", 200, []int{200}, []string{""})
	assert.Equal(t, Success, got)
}

func TestMatchedMarker(t *testing.T) {
	markers := []string{"first", "second"}

	assert.Equal(t, "first", MatchedMarker("first and second", markers))
	assert.Equal(t, "second", MatchedMarker("only second here", markers))
	assert.Equal(t, "", MatchedMarker("neither", markers))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "content_failure", ContentFailure.String())
	assert.Equal(t, "unexpected_status", UnexpectedStatus.String())
}
