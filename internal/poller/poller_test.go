package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/cookies"
	"github.com/ternarybob/vigil/internal/resolver"
)

// stubResolver returns targets in sequence, repeating the last entry.
type stubResolver struct {
	targets []string
	errs    []error
	calls   int
}

func (s *stubResolver) Resolve(ctx context.Context) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.targets) {
		i = len(s.targets) - 1
	}
	if s.errs != nil && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.targets[i], nil
}

// mockReporter records every push.
type mockReporter struct {
	ups       []string
	downs     []string
	latencies []time.Duration
}

func (m *mockReporter) ReportUp(msg string, latency time.Duration) {
	m.ups = append(m.ups, msg)
	m.latencies = append(m.latencies, latency)
}

func (m *mockReporter) ReportDown(msg string) {
	m.downs = append(m.downs, msg)
}

func newTestStore(t *testing.T, urls ...string) *cookies.Store {
	t.Helper()
	store, err := cookies.NewStore("session=seed-value", common.Origins(urls...), arbor.NewLogger())
	require.NoError(t, err)
	return store
}

func newTestPoller(t *testing.T, res TargetResolver, store *cookies.Store, reporter *mockReporter, maxRetries int) *Poller {
	t.Helper()
	return New(res, store, &http.Client{Timeout: 5 * time.Second}, reporter, Options{
		ExpectedCodes: []int{200},
		Markers:       []string{"This space is sleeping"},
		MaxRetries:    maxRetries,
		RetryDelay:    10 * time.Millisecond,
	}, arbor.NewLogger())
}

func TestCycleSucceedsFirstAttempt(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		fmt.Fprint(w, "<html>alive</html>")
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	p := newTestPoller(t, &stubResolver{targets: []string{server.URL}}, store, reporter, 3)

	p.RunCycle(context.Background())

	assert.Equal(t, int32(1), attempts.Load())
	require.Len(t, reporter.ups, 1)
	assert.Empty(t, reporter.downs)
	assert.Equal(t, "service up (status 200)", reporter.ups[0])
	assert.Greater(t, reporter.latencies[0], time.Duration(0))
}

func TestCycleExhaustsOnUnexpectedStatus(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	p := newTestPoller(t, &stubResolver{targets: []string{server.URL}}, store, reporter, 3)

	p.RunCycle(context.Background())

	// Exactly maxRetries attempts and a single down push.
	assert.Equal(t, int32(3), attempts.Load())
	assert.Empty(t, reporter.ups)
	require.Len(t, reporter.downs, 1)
	assert.Equal(t, "unexpected status 502", reporter.downs[0])
}

func TestCycleRetriesContentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// Dead-deployment page with a nominally successful status.
			fmt.Fprint(w, "<html>This space is sleeping</html>")
			return
		}
		fmt.Fprint(w, "<html>alive</html>")
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	p := newTestPoller(t, &stubResolver{targets: []string{server.URL}}, store, reporter, 3)

	p.RunCycle(context.Background())

	assert.Equal(t, int32(2), attempts.Load())
	require.Len(t, reporter.ups, 1)
	assert.Empty(t, reporter.downs)
}

func TestCycleRecoversFromTransportError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		fmt.Fprint(w, "<html>alive</html>")
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	// First attempt hits a closed port, second resolves to the live server.
	res := &stubResolver{targets: []string{"http://127.0.0.1:1/", server.URL}}
	p := newTestPoller(t, res, store, reporter, 3)

	p.RunCycle(context.Background())

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 2, res.calls)
	require.Len(t, reporter.ups, 1)
	assert.Empty(t, reporter.downs)
	// Only the terminal attempt's latency is reported.
	require.Len(t, reporter.latencies, 1)
	assert.Greater(t, reporter.latencies[0], time.Duration(0))
}

func TestCycleNoTargetIsRetriedThenDown(t *testing.T) {
	reporter := &mockReporter{}
	store := newTestStore(t)
	res := &stubResolver{
		targets: []string{""},
		errs:    []error{resolver.ErrNoTarget},
	}
	p := newTestPoller(t, res, store, reporter, 3)

	p.RunCycle(context.Background())

	assert.Equal(t, 3, res.calls)
	assert.Empty(t, reporter.ups)
	require.Len(t, reporter.downs, 1)
	assert.Equal(t, "no target URL available", reporter.downs[0])
}

func TestCycleSendsCookiesAndAppliesUpdates(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Header().Add("Set-Cookie", "spaces-jwt=abc")
		fmt.Fprint(w, "<html>alive</html>")
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	p := newTestPoller(t, &stubResolver{targets: []string{server.URL}}, store, reporter, 1)

	p.RunCycle(context.Background())

	assert.Equal(t, "session=seed-value", gotCookie)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	assert.Equal(t, "abc", store.Entry(parsed.Hostname())["spaces-jwt"])
}

func TestCycleCookieUpdateAppliedEvenOnFailedAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "rotated=mid-failure")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	reporter := &mockReporter{}
	store := newTestStore(t, server.URL)
	p := newTestPoller(t, &stubResolver{targets: []string{server.URL}}, store, reporter, 1)

	p.RunCycle(context.Background())

	require.Len(t, reporter.downs, 1)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	assert.Equal(t, "mid-failure", store.Entry(parsed.Hostname())["rotated"])
}

func TestTransportErrorKind(t *testing.T) {
	assert.Equal(t, "timeout", transportErrorKind(context.DeadlineExceeded))
	assert.Equal(t, "other", transportErrorKind(fmt.Errorf("plain error")))
}

func TestOutcomeRetryable(t *testing.T) {
	assert.False(t, OutcomeSuccess.Retryable())
	for _, kind := range []OutcomeKind{OutcomeContentFailure, OutcomeUnexpectedStatus, OutcomeTransportError, OutcomeNoTarget} {
		assert.True(t, kind.Retryable(), kind.String())
	}
}
