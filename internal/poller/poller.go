// Package poller runs the poll cycle: resolve target, request it with
// current session cookies, fold server-issued cookie updates back into
// the jar, classify the response, and retry on failure up to a bound.
// Steady-state errors never escape a cycle; the only failure channels
// are log lines and the monitor "down" push.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/classify"
	"github.com/ternarybob/vigil/internal/cookies"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/notify"
	"github.com/ternarybob/vigil/internal/resolver"
)

// TargetResolver yields the URL to poll for one attempt.
type TargetResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Options bundle the cycle-level policy knobs.
type Options struct {
	ExpectedCodes []int
	Markers       []string
	MaxRetries    int
	RetryDelay    time.Duration
	PaceInterval  time.Duration
}

// Poller orchestrates one poll cycle at a time.
type Poller struct {
	resolver TargetResolver
	store    *cookies.Store
	client   *http.Client
	reporter notify.HealthReporter
	limiter  *OriginLimiter
	opts     Options
	logger   arbor.ILogger
}

// New creates a poller. The cookie store is shared with the resolver so
// session-refresh directives observed on either request survive into the
// next.
func New(res TargetResolver, store *cookies.Store, client *http.Client, reporter notify.HealthReporter, opts Options, logger arbor.ILogger) *Poller {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if len(opts.Markers) == 0 {
		opts.Markers = classify.DefaultMarkers
	}
	return &Poller{
		resolver: res,
		store:    store,
		client:   client,
		reporter: reporter,
		limiter:  NewOriginLimiter(opts.PaceInterval),
		opts:     opts,
		logger:   logger,
	}
}

// RunCycle executes one poll cycle: up to MaxRetries attempts separated
// by the fixed inter-retry delay. The first successful attempt ends the
// cycle with an "up" push carrying that attempt's latency; exhaustion
// ends it with a single "down" push carrying the final failure message.
func (p *Poller) RunCycle(ctx context.Context) {
	cycleID := uuid.New().String()[:8]

	var last AttemptResult
	for attempt := 1; attempt <= p.opts.MaxRetries; attempt++ {
		last = p.attempt(ctx, cycleID, attempt)

		p.logger.Info().
			Str("cycle", cycleID).
			Int("attempt", attempt).
			Str("outcome", last.Kind.String()).
			Int("status_code", last.StatusCode).
			Dur("latency", last.Latency).
			Msg(last.Message)

		if last.Kind == OutcomeSuccess {
			p.reporter.ReportUp(last.Message, last.Latency)
			return
		}

		if attempt < p.opts.MaxRetries {
			select {
			case <-ctx.Done():
				p.logger.Warn().
					Str("cycle", cycleID).
					Msg("Poll cycle cancelled between attempts")
				return
			case <-time.After(p.opts.RetryDelay):
			}
		}
	}

	p.logger.Warn().
		Str("cycle", cycleID).
		Int("max_retries", p.opts.MaxRetries).
		Msg("All poll attempts exhausted")

	p.reporter.ReportDown(last.Message)
}

// attempt performs one resolve-request-classify pass.
func (p *Poller) attempt(ctx context.Context, cycleID string, attempt int) AttemptResult {
	p.logger.Debug().
		Str("cycle", cycleID).
		Int("attempt", attempt).
		Msg("Starting poll attempt")

	target, err := p.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, resolver.ErrNoTarget) {
			return AttemptResult{
				Kind:    OutcomeNoTarget,
				Message: "no target URL available",
			}
		}
		return AttemptResult{
			Kind:    OutcomeNoTarget,
			Message: fmt.Sprintf("target resolution failed: %v", err),
		}
	}

	if err := p.limiter.Wait(ctx, target); err != nil {
		return AttemptResult{
			Kind:    OutcomeTransportError,
			Target:  target,
			Message: fmt.Sprintf("transport error (cancelled): %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return AttemptResult{
			Kind:    OutcomeTransportError,
			Target:  target,
			Message: fmt.Sprintf("transport error (request): %v", err),
		}
	}

	httpclient.SetBrowserHeaders(req)
	if header := p.store.Header(target); header != "" {
		req.Header.Set("Cookie", header)
	}

	// Latency runs from just before the request is issued until the body
	// is fully read.
	started := time.Now()

	resp, err := p.client.Do(req)
	if err != nil {
		return AttemptResult{
			Kind:    OutcomeTransportError,
			Target:  target,
			Message: fmt.Sprintf("transport error (%s): %v", transportErrorKind(err), err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AttemptResult{
			Kind:       OutcomeTransportError,
			StatusCode: resp.StatusCode,
			Target:     target,
			Message:    fmt.Sprintf("transport error (%s): body read: %v", transportErrorKind(err), err),
		}
	}
	latency := time.Since(started)

	// Cookie updates apply before classification so a rotated session
	// credential survives even a failed attempt.
	p.store.ApplyServerUpdates(target, resp.Header.Values("Set-Cookie"))

	outcome := classify.Classify(string(body), resp.StatusCode, p.opts.ExpectedCodes, p.opts.Markers)
	switch outcome {
	case classify.ContentFailure:
		marker := classify.MatchedMarker(string(body), p.opts.Markers)
		return AttemptResult{
			Kind:       OutcomeContentFailure,
			StatusCode: resp.StatusCode,
			Target:     target,
			Latency:    latency,
			Message:    fmt.Sprintf("failure marker %q present (status %d)", marker, resp.StatusCode),
		}
	case classify.UnexpectedStatus:
		return AttemptResult{
			Kind:       OutcomeUnexpectedStatus,
			StatusCode: resp.StatusCode,
			Target:     target,
			Latency:    latency,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	default:
		return AttemptResult{
			Kind:       OutcomeSuccess,
			StatusCode: resp.StatusCode,
			Target:     target,
			Latency:    latency,
			Message:    fmt.Sprintf("service up (status %d)", resp.StatusCode),
		}
	}
}

// transportErrorKind distinguishes timeout, connection and other
// transport failures for operator visibility. Retry behavior does not
// differ by kind.
func transportErrorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}

	return "other"
}
