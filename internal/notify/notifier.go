// Package notify pushes up/down status to an external monitoring
// endpoint. Push failures are logged and swallowed: the monitor's
// availability must never affect poll-cycle outcome or scheduling.
package notify

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/httpclient"
)

// HealthReporter receives the terminal outcome of each poll cycle.
type HealthReporter interface {
	ReportUp(msg string, latency time.Duration)
	ReportDown(msg string)
}

const pushTimeout = 10 * time.Second

// Notifier pushes status to a monitor endpoint via GET with status, msg
// and optional ping (latency in ms) query parameters.
type Notifier struct {
	pushURL string
	enabled bool
	client  *http.Client
	logger  arbor.ILogger
}

// New creates a notifier. A disabled or URL-less notifier is a no-op.
func New(pushURL string, enabled bool, logger arbor.ILogger) *Notifier {
	return &Notifier{
		pushURL: pushURL,
		enabled: enabled && pushURL != "",
		client:  httpclient.NewDefault(pushTimeout),
		logger:  logger,
	}
}

// ReportUp pushes an "up" status with the measured latency.
func (n *Notifier) ReportUp(msg string, latency time.Duration) {
	n.push("up", msg, latency)
}

// ReportDown pushes a "down" status.
func (n *Notifier) ReportDown(msg string) {
	n.push("down", msg, -1)
}

func (n *Notifier) push(status, msg string, latency time.Duration) {
	if !n.enabled {
		return
	}

	target, err := n.buildURL(status, msg, latency)
	if err != nil {
		n.logger.Warn().Err(err).Msg("Failed to build monitor push URL")
		return
	}

	resp, err := n.client.Get(target)
	if err != nil {
		n.logger.Warn().Err(err).Str("status", status).Msg("Monitor push failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("status", status).
			Msg("Monitor push returned non-success status")
		return
	}

	n.logger.Debug().
		Str("status", status).
		Str("msg", msg).
		Msg("Pushed status to monitor")
}

func (n *Notifier) buildURL(status, msg string, latency time.Duration) (string, error) {
	parsed, err := url.Parse(n.pushURL)
	if err != nil {
		return "", fmt.Errorf("invalid monitor push URL %q: %w", n.pushURL, err)
	}

	query := parsed.Query()
	query.Set("status", status)
	query.Set("msg", msg)
	if latency >= 0 {
		query.Set("ping", strconv.FormatInt(latency.Milliseconds(), 10))
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
