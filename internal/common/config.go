package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// MinPollInterval is the floor enforced on the poll interval. Anything
// shorter hammers the upstream host without keeping it any more awake.
const MinPollInterval = time.Minute

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Target      TargetConfig  `toml:"target"`
	Poll        PollConfig    `toml:"poll"`
	Monitor     MonitorConfig `toml:"monitor"`
	Logging     LoggingConfig `toml:"logging"`
}

// TargetConfig describes what gets polled and with which session seed.
// At least one of URL and PageURL must be set; when PageURL is set the
// real target is extracted from the wrapper page's embedded frame and
// URL acts as the fallback.
type TargetConfig struct {
	URL           string `toml:"url" validate:"omitempty,url"`
	PageURL       string `toml:"page_url" validate:"omitempty,url"`
	Cookie        string `toml:"cookie"`
	ExpectedCodes []int  `toml:"expected_codes" validate:"min=1,dive,gte=100,lte=599"`
}

// PollConfig controls the poll cycle and its retry policy.
type PollConfig struct {
	Interval       string   `toml:"interval"`        // e.g. "5m" - how often a cycle starts
	MaxRetries     int      `toml:"max_retries" validate:"gte=1"`
	RetryDelay     string   `toml:"retry_delay"`     // fixed delay between attempts within a cycle
	HeaderTimeout  string   `toml:"header_timeout"`  // response-header receipt phase
	RequestTimeout string   `toml:"request_timeout"` // full request including body read
	FailureMarkers []string `toml:"failure_markers"` // empty = built-in marker set
}

// MonitorConfig points at the external health monitor's push endpoint.
type MonitorConfig struct {
	Enabled bool   `toml:"enabled"`
	PushURL string `toml:"push_url" validate:"omitempty,url"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Target: TargetConfig{
			ExpectedCodes: []int{200},
		},
		Poll: PollConfig{
			Interval:       "5m",
			MaxRetries:     5,
			RetryDelay:     "2s",
			HeaderTimeout:  "30s",
			RequestTimeout: "60s",
		},
		Monitor: MonitorConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from files with priority:
// defaults -> file1 -> file2 -> ... -> env -> CLI flags.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIGIL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Target configuration
	if targetURL := os.Getenv("VIGIL_TARGET_URL"); targetURL != "" {
		config.Target.URL = targetURL
	}
	if pageURL := os.Getenv("VIGIL_PAGE_URL"); pageURL != "" {
		config.Target.PageURL = pageURL
	}
	if cookie := os.Getenv("VIGIL_COOKIE"); cookie != "" {
		config.Target.Cookie = cookie
	}
	if codes := os.Getenv("VIGIL_EXPECTED_CODES"); codes != "" {
		parsed := []int{}
		for _, part := range strings.Split(codes, ",") {
			if code, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				parsed = append(parsed, code)
			}
		}
		if len(parsed) > 0 {
			config.Target.ExpectedCodes = parsed
		}
	}

	// Poll configuration
	if interval := os.Getenv("VIGIL_POLL_INTERVAL"); interval != "" {
		config.Poll.Interval = interval
	}
	if retries := os.Getenv("VIGIL_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Poll.MaxRetries = r
		}
	}
	if delay := os.Getenv("VIGIL_RETRY_DELAY"); delay != "" {
		config.Poll.RetryDelay = delay
	}

	// Monitor configuration
	if pushURL := os.Getenv("VIGIL_MONITOR_URL"); pushURL != "" {
		config.Monitor.PushURL = pushURL
	}
	if enabled := os.Getenv("VIGIL_MONITOR_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Monitor.Enabled = b
		}
	}

	// Logging configuration
	if level := os.Getenv("VIGIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VIGIL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, interval string) {
	if interval != "" {
		config.Poll.Interval = interval
	}
}

// Validate checks the resolved configuration before the core runs.
// Errors here are process-fatal; nothing about the config is checked
// again after startup.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Target.URL == "" && c.Target.PageURL == "" {
		return fmt.Errorf("at least one of target.url or target.page_url is required")
	}

	if c.Target.Cookie == "" {
		return fmt.Errorf("target.cookie (seed cookie string) is required")
	}

	for name, raw := range map[string]string{"target.url": c.Target.URL, "target.page_url": c.Target.PageURL} {
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("%s must be a well-formed absolute URL, got %q", name, raw)
		}
	}

	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.RetryDelay(); err != nil {
		return err
	}
	if _, err := c.HeaderTimeout(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}

	if c.Monitor.Enabled && c.Monitor.PushURL == "" {
		return fmt.Errorf("monitor.push_url is required when monitor.enabled is true")
	}

	return nil
}

// PollInterval returns the parsed poll interval with the floor enforced.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Poll.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll.interval %q: %w", c.Poll.Interval, err)
	}
	if d < MinPollInterval {
		d = MinPollInterval
	}
	return d, nil
}

// RetryDelay returns the parsed fixed inter-retry delay.
func (c *Config) RetryDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Poll.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid poll.retry_delay %q: %w", c.Poll.RetryDelay, err)
	}
	return d, nil
}

// HeaderTimeout returns the parsed response-header receipt timeout.
func (c *Config) HeaderTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Poll.HeaderTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid poll.header_timeout %q: %w", c.Poll.HeaderTimeout, err)
	}
	return d, nil
}

// RequestTimeout returns the parsed full-request timeout (body read included).
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Poll.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid poll.request_timeout %q: %w", c.Poll.RequestTimeout, err)
	}
	return d, nil
}
