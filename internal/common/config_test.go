package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	config := NewDefaultConfig()
	config.Target.URL = "https://app.example/"
	config.Target.Cookie = "session=abc"
	return config
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, []int{200}, config.Target.ExpectedCodes)
	assert.Equal(t, "5m", config.Poll.Interval)
	assert.Equal(t, 5, config.Poll.MaxRetries)
	assert.Equal(t, "2s", config.Poll.RetryDelay)
	assert.False(t, config.Monitor.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFiles(t *testing.T) {
	path := writeConfigFile(t, `
[target]
url = "https://app.example/"
cookie = "session=abc"
expected_codes = [200, 304]

[poll]
interval = "10m"
max_retries = 3

[monitor]
enabled = true
push_url = "https://monitor.example/push"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "https://app.example/", config.Target.URL)
	assert.Equal(t, []int{200, 304}, config.Target.ExpectedCodes)
	assert.Equal(t, "10m", config.Poll.Interval)
	assert.Equal(t, 3, config.Poll.MaxRetries)
	assert.True(t, config.Monitor.Enabled)
	// Unset fields keep their defaults.
	assert.Equal(t, "2s", config.Poll.RetryDelay)
}

func TestLaterFileOverridesEarlier(t *testing.T) {
	base := writeConfigFile(t, "[poll]\ninterval = \"10m\"\n")
	override := filepath.Join(t.TempDir(), "override.toml")
	require.NoError(t, os.WriteFile(override, []byte("[poll]\ninterval = \"30m\"\n"), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, "30m", config.Poll.Interval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_TARGET_URL", "https://env.example/")
	t.Setenv("VIGIL_POLL_INTERVAL", "15m")
	t.Setenv("VIGIL_EXPECTED_CODES", "200, 302")
	t.Setenv("VIGIL_MONITOR_ENABLED", "true")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/", config.Target.URL)
	assert.Equal(t, "15m", config.Poll.Interval)
	assert.Equal(t, []int{200, 302}, config.Target.ExpectedCodes)
	assert.True(t, config.Monitor.Enabled)
}

func TestFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, "20m")
	assert.Equal(t, "20m", config.Poll.Interval)

	ApplyFlagOverrides(config, "")
	assert.Equal(t, "20m", config.Poll.Interval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing both URLs", func(c *Config) { c.Target.URL = "" }, "at least one of"},
		{"page URL alone is enough", func(c *Config) {
			c.Target.URL = ""
			c.Target.PageURL = "https://host.example/spaces/u/s"
		}, ""},
		{"missing seed cookie", func(c *Config) { c.Target.Cookie = "" }, "target.cookie"},
		{"relative target URL", func(c *Config) { c.Target.URL = "/not/absolute" }, "url"},
		{"bad interval", func(c *Config) { c.Poll.Interval = "soon" }, "poll.interval"},
		{"zero retries", func(c *Config) { c.Poll.MaxRetries = 0 }, "invalid configuration"},
		{"monitor enabled without URL", func(c *Config) { c.Monitor.Enabled = true }, "monitor.push_url"},
		{"empty expected codes", func(c *Config) { c.Target.ExpectedCodes = nil }, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validTestConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPollIntervalFloor(t *testing.T) {
	config := validTestConfig()
	config.Poll.Interval = "5s"

	interval, err := config.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, MinPollInterval, interval)

	config.Poll.Interval = "10m"
	interval, err = config.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, interval)
}
