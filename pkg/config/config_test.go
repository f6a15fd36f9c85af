package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, time.Second, config.RateLimit.PageDelay)
	assert.Equal(t, 500*time.Millisecond, config.RateLimit.DownloadDelay)
	assert.Equal(t, FeedSourceHTML, config.Feed.Source)
	assert.Equal(t, "https://fantia.jp", config.Session.BaseURL)
	assert.True(t, config.Checkpoint.Backup)
	assert.NoError(t, config.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FCSYNC_SESSION_ID", "test-session-id")
	t.Setenv("FCSYNC_OUTPUT_DIR", "/tmp/fanclubs")
	t.Setenv("FCSYNC_FEED_SOURCE", "API")
	t.Setenv("FCSYNC_PAGE_DELAY", "2s")
	t.Setenv("FCSYNC_MAX_PAGES", "4")
	t.Setenv("FCSYNC_LOG_LEVEL", "debug")
	t.Setenv("FCSYNC_CHANNELS", "12,34")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "test-session-id", config.Session.SessionID)
	assert.Equal(t, "/tmp/fanclubs", config.Output.BaseDirectory)
	assert.Equal(t, FeedSourceAPI, config.Feed.Source)
	assert.Equal(t, 2*time.Second, config.RateLimit.PageDelay)
	assert.Equal(t, 4, config.Feed.MaxPages)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, []int64{12, 34}, config.Feed.Channels)
	assert.Equal(t, 500*time.Millisecond, config.RateLimit.DownloadDelay)
}

func TestLoadFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("FCSYNC_DOWNLOAD_DELAY", "soon")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DownloadDelay")
	assert.Equal(t, 500*time.Millisecond, config.RateLimit.DownloadDelay)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcsync.yaml")
	content := `
session:
  session_id: "from-file"
output:
  base_directory: "/data/fanclubs"
rate_limit:
  page_delay: 3s
  download_delay: 250ms
feed:
  source: api
  channels: [101, 202]
checkpoint:
  file: "/data/checkpoints.json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "from-file", config.Session.SessionID)
	assert.Equal(t, "/data/fanclubs", config.Output.BaseDirectory)
	assert.Equal(t, 3*time.Second, config.RateLimit.PageDelay)
	assert.Equal(t, 250*time.Millisecond, config.RateLimit.DownloadDelay)
	assert.Equal(t, FeedSourceAPI, config.Feed.Source)
	assert.Equal(t, []int64{101, 202}, config.Feed.Channels)
	assert.Equal(t, "/data/checkpoints.json", config.Checkpoint.File)
	// untouched sections keep their defaults
	assert.Equal(t, "https://fantia.jp", config.Session.BaseURL)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [unclosed"), 0644))

	err := DefaultConfig().LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad feed source", func(c *Config) { c.Feed.Source = "rss" }, "invalid feed source"},
		{"negative page delay", func(c *Config) { c.RateLimit.PageDelay = -time.Second }, "page delay"},
		{"empty output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"negative max pages", func(c *Config) { c.Feed.MaxPages = -1 }, "max pages"},
		{"retry delays inverted", func(c *Config) { c.Retry.BaseDelay = time.Hour }, "retry base delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  base_directory: /from/file\nlogging:\n  level: warn\n"), 0644))
	t.Setenv("FCSYNC_OUTPUT_DIR", "/from/env")

	config, err := Load(path, map[string]interface{}{
		"log-level":  "debug",
		"page-delay": time.Duration(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "/from/env", config.Output.BaseDirectory)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, time.Duration(0), config.RateLimit.PageDelay)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fcsync.yaml")
	config := DefaultConfig()
	config.Feed.Channels = []int64{7}

	require.NoError(t, config.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, config, loaded)
}
