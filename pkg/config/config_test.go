package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	return cfg
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	// Zero out rate limiting values to ensure they are ignored when disabled.
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "http rps must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
		{
			name: "http burst must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.Burst = 0
			},
		},
		{
			name: "http max concurrent must be >= 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.MaxConcurrent = -1
			},
		},
		{
			name: "unknown capture backend",
			mutate: func(c *Config) {
				c.Capture.Backend = "gstreamer"
			},
		},
		{
			name: "unknown default tier",
			mutate: func(c *Config) {
				c.Capture.DefaultTier = "4k"
			},
		},
		{
			name: "unknown facing mode",
			mutate: func(c *Config) {
				c.Capture.FacingMode = "left"
			},
		},
		{
			name: "recorder chunk interval must be > 0",
			mutate: func(c *Config) {
				c.Recorder.ChunkInterval = 0
			},
		},
		{
			name: "s3 sink requires bucket",
			mutate: func(c *Config) {
				c.Export.Sink = "s3"
				c.Export.S3.Bucket = ""
			},
		},
		{
			name: "s3 bucket must follow naming rules",
			mutate: func(c *Config) {
				c.Export.Sink = "s3"
				c.Export.S3.Bucket = "My_Bucket"
			},
		},
		{
			name: "s3 prefix must not traverse",
			mutate: func(c *Config) {
				c.Export.Sink = "s3"
				c.Export.S3.Bucket = "media"
				c.Export.S3.Prefix = "captures/../other"
			},
		},
		{
			name: "redis channel must not contain spaces",
			mutate: func(c *Config) {
				c.Events.Redis.Enabled = true
				c.Events.Redis.Channel = "cam events"
			},
		},
		{
			name: "file sink requires directory",
			mutate: func(c *Config) {
				c.Export.Directory = ""
			},
		},
		{
			name: "unknown transcode mode",
			mutate: func(c *Config) {
				c.Export.Transcode = "sometimes"
			},
		},
		{
			name: "vp8 recordings cannot be remuxed to mp4",
			mutate: func(c *Config) {
				c.Capture.Backend = "ffmpeg"
				c.Recorder.VideoCodec = "libvpx"
				c.Export.Transcode = "ask"
			},
		},
		{
			name: "preview jpeg quality out of range",
			mutate: func(c *Config) {
				c.Preview.JPEGQuality = 0
			},
		},
		{
			name: "redis channel required when enabled",
			mutate: func(c *Config) {
				c.Events.Redis.Enabled = true
				c.Events.Redis.Channel = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("non-existent-config.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Address)
	assert.Equal(t, "high", cfg.Capture.DefaultTier)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
server:
  address: ":9000"
  read_timeout: 10s
  write_timeout: 15s

capture:
  backend: synthetic
  default_tier: standard
  filter: "grayscale(100%)"
  synthetic:
    max_width: 1280
    max_height: 720

recorder:
  chunk_interval: 250ms

export:
  sink: file
  directory: /tmp/captures
  transcode: ask

logging:
  level: debug
`)

	t.Setenv("CAMCAPTURE_SERVER_ADDRESS", ":9100")
	t.Setenv("CAMCAPTURE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "synthetic", cfg.Capture.Backend)
	assert.Equal(t, "standard", cfg.Capture.DefaultTier)
	assert.Equal(t, "grayscale(100%)", cfg.Capture.Filter)
	assert.Equal(t, 1280, cfg.Capture.Synthetic.MaxWidth)
	assert.Equal(t, 250*time.Millisecond, cfg.Recorder.ChunkInterval)
	assert.Equal(t, "ask", cfg.Export.Transcode)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "/dev/video0", cfg.Capture.FFmpeg.Devices["environment"])
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	path := writeTempConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := writeTempConfig(t, `
export:
  sink: ftp
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.sink")
}
