package config

import (
	"fmt"
	"os"
	"time"

	"camcapture/pkg/validation"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Preview struct {
		Enabled      bool          `yaml:"enabled"`
		FrameRate    float64       `yaml:"frame_rate"`
		JPEGQuality  int           `yaml:"jpeg_quality"`
		MaxWidth     int           `yaml:"max_width"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		MaxClients   int           `yaml:"max_clients"`
	} `yaml:"preview"`

	Capture struct {
		Backend     string `yaml:"backend"` // ffmpeg | synthetic
		FacingMode  string `yaml:"facing_mode"`
		DefaultTier string `yaml:"default_tier"`
		Filter      string `yaml:"filter"`
		AutoStart   bool   `yaml:"auto_start"`

		FFmpeg struct {
			Binary       string            `yaml:"binary"`
			InputFormat  string            `yaml:"input_format"`
			AudioFormat  string            `yaml:"audio_format"`
			AudioDevice  string            `yaml:"audio_device"`
			Devices      map[string]string `yaml:"devices"` // facing mode -> video device
			ProbeTimeout time.Duration     `yaml:"probe_timeout"`
		} `yaml:"ffmpeg"`

		Synthetic struct {
			MaxWidth  int      `yaml:"max_width"`
			MaxHeight int      `yaml:"max_height"`
			FailTiers []string `yaml:"fail_tiers"`
		} `yaml:"synthetic"`
	} `yaml:"capture"`

	Recorder struct {
		ChunkInterval time.Duration `yaml:"chunk_interval"`
		VideoCodec    string        `yaml:"video_codec"`
		AudioCodec    string        `yaml:"audio_codec"`
	} `yaml:"recorder"`

	Export struct {
		Sink             string `yaml:"sink"` // file | s3
		Directory        string `yaml:"directory"`
		Transcode        string `yaml:"transcode"` // never | always | ask
		TimestampedNames bool   `yaml:"timestamped_names"`
		Haptics          bool   `yaml:"haptics"`

		S3 struct {
			Bucket    string `yaml:"bucket"`
			Prefix    string `yaml:"prefix"`
			Region    string `yaml:"region"`
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"s3"`
	} `yaml:"export"`

	Events struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
			Channel  string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"events"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if err := validation.ValidateNonEmptyString(c.Server.Address, "server.address"); err != nil {
		return err
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Preview
	if c.Preview.Enabled {
		if c.Preview.FrameRate <= 0 {
			return fmt.Errorf("preview.frame_rate must be > 0 when preview.enabled=true")
		}
		if c.Preview.JPEGQuality < 1 || c.Preview.JPEGQuality > 100 {
			return fmt.Errorf("preview.jpeg_quality must be within 1..100")
		}
		if c.Preview.PingInterval <= 0 || c.Preview.PongTimeout <= 0 {
			return fmt.Errorf("preview.ping_interval and preview.pong_timeout must be > 0")
		}
		if c.Preview.MaxClients < 0 {
			return fmt.Errorf("preview.max_clients must be >= 0")
		}
	}

	// Capture
	switch c.Capture.Backend {
	case "ffmpeg", "synthetic":
	default:
		return fmt.Errorf("capture.backend must be one of ffmpeg, synthetic (got %q)", c.Capture.Backend)
	}
	switch c.Capture.FacingMode {
	case "environment", "user":
	default:
		return fmt.Errorf("capture.facing_mode must be environment or user")
	}
	switch c.Capture.DefaultTier {
	case "high", "standard":
	default:
		return fmt.Errorf("capture.default_tier must be high or standard")
	}
	if c.Capture.Backend == "ffmpeg" && c.Capture.FFmpeg.Binary == "" {
		return fmt.Errorf("capture.ffmpeg.binary must not be empty when capture.backend=ffmpeg")
	}

	// Recorder
	if c.Recorder.ChunkInterval <= 0 {
		return fmt.Errorf("recorder.chunk_interval must be > 0")
	}

	// Export
	switch c.Export.Sink {
	case "file":
		if c.Export.Directory == "" {
			return fmt.Errorf("export.directory must not be empty when export.sink=file")
		}
	case "s3":
		if err := validation.ValidateBucketName(c.Export.S3.Bucket); err != nil {
			return fmt.Errorf("export.s3.bucket: %w", err)
		}
		if err := validation.ValidateObjectPrefix(c.Export.S3.Prefix); err != nil {
			return fmt.Errorf("export.s3.prefix: %w", err)
		}
	default:
		return fmt.Errorf("export.sink must be one of file, s3 (got %q)", c.Export.Sink)
	}
	switch c.Export.Transcode {
	case "never", "always", "ask":
	default:
		return fmt.Errorf("export.transcode must be one of never, always, ask")
	}
	if c.Export.Transcode != "never" && c.Capture.Backend == "ffmpeg" && c.Recorder.VideoCodec == "libvpx" {
		return fmt.Errorf("recorder.video_codec libvpx (VP8) cannot be copied into mp4; use libvpx-vp9 or export.transcode=never")
	}

	// Events
	if c.Events.Redis.Enabled {
		if c.Events.Redis.Address == "" {
			return fmt.Errorf("events.redis.address must not be empty when events.redis.enabled=true")
		}
		if c.Events.Redis.PoolSize <= 0 {
			return fmt.Errorf("events.redis.pool_size must be > 0 when events.redis.enabled=true")
		}
		if err := validation.ValidateChannel(c.Events.Redis.Channel); err != nil {
			return fmt.Errorf("events.redis.channel: %w", err)
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Tracing
	if c.Tracing.Enabled && (c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be within (0, 1]")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = "127.0.0.1:8090"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.Preview.Enabled = true
	cfg.Preview.FrameRate = 10
	cfg.Preview.JPEGQuality = 75
	cfg.Preview.MaxWidth = 960
	cfg.Preview.PingInterval = 30 * time.Second
	cfg.Preview.PongTimeout = 60 * time.Second
	cfg.Preview.MaxClients = 8

	cfg.Capture.Backend = "ffmpeg"
	cfg.Capture.FacingMode = "environment"
	cfg.Capture.DefaultTier = "high"
	cfg.Capture.Filter = "none"
	cfg.Capture.AutoStart = true
	cfg.Capture.FFmpeg.Binary = "ffmpeg"
	cfg.Capture.FFmpeg.InputFormat = "v4l2"
	cfg.Capture.FFmpeg.AudioFormat = "alsa"
	cfg.Capture.FFmpeg.AudioDevice = "default"
	cfg.Capture.FFmpeg.Devices = map[string]string{
		"environment": "/dev/video0",
		"user":        "/dev/video1",
	}
	cfg.Capture.Synthetic.MaxWidth = 1920
	cfg.Capture.Synthetic.MaxHeight = 1080

	cfg.Recorder.ChunkInterval = time.Second
	cfg.Recorder.VideoCodec = "libvpx-vp9"
	cfg.Recorder.AudioCodec = "libopus"

	cfg.Export.Sink = "file"
	cfg.Export.Directory = "captures"
	cfg.Export.Transcode = "never"
	cfg.Export.TimestampedNames = true
	cfg.Export.Haptics = true

	cfg.Events.Redis.Enabled = false
	cfg.Events.Redis.Address = "localhost:6379"
	cfg.Events.Redis.PoolSize = 10
	cfg.Events.Redis.Channel = "camcapture:events"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("CAMCAPTURE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if backend := os.Getenv("CAMCAPTURE_BACKEND"); backend != "" {
		c.Capture.Backend = backend
	}
	if dir := os.Getenv("CAMCAPTURE_EXPORT_DIR"); dir != "" {
		c.Export.Directory = dir
	}
	if level := os.Getenv("CAMCAPTURE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if bucket := os.Getenv("CAMCAPTURE_S3_BUCKET"); bucket != "" {
		c.Export.S3.Bucket = bucket
	}
}
