package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/internal/core/services"
	"camcapture/internal/infrastructure/events"
	"camcapture/internal/infrastructure/haptics"
	"camcapture/internal/infrastructure/monitoring"
	"camcapture/internal/infrastructure/platform/ffmpeg"
	"camcapture/internal/infrastructure/platform/synthetic"
	"camcapture/internal/infrastructure/render"
	"camcapture/internal/infrastructure/storage"
	"camcapture/internal/infrastructure/transcode"
	"camcapture/pkg/config"
	"camcapture/pkg/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds every wired component of one capture process.
type app struct {
	cfg         *config.Config
	log         *zap.SugaredLogger
	instanceID  string
	defaultTier domain.QualityTier

	platform   ports.Platform
	renderer   *render.Renderer
	session    *services.CaptureSession
	export     *services.ExportService
	controller *services.SessionController
	transcoder *transcode.FFmpegTranscoder

	bus      *events.MemoryBus
	redis    *redis.Client
	redisBus *events.RedisBus

	registry  *prometheus.Registry
	collector *monitoring.PrometheusCollector
	health    *monitoring.HealthChecker
	tracer    *tracing.TracerProvider
}

type appOptions struct {
	prompt    ports.TranscodePrompt
	bellOut   io.Writer
	withRedis bool
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts appOptions) (*app, error) {
	tier, err := domain.ParseTier(cfg.Capture.DefaultTier)
	if err != nil {
		return nil, err
	}
	filter, err := domain.ParseFilter(cfg.Capture.Filter)
	if err != nil {
		return nil, err
	}
	mode, err := services.ParseTranscodeMode(cfg.Export.Transcode)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		instanceID:  uuid.NewString(),
		defaultTier: tier,
		renderer:    render.NewPNGRenderer(),
		registry:    prometheus.NewRegistry(),
		health:      monitoring.NewHealthChecker(),
		bus:         events.NewMemoryBus(256, log.With("component", "events")),
	}

	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	if cfg.Tracing.JaegerURL != "" {
		tc.JaegerURL = cfg.Tracing.JaegerURL
	}
	if cfg.Tracing.Environment != "" {
		tc.Environment = cfg.Tracing.Environment
	}
	if cfg.Tracing.SampleRate > 0 {
		tc.SampleRate = cfg.Tracing.SampleRate
	}
	a.tracer, err = tracing.Init(tc)
	if err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.collector = monitoring.NewPrometheusCollector(a.registry)

	a.platform, err = newPlatform(cfg, log)
	if err != nil {
		return nil, err
	}
	a.health.AddPlatformCheck(a.platform, 2*time.Second)

	sink, err := newSink(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.transcoder = transcode.NewFFmpegTranscoder(cfg.Capture.FFmpeg.Binary, log.With("component", "transcoder"))
	if mode != services.TranscodeNever {
		a.health.AddTranscoderCheck(a.transcoder, 2*time.Second)
	}

	var pulse ports.Haptics = haptics.Noop{}
	if cfg.Export.Haptics && opts.bellOut != nil {
		pulse = haptics.NewBell(opts.bellOut, log)
	}

	quality := services.NewQualityService(domain.FacingMode(cfg.Capture.FacingMode))
	a.session = services.NewCaptureSession(a.platform, a.renderer, quality, log.With("component", "session"))
	a.session.SetEventPublisher(a.bus)
	a.session.SetMetrics(a.collector)
	a.session.SetFilter(filter)

	a.export = services.NewExportService(sink, a.transcoder, opts.prompt, pulse, services.ExportOptions{
		SessionID:        a.session.ID(),
		SinkName:         cfg.Export.Sink,
		Transcode:        mode,
		TimestampedNames: cfg.Export.TimestampedNames,
	}, log.With("component", "export"))
	a.export.SetEventPublisher(a.bus)
	a.export.SetMetrics(a.collector)

	a.controller = services.NewSessionController(a.session, a.export, log.With("component", "controller"))

	if opts.withRedis && cfg.Events.Redis.Enabled {
		r := cfg.Events.Redis
		a.redis, err = events.NewRedisClient(r.Address, r.Password, r.DB, r.PoolSize, log)
		if err != nil {
			return nil, err
		}
		a.redisBus = events.NewRedisBus(a.redis, r.Channel, a.instanceID, log.With("component", "redis_bus"))
		a.bus.Forward(a.redisBus)
		a.health.AddRedisCheck(a.redis, 2*time.Second)
	}

	log.Infow("capture components ready",
		"backend", a.platform.Name(),
		"sink", cfg.Export.Sink,
		"transcode", mode,
		"session_id", a.session.ID(),
		"instance_id", a.instanceID,
	)
	return a, nil
}

func newPlatform(cfg *config.Config, log *zap.SugaredLogger) (ports.Platform, error) {
	switch cfg.Capture.Backend {
	case "synthetic":
		sc := synthetic.Config{
			MaxWidth:      cfg.Capture.Synthetic.MaxWidth,
			MaxHeight:     cfg.Capture.Synthetic.MaxHeight,
			ChunkInterval: cfg.Recorder.ChunkInterval,
		}
		if len(cfg.Capture.Synthetic.FailTiers) > 0 {
			tiers := make([]domain.QualityTier, 0, len(cfg.Capture.Synthetic.FailTiers))
			for _, s := range cfg.Capture.Synthetic.FailTiers {
				t, err := domain.ParseTier(s)
				if err != nil {
					return nil, fmt.Errorf("capture.synthetic.fail_tiers: %w", err)
				}
				tiers = append(tiers, t)
			}
			sc.Fail = synthetic.FailTiers(tiers...)
		}
		return synthetic.New(sc), nil

	case "ffmpeg":
		fc := cfg.Capture.FFmpeg
		devices := make(map[domain.FacingMode]string, len(fc.Devices))
		for facing, dev := range fc.Devices {
			devices[domain.FacingMode(facing)] = dev
		}
		return ffmpeg.New(ffmpeg.Config{
			Binary:        fc.Binary,
			InputFormat:   fc.InputFormat,
			AudioFormat:   fc.AudioFormat,
			AudioDevice:   fc.AudioDevice,
			Devices:       devices,
			ProbeTimeout:  fc.ProbeTimeout,
			ChunkInterval: cfg.Recorder.ChunkInterval,
			VideoCodec:    cfg.Recorder.VideoCodec,
			AudioCodec:    cfg.Recorder.AudioCodec,
		}, log), nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", cfg.Capture.Backend)
}

func newSink(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (ports.DownloadSink, error) {
	if cfg.Export.Sink == "s3" {
		s3cfg := cfg.Export.S3
		return storage.NewS3Sink(ctx, storage.S3Config{
			Bucket:    s3cfg.Bucket,
			Prefix:    s3cfg.Prefix,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		}, log.With("component", "s3_sink"))
	}
	return storage.NewFileSink(cfg.Export.Directory)
}

// Close releases the camera and shuts down every connection.
func (a *app) Close(ctx context.Context) {
	a.controller.Stop()

	if a.redisBus != nil {
		if err := a.redisBus.Close(); err != nil {
			a.log.Warnw("error closing redis subscription", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warnw("error closing redis client", "error", err)
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.log.Warnw("error shutting down tracer", "error", err)
	}
}

func stderrIfTerminal() io.Writer {
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return os.Stderr
	}
	return nil
}
