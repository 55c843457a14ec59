// Package ffmpeg captures from V4L2/ALSA devices by driving the ffmpeg
// binary. One long-running ffmpeg process holds the camera for the lifetime
// of a stream; recorders encode its frames in a second process.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"go.uber.org/zap"
)

type Config struct {
	Binary        string
	InputFormat   string
	AudioFormat   string
	AudioDevice   string
	Devices       map[domain.FacingMode]string
	FrameRate     int
	ProbeTimeout  time.Duration
	ChunkInterval time.Duration
	VideoCodec    string
	AudioCodec    string
}

func (c *Config) applyDefaults() {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "v4l2"
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "alsa"
	}
	if c.AudioDevice == "" {
		c.AudioDevice = "default"
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = time.Second
	}
	if c.VideoCodec == "" {
		c.VideoCodec = "libvpx-vp9"
	}
	if c.AudioCodec == "" {
		c.AudioCodec = "libopus"
	}
}

type Platform struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func New(cfg Config, logger *zap.SugaredLogger) *Platform {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Platform{cfg: cfg, logger: logger.With("component", "ffmpeg")}
}

func (p *Platform) Name() string { return "ffmpeg" }

// HealthCheck verifies the ffmpeg binary can be found.
func (p *Platform) HealthCheck(ctx context.Context) error {
	if _, err := exec.LookPath(p.cfg.Binary); err != nil {
		return fmt.Errorf("ffmpeg binary %q not found: %w", p.cfg.Binary, err)
	}
	return nil
}

// RequestStream starts the capture process and waits for its first frame.
// The stream resolution is whatever the device actually delivered, which may
// differ from the ideal constraints. The wait is bounded by ctx and, when
// ProbeTimeout is set, by ProbeTimeout.
func (p *Platform) RequestStream(ctx context.Context, c domain.Constraints) (ports.Stream, error) {
	device, ok := p.cfg.Devices[c.FacingMode]
	if !ok || device == "" {
		return nil, fmt.Errorf("%w: no device configured for facing mode %q", domain.ErrDeviceNotFound, c.FacingMode)
	}

	s, err := startCapture(p.cfg, device, c, p.logger)
	if err != nil {
		return nil, err
	}
	return p.awaitFirstFrame(ctx, s, device, c)
}

func (p *Platform) awaitFirstFrame(ctx context.Context, s *captureStream, device string, c domain.Constraints) (ports.Stream, error) {
	var probe <-chan time.Time
	if p.cfg.ProbeTimeout > 0 {
		timer := time.NewTimer(p.cfg.ProbeTimeout)
		defer timer.Stop()
		probe = timer.C
	}

	select {
	case first := <-s.firstFrame:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(first))
		if err != nil {
			s.kill()
			return nil, fmt.Errorf("%w: undecodable first frame: %v", domain.ErrUnsupportedSettings, err)
		}
		s.finish(domain.Resolution{Width: cfg.Width, Height: cfg.Height})
		p.logger.Infow("capture started",
			"device", device,
			"requested", c.Resolution().String(),
			"actual", s.Resolution().String(),
			"audio", c.Audio,
		)
		return s, nil
	case <-s.done:
		s.cancel()
		return nil, classify(s.stderr.String(), s.exitErr)
	case <-probe:
		s.kill()
		return nil, fmt.Errorf("%w: no frame from %s within %s", domain.ErrUnsupportedSettings, device, p.cfg.ProbeTimeout)
	case <-ctx.Done():
		s.kill()
		return nil, ctx.Err()
	}
}

func (p *Platform) NewRecorder(stream ports.Stream) (ports.Recorder, error) {
	s, ok := stream.(*captureStream)
	if !ok {
		return nil, fmt.Errorf("stream %s was not produced by the ffmpeg backend", stream.ID())
	}
	return &Recorder{cfg: p.cfg, stream: s, logger: p.logger}, nil
}

// GrabFrame decodes the most recent MJPEG frame of the stream.
func (p *Platform) GrabFrame(ctx context.Context, stream ports.Stream) (image.Image, error) {
	s, ok := stream.(*captureStream)
	if !ok {
		return nil, fmt.Errorf("stream %s was not produced by the ffmpeg backend", stream.ID())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := s.latestFrame()
	if frame == nil {
		return nil, domain.ErrStreamEnded
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func isExitSignal(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && !exitErr.Exited()
}
