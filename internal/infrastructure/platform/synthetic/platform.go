// Package synthetic is a hardware-free capture backend: it hands out streams
// backed by a generated test pattern and a recorder emitting placeholder
// webm chunks. The camera can only be held by one stream at a time, like a
// real device.
package synthetic

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/internal/infrastructure/platform"
)

type Config struct {
	MaxWidth  int
	MaxHeight int
	// ChunkInterval drives timed chunk emission while recording. Zero leaves
	// emission to Recorder.Emit.
	ChunkInterval time.Duration
	// Fail, when set, is consulted before every stream request.
	Fail func(c domain.Constraints) error
}

// FailTiers returns a Fail hook rejecting the given tiers with a permission
// error.
func FailTiers(tiers ...domain.QualityTier) func(domain.Constraints) error {
	blocked := make(map[domain.Resolution]domain.QualityTier, len(tiers))
	for _, t := range tiers {
		blocked[t.Resolution()] = t
	}
	return func(c domain.Constraints) error {
		if t, ok := blocked[c.Resolution()]; ok {
			return fmt.Errorf("%w: %s capture refused", domain.ErrPermissionDenied, t)
		}
		return nil
	}
}

type Platform struct {
	cfg Config

	mu        sync.Mutex
	requests  []domain.Constraints
	camHeld   bool
	recorders []*Recorder
	frames    uint64
}

func New(cfg Config) *Platform {
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = 1920
	}
	if cfg.MaxHeight == 0 {
		cfg.MaxHeight = 1080
	}
	return &Platform{cfg: cfg}
}

func (p *Platform) Name() string { return "synthetic" }

func (p *Platform) HealthCheck(ctx context.Context) error { return nil }

func (p *Platform) RequestStream(ctx context.Context, c domain.Constraints) (ports.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, c)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.cfg.Fail != nil {
		if err := p.cfg.Fail(c); err != nil {
			return nil, err
		}
	}
	if c.IdealWidth > p.cfg.MaxWidth || c.IdealHeight > p.cfg.MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d exceeds sensor %dx%d",
			domain.ErrUnsupportedSettings, c.IdealWidth, c.IdealHeight, p.cfg.MaxWidth, p.cfg.MaxHeight)
	}
	if p.camHeld {
		return nil, fmt.Errorf("%w: camera held by another stream", domain.ErrDeviceBusy)
	}

	p.camHeld = true
	tracks := []ports.Track{
		platform.NewTrack(domain.TrackKindVideo, fmt.Sprintf("synthetic camera (%s)", c.FacingMode), p.releaseCamera),
	}
	if c.Audio {
		tracks = append(tracks, platform.NewTrack(domain.TrackKindAudio, "synthetic microphone", nil))
	}
	return platform.NewStream(c.Resolution(), tracks...), nil
}

func (p *Platform) releaseCamera() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.camHeld = false
}

func (p *Platform) NewRecorder(stream ports.Stream) (ports.Recorder, error) {
	if len(stream.VideoTracks()) == 0 {
		return nil, fmt.Errorf("stream %s has no video track", stream.ID())
	}
	r := &Recorder{stream: stream, interval: p.cfg.ChunkInterval}

	p.mu.Lock()
	p.recorders = append(p.recorders, r)
	p.mu.Unlock()
	return r, nil
}

// GrabFrame renders SMPTE-style colour bars with a marker that moves on
// every grab.
func (p *Platform) GrabFrame(ctx context.Context, stream ports.Stream) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	videos := stream.VideoTracks()
	if len(videos) == 0 || videos[0].Stopped() {
		return nil, domain.ErrStreamEnded
	}

	p.mu.Lock()
	p.frames++
	n := p.frames
	p.mu.Unlock()

	res := stream.Resolution()
	return TestPattern(res.Width, res.Height, n), nil
}

// Requests returns every constraint set passed to RequestStream.
func (p *Platform) Requests() []domain.Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Constraints, len(p.requests))
	copy(out, p.requests)
	return out
}

// CameraHeld reports whether a live stream still holds the camera.
func (p *Platform) CameraHeld() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.camHeld
}

// LastRecorder returns the most recently created recorder, or nil.
func (p *Platform) LastRecorder() *Recorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.recorders) == 0 {
		return nil
	}
	return p.recorders[len(p.recorders)-1]
}

var bars = []color.NRGBA{
	{R: 192, G: 192, B: 192, A: 255},
	{R: 192, G: 192, B: 0, A: 255},
	{R: 0, G: 192, B: 192, A: 255},
	{R: 0, G: 192, B: 0, A: 255},
	{R: 192, G: 0, B: 192, A: 255},
	{R: 192, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 192, A: 255},
}

func TestPattern(w, h int, frame uint64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	barW := (w + len(bars) - 1) / len(bars)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			c := bars[x/barW]
			row[x*4+0] = c.R
			row[x*4+1] = c.G
			row[x*4+2] = c.B
			row[x*4+3] = c.A
		}
	}

	size := h / 10
	if size < 1 {
		size = 1
	}
	span := w - size
	if span < 1 {
		span = 1
	}
	x0 := int(frame*uint64(size/4+1)) % span
	y0 := h - size
	for y := y0; y < h; y++ {
		for x := x0; x < x0+size && x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}
