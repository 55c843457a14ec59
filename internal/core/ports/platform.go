package ports

import (
	"context"
	"image"

	"camcapture/internal/core/domain"
)

// Track is one independently enable-able channel of a Stream.
type Track interface {
	ID() string
	Kind() domain.TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	// Stop releases the underlying hardware. Stopping twice is a no-op.
	Stop()
	Stopped() bool
}

// Stream is a live camera+microphone handle.
type Stream interface {
	ID() string
	Resolution() domain.Resolution
	Tracks() []Track
	AudioTracks() []Track
	VideoTracks() []Track
}

// StreamAcquirer requests a stream from the capture hardware.
type StreamAcquirer interface {
	RequestStream(ctx context.Context, constraints domain.Constraints) (Stream, error)
}

// ChunkHandler receives recorder output in order.
type ChunkHandler func(chunk []byte)

// Recorder segments a bound stream into chunks. Stop returns once the final
// chunk has been delivered.
type Recorder interface {
	Start(onChunk ChunkHandler) error
	Stop(ctx context.Context) error
	MimeType() string
}

type RecorderFactory interface {
	NewRecorder(stream Stream) (Recorder, error)
}

// FrameGrabber samples the current video frame of a stream.
type FrameGrabber interface {
	GrabFrame(ctx context.Context, stream Stream) (image.Image, error)
}

// StillRenderer draws a frame through a display filter and encodes it.
type StillRenderer interface {
	Apply(img image.Image, filter domain.DisplayFilter) image.Image
	Render(img image.Image, filter domain.DisplayFilter) ([]byte, error)
	MimeType() string
}

// Platform bundles the capture-side collaborators of a backend.
type Platform interface {
	StreamAcquirer
	RecorderFactory
	FrameGrabber
	Name() string
	HealthCheck(ctx context.Context) error
}
