package ports

import (
	"context"
	"io"
	"time"

	"camcapture/internal/core/domain"
)

// Transcoder converts a webm recording into an mp4 container. It may be
// absent at runtime; Available reports that without failing.
type Transcoder interface {
	Available(ctx context.Context) bool
	Transcode(ctx context.Context, src *domain.Artifact) (*domain.Artifact, error)
}

// DownloadSink persists an exported artifact under a file name.
type DownloadSink interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Location(name string) string
}

type Haptics interface {
	Pulse(d time.Duration)
}

type TranscodeDecision int

const (
	KeepOriginal TranscodeDecision = iota
	ConvertToMP4
)

// TranscodePrompt asks whoever drives the session whether a finished
// recording should be converted.
type TranscodePrompt interface {
	Decide(ctx context.Context, recording *domain.Artifact) TranscodeDecision
}

type TranscodePromptFunc func(ctx context.Context, recording *domain.Artifact) TranscodeDecision

func (f TranscodePromptFunc) Decide(ctx context.Context, recording *domain.Artifact) TranscodeDecision {
	return f(ctx, recording)
}
