package ports

import (
	"context"

	"camcapture/internal/core/domain"
)

type CaptureService interface {
	Acquire(ctx context.Context, tier domain.QualityTier) error
	SetTier(ctx context.Context, tier domain.QualityTier) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*domain.Artifact, error)
	SetAudioEnabled(enabled bool) error
	SetFilter(filter domain.DisplayFilter)
	CaptureStill(ctx context.Context) (*domain.Artifact, error)
	Teardown()
	Status() domain.SessionStatus
	Stream() Stream
	Filter() domain.DisplayFilter
}

type ExportService interface {
	ExportRecording(ctx context.Context, recording *domain.Artifact) (*domain.ExportResult, error)
	ExportStill(ctx context.Context, still *domain.Artifact) (*domain.ExportResult, error)
	Latest(kind domain.ArtifactKind) (*domain.Artifact, bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.SessionEvent) error
}

// CaptureMetrics receives session measurements.
type CaptureMetrics interface {
	RecordAcquisition(tier domain.QualityTier, ok bool)
	RecordFallback()
	RecordStateChange(state domain.SessionState)
	RecordRecording(artifact *domain.Artifact, seconds float64)
	RecordDiscard(chunks int)
	RecordStill(artifact *domain.Artifact)
	RecordTranscode(outcome string)
	RecordExport(kind domain.ArtifactKind, sink string, ok bool)
}
