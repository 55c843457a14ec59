package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/pkg/tracing"

	"go.uber.org/zap"
)

// TranscodeMode decides whether finished recordings are converted to mp4.
type TranscodeMode string

const (
	TranscodeNever  TranscodeMode = "never"
	TranscodeAlways TranscodeMode = "always"
	TranscodeAsk    TranscodeMode = "ask"
)

func ParseTranscodeMode(s string) (TranscodeMode, error) {
	switch m := TranscodeMode(s); m {
	case TranscodeNever, TranscodeAlways, TranscodeAsk:
		return m, nil
	}
	return "", fmt.Errorf("unknown transcode mode %q", s)
}

const (
	recordingBaseName = "recorded"
	stillBaseName     = "capture"
	stillPulse        = 100 * time.Millisecond
)

type ExportOptions struct {
	SessionID        domain.SessionID
	SinkName         string
	Transcode        TranscodeMode
	TimestampedNames bool
}

type ExportService struct {
	sink       ports.DownloadSink
	transcoder ports.Transcoder
	prompt     ports.TranscodePrompt
	haptics    ports.Haptics
	opts       ExportOptions

	events  ports.EventPublisher
	metrics ports.CaptureMetrics
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu     sync.RWMutex
	latest map[domain.ArtifactKind]*domain.Artifact
}

// NewExportService wires the sink finished artifacts are written to. The
// transcoder and prompt may be nil; conversion then always falls back to the
// original webm.
func NewExportService(
	sink ports.DownloadSink,
	transcoder ports.Transcoder,
	prompt ports.TranscodePrompt,
	haptics ports.Haptics,
	opts ExportOptions,
	logger *zap.SugaredLogger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Transcode == "" {
		opts.Transcode = TranscodeNever
	}
	if opts.SinkName == "" {
		opts.SinkName = "file"
	}
	return &ExportService{
		sink:       sink,
		transcoder: transcoder,
		prompt:     prompt,
		haptics:    haptics,
		opts:       opts,
		metrics:    noopMetrics{},
		logger:     logger,
		now:        time.Now,
		latest:     make(map[domain.ArtifactKind]*domain.Artifact),
	}
}

func (s *ExportService) SetEventPublisher(p ports.EventPublisher) {
	s.events = p
}

func (s *ExportService) SetMetrics(m ports.CaptureMetrics) {
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

// ExportRecording optionally converts the recording to mp4 and saves it.
// A failed conversion is not an error: the webm is exported instead and the
// result carries the reason.
func (s *ExportService) ExportRecording(ctx context.Context, recording *domain.Artifact) (*domain.ExportResult, error) {
	if recording == nil || recording.Kind != domain.ArtifactRecording {
		return nil, fmt.Errorf("%w: not a recording", domain.ErrInvalidState)
	}

	ctx, span := tracing.TraceExport(ctx, string(recording.ID), s.opts.SinkName)
	defer span.End()

	result := &domain.ExportResult{Artifact: recording}
	if s.wantsMP4(ctx, recording) {
		started := time.Now()
		converted, err := s.transcode(ctx, recording)
		tracing.MeasureDuration(ctx, started, "transcode")
		if err != nil {
			result.TranscodeError = err.Error()
			s.logger.Warnw("mp4 conversion failed, exporting webm",
				"artifact_id", recording.ID,
				"error", err,
			)
			s.publish(ctx, domain.EventTranscodeFailed, recording, map[string]string{"error": err.Error()})
		} else {
			result.Artifact = converted
			result.Transcoded = true
		}
	}

	if err := s.save(ctx, recordingBaseName, result); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

// ExportStill saves the still and gives a short haptic pulse.
func (s *ExportService) ExportStill(ctx context.Context, still *domain.Artifact) (*domain.ExportResult, error) {
	if still == nil || still.Kind != domain.ArtifactStill {
		return nil, fmt.Errorf("%w: not a still", domain.ErrInvalidState)
	}

	ctx, span := tracing.TraceExport(ctx, string(still.ID), s.opts.SinkName)
	defer span.End()

	if s.haptics != nil {
		s.haptics.Pulse(stillPulse)
	}

	result := &domain.ExportResult{Artifact: still}
	if err := s.save(ctx, stillBaseName, result); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

// Latest returns the most recently exported artifact of kind.
func (s *ExportService) Latest(kind domain.ArtifactKind) (*domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.latest[kind]
	return a, ok
}

func (s *ExportService) wantsMP4(ctx context.Context, recording *domain.Artifact) bool {
	switch s.opts.Transcode {
	case TranscodeAlways:
		return true
	case TranscodeAsk:
		if s.prompt == nil {
			return false
		}
		return s.prompt.Decide(ctx, recording) == ports.ConvertToMP4
	}
	return false
}

func (s *ExportService) transcode(ctx context.Context, recording *domain.Artifact) (*domain.Artifact, error) {
	if s.transcoder == nil || !s.transcoder.Available(ctx) {
		s.metrics.RecordTranscode("missing")
		return nil, domain.ErrTranscoderMissing
	}
	converted, err := s.transcoder.Transcode(ctx, recording)
	if err != nil {
		s.metrics.RecordTranscode("failure")
		if !errors.Is(err, domain.ErrTranscodeFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err)
		}
		return nil, err
	}
	s.metrics.RecordTranscode("success")
	return converted, nil
}

func (s *ExportService) save(ctx context.Context, base string, result *domain.ExportResult) error {
	artifact := result.Artifact
	name := s.fileName(base, artifact)

	if err := s.sink.Save(ctx, name, artifact.Reader()); err != nil {
		s.metrics.RecordExport(artifact.Kind, s.opts.SinkName, false)
		if !errors.Is(err, domain.ErrSinkUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSinkUnavailable, err)
		}
		return fmt.Errorf("failed to export %s: %w", name, err)
	}
	s.metrics.RecordExport(artifact.Kind, s.opts.SinkName, true)

	result.Name = name
	result.Location = s.sink.Location(name)

	s.mu.Lock()
	s.latest[artifact.Kind] = artifact
	s.mu.Unlock()

	s.logger.Infow("artifact exported",
		"artifact_id", artifact.ID,
		"name", name,
		"location", result.Location,
		"bytes", artifact.Size,
	)
	s.publish(ctx, domain.EventArtifactExported, artifact, map[string]string{
		"name":     name,
		"location": result.Location,
	})
	return nil
}

func (s *ExportService) fileName(base string, a *domain.Artifact) string {
	if s.opts.TimestampedNames {
		return fmt.Sprintf("%s-%s.%s", base, s.now().Format("20060102-150405"), a.Extension())
	}
	return base + "." + a.Extension()
}

func (s *ExportService) publish(ctx context.Context, t domain.EventType, a *domain.Artifact, attrs map[string]string) {
	if s.events == nil {
		return
	}
	attrs["artifact_id"] = string(a.ID)
	attrs["mime_type"] = a.MimeType
	event := &domain.SessionEvent{
		Type:       t,
		SessionID:  s.opts.SessionID,
		Timestamp:  s.now(),
		Attributes: attrs,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warnw("failed to publish export event", "type", t, "error", err)
	}
}
