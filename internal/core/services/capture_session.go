package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaptureSession owns the one live stream, its recorder and the selected
// quality tier. All mutating operations are serialised; while an acquisition
// is pending they fail with domain.ErrAcquisitionPending.
type CaptureSession struct {
	mu sync.Mutex

	id        domain.SessionID
	acquirer  ports.StreamAcquirer
	recorders ports.RecorderFactory
	grabber   ports.FrameGrabber
	renderer  ports.StillRenderer
	quality   *QualityService

	events  ports.EventPublisher
	metrics ports.CaptureMetrics
	logger  *zap.SugaredLogger

	state          domain.SessionState
	tier           domain.QualityTier
	stream         ports.Stream
	recorder       ports.Recorder
	buffer         recordingBuffer
	audioEnabled   bool
	filter         domain.DisplayFilter
	acquiring      bool
	epoch          uint64
	recordingSince time.Time
	lastErr        string

	pending []*domain.SessionEvent
}

var _ ports.CaptureService = (*CaptureSession)(nil)

func NewCaptureSession(
	platform ports.Platform,
	renderer ports.StillRenderer,
	quality *QualityService,
	logger *zap.SugaredLogger,
) *CaptureSession {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	id := domain.SessionID(uuid.NewString())
	return &CaptureSession{
		id:           id,
		acquirer:     platform,
		recorders:    platform,
		grabber:      platform,
		renderer:     renderer,
		quality:      quality,
		metrics:      noopMetrics{},
		logger:       logger.With("session_id", id),
		state:        domain.StateIdle,
		tier:         domain.TierHigh,
		audioEnabled: true,
	}
}

// SetEventPublisher sets where session events are sent.
func (s *CaptureSession) SetEventPublisher(p ports.EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = p
}

// SetMetrics sets the metrics sink.
func (s *CaptureSession) SetMetrics(m ports.CaptureMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

func (s *CaptureSession) ID() domain.SessionID {
	return s.id
}

// Acquire requests a stream for tier. A live stream is released first. If
// HIGH cannot be acquired the session retries once with STANDARD; a failed
// STANDARD acquisition is fatal and leaves the session IDLE.
func (s *CaptureSession) Acquire(ctx context.Context, tier domain.QualityTier) error {
	return s.replace(ctx, tier, "acquire")
}

// SetTier releases the current stream and acquires a new one at tier. A
// recording in progress is abandoned and its buffered data discarded.
func (s *CaptureSession) SetTier(ctx context.Context, tier domain.QualityTier) error {
	return s.replace(ctx, tier, "tier_change")
}

func (s *CaptureSession) replace(ctx context.Context, tier domain.QualityTier, reason string) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTier, tier)
	}

	ctx, span := tracing.TraceCapture(ctx, "acquire", string(s.id))
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.TierKey.String(string(tier)), tracing.ReasonKey.String(reason))

	s.mu.Lock()
	if s.acquiring {
		s.mu.Unlock()
		return domain.ErrAcquisitionPending
	}
	s.acquiring = true
	epoch := s.epoch
	old := s.detachLocked(reason)
	s.mu.Unlock()

	old.release(ctx, s.logger)

	stream, used, err := s.requestWithFallback(ctx, tier)

	s.mu.Lock()
	defer s.flushEvents(ctx)
	defer s.mu.Unlock()

	s.acquiring = false
	s.tier = used

	if err == nil && s.epoch != epoch {
		// torn down while the request was in flight
		stopTracks(stream)
		err = fmt.Errorf("%w: session torn down during acquisition", domain.ErrStreamEnded)
		s.setStateLocked(domain.StateIdle)
		tracing.RecordError(ctx, err)
		return err
	}

	if err != nil {
		s.lastErr = err.Error()
		s.setStateLocked(domain.StateIdle)
		s.queueLocked(domain.EventAcquisitionFailed, map[string]string{"error": err.Error()})
		s.logger.Errorw("camera acquisition failed", "tier", used, "error", err)
		tracing.RecordError(ctx, err)
		return err
	}

	rec, err := s.recorders.NewRecorder(stream)
	if err != nil {
		stopTracks(stream)
		err = fmt.Errorf("%w: recorder: %w", domain.ErrAcquisitionFailed, err)
		s.lastErr = err.Error()
		s.setStateLocked(domain.StateIdle)
		s.queueLocked(domain.EventAcquisitionFailed, map[string]string{"error": err.Error()})
		tracing.RecordError(ctx, err)
		return err
	}

	s.stream = stream
	s.recorder = rec
	s.lastErr = ""
	for _, t := range stream.AudioTracks() {
		t.SetEnabled(s.audioEnabled)
	}
	s.setStateLocked(domain.StateStreaming)
	s.queueLocked(domain.EventStreamAcquired, map[string]string{
		"stream_id":  stream.ID(),
		"resolution": stream.Resolution().String(),
	})
	s.logger.Infow("stream acquired",
		"tier", used,
		"stream_id", stream.ID(),
		"resolution", stream.Resolution().String(),
	)
	return nil
}

// requestWithFallback performs at most two requests: tier, then the single
// fallback tier if one exists.
func (s *CaptureSession) requestWithFallback(ctx context.Context, tier domain.QualityTier) (ports.Stream, domain.QualityTier, error) {
	stream, err := s.request(ctx, tier)
	if err == nil {
		return stream, tier, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, tier, fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, ctxErr)
	}

	next, ok := s.quality.Fallback(tier)
	if !ok {
		return nil, tier, fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, err)
	}

	s.logger.Warnw("tier unavailable, falling back",
		"tier", tier,
		"fallback", next,
		"error", err,
	)
	s.metrics.RecordFallback()
	s.mu.Lock()
	s.queueLocked(domain.EventTierFallback, map[string]string{
		"from":  string(tier),
		"to":    string(next),
		"error": err.Error(),
	})
	s.mu.Unlock()
	s.flushEvents(ctx)

	stream, err = s.request(ctx, next)
	if err != nil {
		return nil, next, fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, err)
	}
	return stream, next, nil
}

func (s *CaptureSession) request(ctx context.Context, tier domain.QualityTier) (ports.Stream, error) {
	stream, err := s.acquirer.RequestStream(ctx, s.quality.Constraints(tier))
	s.metrics.RecordAcquisition(tier, err == nil)
	return stream, err
}

// StartRecording begins buffering recorder output. Valid only while
// STREAMING.
func (s *CaptureSession) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.flushEvents(ctx)
	defer s.mu.Unlock()

	if s.acquiring {
		return domain.ErrAcquisitionPending
	}
	if s.stream == nil {
		return domain.ErrNoActiveStream
	}
	if s.state != domain.StateStreaming {
		return fmt.Errorf("%w: cannot start recording while %s", domain.ErrInvalidState, s.state)
	}

	gen := s.buffer.reset()
	if err := s.recorder.Start(func(chunk []byte) {
		s.buffer.append(gen, chunk)
	}); err != nil {
		s.buffer.discard()
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	s.recordingSince = time.Now()
	s.setStateLocked(domain.StateRecording)
	s.queueLocked(domain.EventRecordingStarted, nil)
	s.logger.Infow("recording started", "tier", s.tier)
	return nil
}

// StopRecording stops the recorder, flushes the buffer into one webm
// artifact and returns to STREAMING. Valid only while RECORDING.
func (s *CaptureSession) StopRecording(ctx context.Context) (*domain.Artifact, error) {
	ctx, span := tracing.TraceCapture(ctx, "stop_recording", string(s.id))
	defer span.End()

	s.mu.Lock()
	defer s.flushEvents(ctx)
	defer s.mu.Unlock()

	if s.acquiring {
		return nil, domain.ErrAcquisitionPending
	}
	if s.state != domain.StateRecording {
		return nil, fmt.Errorf("%w: not recording", domain.ErrInvalidState)
	}

	if err := s.recorder.Stop(ctx); err != nil {
		// The recording is still flushed with whatever arrived.
		s.logger.Warnw("recorder stop reported an error", "error", err)
		tracing.RecordError(ctx, err)
	}

	artifact := s.buffer.flush(s.recorder.MimeType())
	if artifact == nil {
		artifact = domain.ConcatChunks(s.recorder.MimeType(), nil)
	}
	elapsed := time.Since(s.recordingSince)
	s.recordingSince = time.Time{}
	s.setStateLocked(domain.StateStreaming)

	s.metrics.RecordRecording(artifact, elapsed.Seconds())
	s.queueLocked(domain.EventRecordingStopped, map[string]string{
		"artifact_id": string(artifact.ID),
		"bytes":       strconv.FormatInt(artifact.Size, 10),
		"chunks":      strconv.Itoa(artifact.Chunks),
	})
	s.logger.Infow("recording stopped",
		"artifact_id", artifact.ID,
		"bytes", artifact.Size,
		"chunks", artifact.Chunks,
		"duration", elapsed,
	)
	tracing.AddSpanAttributes(ctx, tracing.BytesKey.Int64(artifact.Size))
	return artifact, nil
}

// SetAudioEnabled flips every audio track of the live stream. It does not
// touch the session state or data already buffered.
func (s *CaptureSession) SetAudioEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.flushEvents(context.Background())
	defer s.mu.Unlock()

	if s.acquiring {
		return domain.ErrAcquisitionPending
	}
	if s.stream == nil {
		return domain.ErrNoActiveStream
	}

	for _, t := range s.stream.AudioTracks() {
		t.SetEnabled(enabled)
	}
	s.audioEnabled = enabled
	s.queueLocked(domain.EventAudioToggled, map[string]string{"enabled": strconv.FormatBool(enabled)})
	return nil
}

func (s *CaptureSession) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

// SetFilter changes the display filter used by the preview and stills.
func (s *CaptureSession) SetFilter(filter domain.DisplayFilter) {
	s.mu.Lock()
	defer s.flushEvents(context.Background())
	defer s.mu.Unlock()

	s.filter = filter
	s.queueLocked(domain.EventFilterChanged, map[string]string{"filter": filter.String()})
}

func (s *CaptureSession) Filter() domain.DisplayFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// CaptureStill samples the current frame through the active filter and
// returns it as a PNG artifact. Session state is left alone.
func (s *CaptureSession) CaptureStill(ctx context.Context) (*domain.Artifact, error) {
	ctx, span := tracing.TraceCapture(ctx, "capture_still", string(s.id))
	defer span.End()

	s.mu.Lock()
	if s.acquiring {
		s.mu.Unlock()
		return nil, domain.ErrAcquisitionPending
	}
	stream, filter := s.stream, s.filter
	s.mu.Unlock()

	if stream == nil {
		return nil, domain.ErrNoActiveStream
	}

	frame, err := s.grabber.GrabFrame(ctx, stream)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to grab frame: %w", err)
	}
	data, err := s.renderer.Render(frame, filter)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to render still: %w", err)
	}

	still := domain.NewArtifact(domain.ArtifactStill, s.renderer.MimeType(), data)
	s.metrics.RecordStill(still)

	s.mu.Lock()
	s.queueLocked(domain.EventStillCaptured, map[string]string{
		"artifact_id": string(still.ID),
		"filter":      filter.String(),
	})
	s.mu.Unlock()
	s.flushEvents(ctx)
	return still, nil
}

// Teardown stops every track of the live stream and abandons any recording.
// The session may be acquired again afterwards.
func (s *CaptureSession) Teardown() {
	ctx := context.Background()

	s.mu.Lock()
	s.epoch++
	old := s.detachLocked("teardown")
	s.setStateLocked(domain.StateIdle)
	s.mu.Unlock()

	old.release(ctx, s.logger)
	s.flushEvents(ctx)
}

func (s *CaptureSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CaptureSession) Tier() domain.QualityTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Stream returns the live stream or nil.
func (s *CaptureSession) Stream() ports.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *CaptureSession) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *CaptureSession) statusLocked() domain.SessionStatus {
	chunks, bytes := s.buffer.size()
	st := domain.SessionStatus{
		ID:             s.id,
		State:          s.state,
		Tier:           s.tier,
		TierLabel:      s.tier.Label(),
		Resolution:     s.tier.Resolution(),
		AudioEnabled:   s.audioEnabled,
		Filter:         s.filter.String(),
		Acquiring:      s.acquiring,
		BufferedChunks: chunks,
		BufferedBytes:  bytes,
		LastError:      s.lastErr,
	}
	if s.stream != nil {
		st.StreamID = s.stream.ID()
		st.Resolution = s.stream.Resolution()
	}
	if !s.recordingSince.IsZero() {
		since := s.recordingSince
		st.RecordingSince = &since
	}
	return st
}

// detached holds resources taken off the session that still need releasing.
type detached struct {
	stream   ports.Stream
	recorder ports.Recorder
}

// detachLocked unhooks the stream and recorder from the session so they can
// be released without holding the lock. Buffered recording data is dropped.
func (s *CaptureSession) detachLocked(reason string) detached {
	old := detached{stream: s.stream}
	if s.state == domain.StateRecording {
		old.recorder = s.recorder
		dropped := s.buffer.discard()
		s.metrics.RecordDiscard(dropped)
		s.queueLocked(domain.EventRecordingDiscarded, map[string]string{
			"reason": reason,
			"chunks": strconv.Itoa(dropped),
		})
		s.logger.Warnw("in-progress recording discarded", "reason", reason, "chunks", dropped)
		s.recordingSince = time.Time{}
	}
	if s.stream != nil {
		s.queueLocked(domain.EventStreamReleased, map[string]string{
			"stream_id": s.stream.ID(),
			"reason":    reason,
		})
	}
	s.stream = nil
	s.recorder = nil
	if s.state != domain.StateIdle {
		s.setStateLocked(domain.StateIdle)
	}
	return old
}

// release stops the abandoned recorder, then every track of the stream.
func (d detached) release(ctx context.Context, logger *zap.SugaredLogger) {
	if d.recorder != nil {
		if err := d.recorder.Stop(ctx); err != nil && !errors.Is(err, domain.ErrStreamEnded) {
			logger.Warnw("failed to stop abandoned recorder", "error", err)
		}
	}
	stopTracks(d.stream)
}

func stopTracks(stream ports.Stream) {
	if stream == nil {
		return
	}
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}

func (s *CaptureSession) setStateLocked(state domain.SessionState) {
	if s.state == state {
		return
	}
	s.state = state
	s.metrics.RecordStateChange(state)
}

func (s *CaptureSession) queueLocked(t domain.EventType, attrs map[string]string) {
	if s.events == nil {
		return
	}
	status := s.statusLocked()
	s.pending = append(s.pending, &domain.SessionEvent{
		Type:       t,
		SessionID:  s.id,
		Timestamp:  time.Now(),
		Status:     &status,
		Attributes: attrs,
	})
}

// flushEvents publishes queued events outside the session lock.
func (s *CaptureSession) flushEvents(ctx context.Context) {
	s.mu.Lock()
	events, publisher := s.pending, s.events
	s.pending = nil
	s.mu.Unlock()

	if publisher == nil {
		return
	}
	for _, e := range events {
		if err := publisher.Publish(ctx, e); err != nil {
			s.logger.Warnw("failed to publish session event", "type", e.Type, "error", err)
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordAcquisition(domain.QualityTier, bool)     {}
func (noopMetrics) RecordFallback()                                {}
func (noopMetrics) RecordStateChange(domain.SessionState)          {}
func (noopMetrics) RecordRecording(*domain.Artifact, float64)      {}
func (noopMetrics) RecordDiscard(int)                              {}
func (noopMetrics) RecordStill(*domain.Artifact)                   {}
func (noopMetrics) RecordTranscode(string)                         {}
func (noopMetrics) RecordExport(domain.ArtifactKind, string, bool) {}
