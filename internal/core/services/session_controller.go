package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"go.uber.org/zap"
)

// RecordingToggle is the outcome of a record button press: either a
// recording started, or one stopped and was exported.
type RecordingToggle struct {
	Started bool                 `json:"started"`
	Export  *domain.ExportResult `json:"export,omitempty"`
}

// SessionController maps user-facing toggles (record button, FHD/HD switch,
// mute button, media-session transport actions) onto the capture session
// and hands finished artifacts to the export service.
type SessionController struct {
	session *CaptureSession
	export  ports.ExportService
	paused  atomic.Bool
	logger  *zap.SugaredLogger
}

func NewSessionController(session *CaptureSession, export ports.ExportService, logger *zap.SugaredLogger) *SessionController {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SessionController{session: session, export: export, logger: logger}
}

func (c *SessionController) Session() *CaptureSession {
	return c.session
}

// Start acquires the first stream at tier.
func (c *SessionController) Start(ctx context.Context, tier domain.QualityTier) error {
	return c.session.Acquire(ctx, tier)
}

// ToggleRecording starts a recording while streaming, or stops and exports
// the running one.
func (c *SessionController) ToggleRecording(ctx context.Context) (*RecordingToggle, error) {
	if c.session.State() != domain.StateRecording {
		if err := c.session.StartRecording(ctx); err != nil {
			return nil, err
		}
		return &RecordingToggle{Started: true}, nil
	}

	recording, err := c.session.StopRecording(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.export.ExportRecording(ctx, recording)
	if err != nil {
		return nil, err
	}
	return &RecordingToggle{Export: result}, nil
}

// ToggleTier switches between FHD and HD.
func (c *SessionController) ToggleTier(ctx context.Context) error {
	return c.session.SetTier(ctx, c.session.Tier().Toggle())
}

func (c *SessionController) SetTier(ctx context.Context, tier domain.QualityTier) error {
	return c.session.SetTier(ctx, tier)
}

// ToggleAudio flips the mute state and returns the new audio-enabled flag.
func (c *SessionController) ToggleAudio() (bool, error) {
	enabled := !c.session.AudioEnabled()
	if err := c.session.SetAudioEnabled(enabled); err != nil {
		return !enabled, err
	}
	return enabled, nil
}

func (c *SessionController) SetFilter(expr string) (domain.DisplayFilter, error) {
	filter, err := domain.ParseFilter(expr)
	if err != nil {
		return domain.DisplayFilter{}, err
	}
	c.session.SetFilter(filter)
	return filter, nil
}

// TakeStill captures and exports a still.
func (c *SessionController) TakeStill(ctx context.Context) (*domain.ExportResult, error) {
	still, err := c.session.CaptureStill(ctx)
	if err != nil {
		return nil, err
	}
	return c.export.ExportStill(ctx, still)
}

// Play resumes the preview, reacquiring the camera if it was stopped.
func (c *SessionController) Play(ctx context.Context) error {
	c.paused.Store(false)
	if c.session.Stream() != nil {
		return nil
	}
	c.logger.Infow("play requested without a stream, reacquiring", "tier", c.session.Tier())
	if err := c.session.Acquire(ctx, c.session.Tier()); err != nil {
		return fmt.Errorf("failed to resume capture: %w", err)
	}
	return nil
}

// Pause freezes the preview. Capture and any recording keep running.
func (c *SessionController) Pause() {
	c.paused.Store(true)
}

// Stop releases the camera and microphone.
func (c *SessionController) Stop() {
	c.session.Teardown()
}

func (c *SessionController) Paused() bool {
	return c.paused.Load()
}

func (c *SessionController) Status() domain.SessionStatus {
	return c.session.Status()
}

func (c *SessionController) Latest(kind domain.ArtifactKind) (*domain.Artifact, bool) {
	return c.export.Latest(kind)
}
