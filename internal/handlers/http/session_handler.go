package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/internal/core/services"
	"camcapture/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Controller is the session surface the control API drives.
type Controller interface {
	Start(ctx context.Context, tier domain.QualityTier) error
	ToggleRecording(ctx context.Context) (*services.RecordingToggle, error)
	ToggleTier(ctx context.Context) error
	SetTier(ctx context.Context, tier domain.QualityTier) error
	ToggleAudio() (bool, error)
	SetFilter(expr string) (domain.DisplayFilter, error)
	TakeStill(ctx context.Context) (*domain.ExportResult, error)
	Play(ctx context.Context) error
	Pause()
	Stop()
	Paused() bool
	Status() domain.SessionStatus
	Latest(kind domain.ArtifactKind) (*domain.Artifact, bool)
}

// EventHistory returns recently published session events.
type EventHistory interface {
	Recent(n int) []*domain.SessionEvent
}

var _ ports.SessionHTTPHandler = (*SessionHandler)(nil)

type SessionHandler struct {
	controller  Controller
	history     EventHistory
	defaultTier domain.QualityTier
}

func NewSessionHandler(controller Controller, history EventHistory, defaultTier domain.QualityTier) *SessionHandler {
	if !defaultTier.Valid() {
		defaultTier = domain.TierHigh
	}
	return &SessionHandler{
		controller:  controller,
		history:     history,
		defaultTier: defaultTier,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/session", h.GetStatus)
		api.POST("/session/start", h.Start)
		api.POST("/session/record", h.ToggleRecording)
		api.PUT("/session/resolution", h.SetResolution)
		api.POST("/session/audio", h.ToggleAudio)
		api.PUT("/session/filter", h.SetFilter)
		api.POST("/session/still", h.CaptureStill)

		// media-session transport
		api.POST("/session/play", h.Play)
		api.POST("/session/pause", h.Pause)
		api.POST("/session/stop", h.Stop)

		api.GET("/artifacts/latest", h.LatestArtifact)
		api.GET("/events", h.RecentEvents)
	}
}

func (h *SessionHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.statusBody())
}

func (h *SessionHandler) Start(c *gin.Context) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	tier := h.defaultTier
	if req.Tier != "" {
		parsed, err := domain.ParseTier(req.Tier)
		if err != nil {
			c.Error(err)
			return
		}
		tier = parsed
	}

	if err := h.controller.Start(c.Request.Context(), tier); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.statusBody())
}

func (h *SessionHandler) ToggleRecording(c *gin.Context) {
	result, err := h.controller.ToggleRecording(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	body := h.statusBody()
	body["recording"] = result.Started
	if result.Export != nil {
		body["export"] = result.Export
	}
	c.JSON(http.StatusOK, body)
}

// SetResolution switches to the requested tier, or toggles FHD/HD when the
// body names none.
func (h *SessionHandler) SetResolution(c *gin.Context) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	var err error
	if req.Tier == "" {
		err = h.controller.ToggleTier(ctx)
	} else {
		var tier domain.QualityTier
		if tier, err = domain.ParseTier(req.Tier); err == nil {
			err = h.controller.SetTier(ctx, tier)
		}
	}
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.statusBody())
}

func (h *SessionHandler) ToggleAudio(c *gin.Context) {
	enabled, err := h.controller.ToggleAudio()
	if err != nil {
		c.Error(err)
		return
	}

	label := "Mute"
	if !enabled {
		label = "Unmute"
	}
	body := h.statusBody()
	body["audio_label"] = label
	c.JSON(http.StatusOK, body)
}

func (h *SessionHandler) SetFilter(c *gin.Context) {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("filter body must be JSON"))
		return
	}

	filter, err := h.controller.SetFilter(req.Filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filter": filter.String(),
		"ops":    filter.Ops,
	})
}

func (h *SessionHandler) CaptureStill(c *gin.Context) {
	result, err := h.controller.TakeStill(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"export": result,
	})
}

func (h *SessionHandler) Play(c *gin.Context) {
	if err := h.controller.Play(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.statusBody())
}

func (h *SessionHandler) Pause(c *gin.Context) {
	h.controller.Pause()
	c.JSON(http.StatusOK, h.statusBody())
}

func (h *SessionHandler) Stop(c *gin.Context) {
	h.controller.Stop()
	c.JSON(http.StatusOK, h.statusBody())
}

// LatestArtifact downloads the most recent recording, or still with
// ?kind=still.
func (h *SessionHandler) LatestArtifact(c *gin.Context) {
	kind := domain.ArtifactKind(c.DefaultQuery("kind", string(domain.ArtifactRecording)))
	if kind != domain.ArtifactRecording && kind != domain.ArtifactStill {
		c.Error(errors.NewInvalidInputError(fmt.Sprintf("unknown artifact kind %q", kind)))
		return
	}

	artifact, ok := h.controller.Latest(kind)
	if !ok {
		c.Error(fmt.Errorf("%w: no %s exported yet", domain.ErrArtifactNotFound, kind))
		return
	}

	base := "recorded"
	if kind == domain.ArtifactStill {
		base = "capture"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, base, artifact.Extension()))
	c.Header("X-Artifact-ID", string(artifact.ID))
	c.Data(http.StatusOK, artifact.MimeType, artifact.Bytes())
}

func (h *SessionHandler) RecentEvents(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n < 0 {
		c.Error(errors.NewInvalidInputError("limit must be a non-negative integer"))
		return
	}

	var events []*domain.SessionEvent
	if h.history != nil {
		events = h.history.Recent(n)
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (h *SessionHandler) statusBody() gin.H {
	return gin.H{
		"session": h.controller.Status(),
		"paused":  h.controller.Paused(),
	}
}

// bindOptionalJSON binds the body into dst when one was sent.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.NewInvalidInputError("invalid JSON body")
	}
	return nil
}
