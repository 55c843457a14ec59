package domain

import "time"

type EventType string

const (
	EventStreamAcquired     EventType = "stream.acquired"
	EventTierFallback       EventType = "stream.tier_fallback"
	EventAcquisitionFailed  EventType = "stream.acquisition_failed"
	EventStreamReleased     EventType = "stream.released"
	EventRecordingStarted   EventType = "recording.started"
	EventRecordingStopped   EventType = "recording.stopped"
	EventRecordingDiscarded EventType = "recording.discarded"
	EventStillCaptured      EventType = "still.captured"
	EventAudioToggled       EventType = "audio.toggled"
	EventFilterChanged      EventType = "filter.changed"
	EventArtifactExported   EventType = "artifact.exported"
	EventTranscodeFailed    EventType = "transcode.failed"
)

// SessionEvent reports a session transition to observers (preview clients,
// the redis bus). Status is the session view right after the transition.
type SessionEvent struct {
	Type       EventType         `json:"type"`
	SessionID  SessionID         `json:"session_id"`
	InstanceID string            `json:"instance_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Status     *SessionStatus    `json:"status,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
