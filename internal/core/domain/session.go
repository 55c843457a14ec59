package domain

import "time"

type SessionID string

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateStreaming SessionState = "streaming"
	StateRecording SessionState = "recording"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// SessionStatus is a point-in-time view of a capture session, used by the
// control API and the preview hub.
type SessionStatus struct {
	ID             SessionID    `json:"id"`
	State          SessionState `json:"state"`
	Tier           QualityTier  `json:"tier"`
	TierLabel      string       `json:"tier_label"`
	Resolution     Resolution   `json:"resolution"`
	AudioEnabled   bool         `json:"audio_enabled"`
	Filter         string       `json:"filter"`
	Acquiring      bool         `json:"acquiring"`
	StreamID       string       `json:"stream_id,omitempty"`
	BufferedChunks int          `json:"buffered_chunks"`
	BufferedBytes  int64        `json:"buffered_bytes"`
	RecordingSince *time.Time   `json:"recording_since,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
}
