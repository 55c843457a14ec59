// Package platform holds the stream and track types shared by the capture
// backends.
package platform

import (
	"sync"
	"sync/atomic"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"github.com/google/uuid"
)

// BaseTrack is a track whose hardware release is delegated to onStop.
type BaseTrack struct {
	id      string
	kind    domain.TrackKind
	label   string
	enabled atomic.Bool
	stopped atomic.Bool

	stopOnce sync.Once
	onStop   func()
}

func NewTrack(kind domain.TrackKind, label string, onStop func()) *BaseTrack {
	t := &BaseTrack{
		id:     uuid.NewString(),
		kind:   kind,
		label:  label,
		onStop: onStop,
	}
	t.enabled.Store(true)
	return t
}

func (t *BaseTrack) ID() string             { return t.id }
func (t *BaseTrack) Kind() domain.TrackKind { return t.kind }
func (t *BaseTrack) Label() string          { return t.label }
func (t *BaseTrack) Enabled() bool          { return t.enabled.Load() }
func (t *BaseTrack) SetEnabled(v bool)      { t.enabled.Store(v) }
func (t *BaseTrack) Stopped() bool          { return t.stopped.Load() }

func (t *BaseTrack) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// Stream is a fixed set of tracks captured at one resolution.
type Stream struct {
	id         string
	resolution domain.Resolution
	tracks     []ports.Track
}

func NewStream(resolution domain.Resolution, tracks ...ports.Track) *Stream {
	return &Stream{
		id:         "stream-" + uuid.NewString(),
		resolution: resolution,
		tracks:     tracks,
	}
}

func (s *Stream) ID() string                    { return s.id }
func (s *Stream) Resolution() domain.Resolution { return s.resolution }

func (s *Stream) Tracks() []ports.Track {
	out := make([]ports.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) AudioTracks() []ports.Track {
	return s.byKind(domain.TrackKindAudio)
}

func (s *Stream) VideoTracks() []ports.Track {
	return s.byKind(domain.TrackKindVideo)
}

// Live reports whether any track is still running.
func (s *Stream) Live() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return true
		}
	}
	return false
}

func (s *Stream) byKind(kind domain.TrackKind) []ports.Track {
	var out []ports.Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// AudioEnabled reports whether the stream has at least one enabled audio
// track.
func AudioEnabled(s ports.Stream) bool {
	for _, t := range s.AudioTracks() {
		if t.Enabled() && !t.Stopped() {
			return true
		}
	}
	return false
}
