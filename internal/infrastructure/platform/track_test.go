package platform

import (
	"testing"

	"camcapture/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestBaseTrack_StopRunsReleaseOnce(t *testing.T) {
	calls := 0
	track := NewTrack(domain.TrackKindVideo, "cam", func() { calls++ })

	assert.True(t, track.Enabled())
	assert.False(t, track.Stopped())

	track.Stop()
	track.Stop()

	assert.True(t, track.Stopped())
	assert.Equal(t, 1, calls)
}

func TestStream_SplitsTracksByKind(t *testing.T) {
	video := NewTrack(domain.TrackKindVideo, "cam", nil)
	mic := NewTrack(domain.TrackKindAudio, "mic", nil)
	s := NewStream(domain.Resolution{Width: 1280, Height: 720}, video, mic)

	assert.Len(t, s.Tracks(), 2)
	assert.Equal(t, []string{video.ID()}, ids(s.VideoTracks()))
	assert.Equal(t, []string{mic.ID()}, ids(s.AudioTracks()))
	assert.True(t, AudioEnabled(s))

	mic.SetEnabled(false)
	assert.False(t, AudioEnabled(s))

	video.Stop()
	assert.True(t, s.Live())
	mic.Stop()
	assert.False(t, s.Live())
}

func ids[T interface{ ID() string }](tracks []T) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID()
	}
	return out
}
