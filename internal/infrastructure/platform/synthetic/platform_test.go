package synthetic

import (
	"context"
	"sync"
	"testing"
	"time"

	"camcapture/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constraints(tier domain.QualityTier, audio bool) domain.Constraints {
	res := tier.Resolution()
	return domain.Constraints{
		IdealWidth:  res.Width,
		IdealHeight: res.Height,
		FacingMode:  domain.FacingEnvironment,
		Audio:       audio,
	}
}

func TestPlatform_RequestStream(t *testing.T) {
	p := New(Config{})

	stream, err := p.RequestStream(context.Background(), constraints(domain.TierHigh, true))
	require.NoError(t, err)

	assert.Equal(t, domain.Resolution{Width: 1920, Height: 1080}, stream.Resolution())
	assert.Len(t, stream.VideoTracks(), 1)
	assert.Len(t, stream.AudioTracks(), 1)
	assert.True(t, p.CameraHeld())
	assert.Len(t, p.Requests(), 1)
}

func TestPlatform_CameraIsExclusive(t *testing.T) {
	p := New(Config{})
	ctx := context.Background()

	first, err := p.RequestStream(ctx, constraints(domain.TierStandard, false))
	require.NoError(t, err)

	_, err = p.RequestStream(ctx, constraints(domain.TierStandard, false))
	assert.ErrorIs(t, err, domain.ErrDeviceBusy)

	for _, tr := range first.Tracks() {
		tr.Stop()
	}
	assert.False(t, p.CameraHeld())

	_, err = p.RequestStream(ctx, constraints(domain.TierStandard, false))
	assert.NoError(t, err)
}

func TestPlatform_RequestFailures(t *testing.T) {
	ctx := context.Background()

	small := New(Config{MaxWidth: 1280, MaxHeight: 720})
	_, err := small.RequestStream(ctx, constraints(domain.TierHigh, false))
	assert.ErrorIs(t, err, domain.ErrUnsupportedSettings)

	scripted := New(Config{Fail: FailTiers(domain.TierHigh)})
	_, err = scripted.RequestStream(ctx, constraints(domain.TierHigh, false))
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = scripted.RequestStream(ctx, constraints(domain.TierStandard, false))
	assert.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(Config{}).RequestStream(canceled, constraints(domain.TierHigh, false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorder_ManualEmit(t *testing.T) {
	p := New(Config{})
	stream, err := p.RequestStream(context.Background(), constraints(domain.TierStandard, true))
	require.NoError(t, err)

	rec, err := p.NewRecorder(stream)
	require.NoError(t, err)
	assert.Equal(t, domain.MimeWebM, rec.MimeType())

	var got [][]byte
	require.NoError(t, rec.Start(func(b []byte) { got = append(got, b) }))
	assert.Error(t, rec.Start(func([]byte) {}))

	r := p.LastRecorder()
	assert.True(t, r.Emit([]byte("a")))
	assert.True(t, r.Emit([]byte("b")))
	require.NoError(t, rec.Stop(context.Background()))
	assert.False(t, r.Emit([]byte("c")))

	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
	assert.NoError(t, rec.Stop(context.Background()))
}

func TestRecorder_TimedEmission(t *testing.T) {
	p := New(Config{ChunkInterval: 5 * time.Millisecond})
	stream, err := p.RequestStream(context.Background(), constraints(domain.TierStandard, false))
	require.NoError(t, err)
	rec, err := p.NewRecorder(stream)
	require.NoError(t, err)

	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, rec.Start(func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, b)
	}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, rec.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, ebmlMagic, got[0][:4])
	assert.Contains(t, string(got[len(got)-1]), "audio=false")
}

func TestRecorder_StartOnEndedStream(t *testing.T) {
	p := New(Config{})
	stream, err := p.RequestStream(context.Background(), constraints(domain.TierStandard, false))
	require.NoError(t, err)
	rec, err := p.NewRecorder(stream)
	require.NoError(t, err)

	for _, tr := range stream.Tracks() {
		tr.Stop()
	}
	assert.ErrorIs(t, rec.Start(func([]byte) {}), domain.ErrStreamEnded)
}

func TestPlatform_GrabFrame(t *testing.T) {
	p := New(Config{})
	stream, err := p.RequestStream(context.Background(), constraints(domain.TierStandard, false))
	require.NoError(t, err)

	img, err := p.GrabFrame(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())

	for _, tr := range stream.Tracks() {
		tr.Stop()
	}
	_, err = p.GrabFrame(context.Background(), stream)
	assert.ErrorIs(t, err, domain.ErrStreamEnded)
}

func TestRecorder_StopTimeoutLeavesRecorderReusable(t *testing.T) {
	p := New(Config{ChunkInterval: time.Millisecond})
	stream, err := p.RequestStream(context.Background(), constraints(domain.TierStandard, false))
	require.NoError(t, err)
	rec, err := p.NewRecorder(stream)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	require.NoError(t, rec.Start(func([]byte) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}))
	<-entered

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Stop(expired), context.Canceled)
	assert.False(t, p.LastRecorder().Running())
	close(release)

	require.NoError(t, rec.Start(func([]byte) {}))
	assert.NoError(t, rec.Stop(context.Background()))
}
