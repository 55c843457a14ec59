package synthetic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/internal/infrastructure/platform"
)

// ebmlMagic opens every webm file.
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// Recorder emits placeholder webm data for a synthetic stream. Started with a
// zero interval it only emits what Emit is given.
type Recorder struct {
	stream   ports.Stream
	interval time.Duration

	mu      sync.Mutex
	running bool
	onChunk ports.ChunkHandler
	cluster int
	quit    chan struct{}
	done    chan struct{}
}

func (r *Recorder) MimeType() string { return domain.MimeWebM }

func (r *Recorder) Start(onChunk ports.ChunkHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("recorder already running")
	}
	for _, t := range r.stream.VideoTracks() {
		if t.Stopped() {
			return domain.ErrStreamEnded
		}
	}

	r.running = true
	r.onChunk = onChunk
	r.cluster = 0

	if r.interval > 0 {
		r.quit = make(chan struct{})
		r.done = make(chan struct{})
		go r.run(r.quit, r.done)
	}
	return nil
}

func (r *Recorder) run(quit, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			r.emitCluster()
		}
	}
}

func (r *Recorder) emitCluster() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	chunk := r.nextClusterLocked()
	cb := r.onChunk
	r.mu.Unlock()
	cb(chunk)
}

func (r *Recorder) nextClusterLocked() []byte {
	var chunk []byte
	if r.cluster == 0 {
		chunk = append(chunk, ebmlMagic...)
		chunk = append(chunk, "webm-header;"...)
	}
	r.cluster++
	chunk = append(chunk, fmt.Sprintf("cluster=%d;audio=%t;", r.cluster, platform.AudioEnabled(r.stream))...)
	return chunk
}

// Emit delivers chunk to the running recording. It reports false when the
// recorder is not running.
func (r *Recorder) Emit(chunk []byte) bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	cb := r.onChunk
	r.mu.Unlock()
	cb(chunk)
	return true
}

// Stop ends the recording. In timed mode the pending cluster is delivered
// before Stop returns.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	quit, done := r.quit, r.done
	r.quit, r.done = nil, nil
	r.mu.Unlock()

	if quit != nil {
		close(quit)
		select {
		case <-done:
		case <-ctx.Done():
			r.mu.Lock()
			r.running = false
			r.onChunk = nil
			r.mu.Unlock()
			return ctx.Err()
		}
	}

	r.mu.Lock()
	var final []byte
	if r.interval > 0 {
		final = r.nextClusterLocked()
	}
	cb := r.onChunk
	r.running = false
	r.onChunk = nil
	r.mu.Unlock()

	if final != nil {
		cb(final)
	}
	return nil
}

func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
