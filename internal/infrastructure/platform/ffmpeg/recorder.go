package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"go.uber.org/zap"
)

const readBufferSize = 64 << 10

// Recorder encodes a capture stream into webm with a second ffmpeg process.
// Every read from the encoder's stdout is one chunk.
type Recorder struct {
	cfg    Config
	stream *captureStream
	logger *zap.SugaredLogger

	mu          sync.Mutex
	cmd         *exec.Cmd
	stderr      *tailBuffer
	stdin       io.WriteCloser
	audioW      *os.File
	unsubscribe func()
	quit        chan struct{}
	feedDone    chan struct{}
	readDone    chan struct{}
}

func (r *Recorder) MimeType() string { return domain.MimeWebM }

func (r *Recorder) Start(onChunk ports.ChunkHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return errors.New("recorder already running")
	}
	if r.stream.video.Stopped() {
		return domain.ErrStreamEnded
	}

	withAudio := r.stream.audio != nil
	cmd := exec.Command(r.cfg.Binary, r.cfg.recordArgs(withAudio)...)
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	var audioR, audioW *os.File
	if withAudio {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			return fmt.Errorf("audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}

	if err := cmd.Start(); err != nil {
		if audioR != nil {
			audioR.Close()
			audioW.Close()
		}
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	if audioR != nil {
		audioR.Close()
	}

	frames, audio, unsubscribe := r.stream.subscribe()

	r.cmd = cmd
	r.stderr = stderr
	r.stdin = stdin
	r.audioW = audioW
	r.unsubscribe = unsubscribe
	r.quit = make(chan struct{})
	r.feedDone = make(chan struct{})
	r.readDone = make(chan struct{})

	go r.feed(frames, audio, stdin, audioW, r.quit, r.feedDone)
	go r.read(stdout, onChunk, r.readDone)

	r.logger.Debugw("encoder started", "args", r.cfg.recordArgs(withAudio))
	return nil
}

func (r *Recorder) feed(frames, audio <-chan []byte, video io.Writer, pcm *os.File, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case f := <-frames:
			if _, err := video.Write(f); err != nil {
				r.feedFailed(quit, err)
				return
			}
		case a := <-audio:
			if pcm == nil {
				continue
			}
			if _, err := pcm.Write(a); err != nil {
				r.feedFailed(quit, err)
				return
			}
		}
	}
}

func (r *Recorder) feedFailed(quit chan struct{}, err error) {
	select {
	case <-quit:
	default:
		r.logger.Warnw("encoder input closed unexpectedly", "error", err)
	}
}

func (r *Recorder) read(stdout io.Reader, onChunk ports.ChunkHandler, done chan struct{}) {
	defer close(done)
	buf := make([]byte, readBufferSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if err != nil {
			return
		}
	}
}

// Stop closes the encoder's inputs and waits until the trailing webm data has
// been delivered. If ctx expires first the encoder is killed.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return nil
	}
	cmd := r.cmd
	r.cmd = nil

	// closing the pipes unblocks a feed stuck in Write
	r.unsubscribe()
	close(r.quit)
	r.stdin.Close()
	if r.audioW != nil {
		r.audioW.Close()
	}
	<-r.feedDone

	select {
	case <-r.readDone:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-r.readDone
		_ = cmd.Wait()
		return ctx.Err()
	}

	if err := cmd.Wait(); err != nil {
		if isExitSignal(err) {
			return fmt.Errorf("%w: encoder killed", domain.ErrStreamEnded)
		}
		return fmt.Errorf("encoder exited: %w: %s", err, r.stderr.String())
	}
	return nil
}
