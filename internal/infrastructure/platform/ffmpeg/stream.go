package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/internal/infrastructure/platform"

	"go.uber.org/zap"
)

// 20ms of s16le stereo at 48kHz
const audioPacketSize = sampleRate / 50 * bytesPerSample

// captureStream is a live ffmpeg capture process. Stopping the video track
// kills the process and with it the hold on both devices.
type captureStream struct {
	*platform.Stream

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailBuffer
	logger *zap.SugaredLogger

	video *platform.BaseTrack
	audio *platform.BaseTrack

	firstFrame chan []byte
	firstOnce  sync.Once
	done       chan struct{}
	exitErr    error

	mu        sync.Mutex
	latest    []byte
	nextSub   int
	frameSubs map[int]chan []byte
	audioSubs map[int]chan []byte
}

func startCapture(cfg Config, device string, c domain.Constraints, logger *zap.SugaredLogger) (*captureStream, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, cfg.Binary, cfg.captureArgs(device, c)...)

	s := &captureStream{
		cmd:        cmd,
		cancel:     cancel,
		stderr:     newTailBuffer(4096),
		logger:     logger.With("device", device),
		firstFrame: make(chan []byte, 1),
		done:       make(chan struct{}),
		frameSubs:  make(map[int]chan []byte),
		audioSubs:  make(map[int]chan []byte),
	}
	cmd.Stderr = s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdout pipe: %w", domain.ErrAcquisitionFailed, err)
	}

	var audioR, audioW *os.File
	if c.Audio {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: audio pipe: %w", domain.ErrAcquisitionFailed, err)
		}
		cmd.ExtraFiles = []*os.File{audioW}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if audioR != nil {
			audioR.Close()
			audioW.Close()
		}
		return nil, classify("", err)
	}
	if audioW != nil {
		// the child owns the write end now
		audioW.Close()
	}

	s.video = platform.NewTrack(domain.TrackKindVideo, device, s.kill)
	if c.Audio {
		s.audio = platform.NewTrack(domain.TrackKindAudio, cfg.AudioDevice, nil)
		go s.readAudio(audioR)
	}
	go s.readFrames(stdout)
	go func() {
		s.exitErr = cmd.Wait()
		close(s.done)
	}()

	return s, nil
}

// finish publishes the stream once the delivered resolution is known.
func (s *captureStream) finish(res domain.Resolution) {
	tracks := []ports.Track{s.video}
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	s.Stream = platform.NewStream(res, tracks...)
}

func (s *captureStream) kill() {
	s.cancel()
	<-s.done
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
	s.logger.Debugw("capture process stopped", "error", s.exitErr)
}

func (s *captureStream) readFrames(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxFrameSize)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())

		s.firstOnce.Do(func() { s.firstFrame <- frame })

		s.mu.Lock()
		s.latest = frame
		for _, ch := range s.frameSubs {
			select {
			case ch <- frame:
			default:
			}
		}
		s.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warnw("frame reader stopped", "error", err)
	}
}

func (s *captureStream) readAudio(r *os.File) {
	defer r.Close()
	for {
		packet := make([]byte, audioPacketSize)
		if _, err := io.ReadFull(r, packet); err != nil {
			return
		}
		if !s.audio.Enabled() {
			clear(packet)
		}

		s.mu.Lock()
		for _, ch := range s.audioSubs {
			select {
			case ch <- packet:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (s *captureStream) latestFrame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video.Stopped() {
		return nil
	}
	return s.latest
}

// subscribe fans frames and audio packets out to a recorder. Slow consumers
// miss data rather than stall capture.
func (s *captureStream) subscribe() (frames, audio <-chan []byte, unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	f := make(chan []byte, 8)
	a := make(chan []byte, 64)
	s.frameSubs[id] = f
	if s.audio != nil {
		s.audioSubs[id] = a
	}

	return f, a, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.frameSubs, id)
		delete(s.audioSubs, id)
	}
}
