package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"camcapture/internal/core/domain"
)

const (
	sampleRate = 48000
	channels   = 2
	// s16le, interleaved
	bytesPerSample = 2 * channels

	// audioFD is the descriptor the child sees for the first ExtraFiles entry.
	audioFD = 3
)

// captureArgs opens the camera (and microphone) and splits them into an MJPEG
// stream on stdout and raw PCM on fd 3.
func (c Config) captureArgs(device string, cons domain.Constraints) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",

		"-f", c.InputFormat,
		"-framerate", strconv.Itoa(c.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", cons.IdealWidth, cons.IdealHeight),
		"-i", device,
	}
	if cons.Audio {
		args = append(args,
			"-f", c.AudioFormat,
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"-i", c.AudioDevice,
		)
	}

	args = append(args,
		"-map", "0:v:0",
		"-c:v", "mjpeg",
		"-q:v", "4",
		"-f", "mjpeg",
		"pipe:1",
	)
	if cons.Audio {
		args = append(args,
			"-map", "1:a:0",
			"-c:a", "pcm_s16le",
			"-f", "s16le",
			fmt.Sprintf("pipe:%d", audioFD),
		)
	}
	return args
}

// recordArgs encodes MJPEG frames from stdin (and PCM from fd 3) into webm on
// stdout, cutting a cluster every chunk interval.
func (c Config) recordArgs(withAudio bool) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",

		"-f", "mjpeg",
		"-framerate", strconv.Itoa(c.FrameRate),
		"-i", "pipe:0",
	}
	if withAudio {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"-i", fmt.Sprintf("pipe:%d", audioFD),
		)
	}

	args = append(args,
		"-map", "0:v:0",
		"-c:v", c.VideoCodec,
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-b:v", "2500k",
		"-pix_fmt", "yuv420p",
	)
	if withAudio {
		args = append(args,
			"-map", "1:a:0",
			"-c:a", c.AudioCodec,
			"-b:a", "96k",
		)
	}
	args = append(args,
		"-f", "webm",
		"-cluster_time_limit", strconv.FormatInt(c.ChunkInterval.Milliseconds(), 10),
		"-live", "1",
		"pipe:1",
	)
	return args
}

// classify maps ffmpeg's stderr onto the acquisition errors the session
// understands.
func classify(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" && err != nil {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "device or resource busy"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceBusy, msg)
	case strings.Contains(lower, "permission denied"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, msg)
	case strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "executable file not found"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, msg)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedSettings, msg)
	}
}
