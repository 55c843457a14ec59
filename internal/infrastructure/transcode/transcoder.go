// Package transcode converts webm recordings to mp4 with the ffmpeg binary.
package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"camcapture/internal/core/domain"

	"go.uber.org/zap"
)

// FFmpegTranscoder remuxes the video stream without re-encoding it.
type FFmpegTranscoder struct {
	binary string
	logger *zap.SugaredLogger
}

func NewFFmpegTranscoder(binary string, logger *zap.SugaredLogger) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FFmpegTranscoder{binary: binary, logger: logger}
}

func (t *FFmpegTranscoder) Available(ctx context.Context) bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src *domain.Artifact) (*domain.Artifact, error) {
	if src.MimeType != domain.MimeWebM {
		return nil, fmt.Errorf("%w: cannot transcode %s", domain.ErrTranscodeFailed, src.MimeType)
	}
	if !t.Available(ctx) {
		return nil, domain.ErrTranscoderMissing
	}

	dir, err := os.MkdirTemp("", "camcapture-transcode-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.webm")
	output := filepath.Join(dir, "output.mp4")
	if err := os.WriteFile(input, src.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err)
	}

	cmd := exec.CommandContext(ctx, t.binary, remuxArgs(input, output)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %w\n%s", domain.ErrTranscodeFailed, err, string(out))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err)
	}

	converted := domain.NewArtifact(src.Kind, domain.MimeMP4, data)
	t.logger.Infow("recording transcoded",
		"source_id", src.ID,
		"artifact_id", converted.ID,
		"in_bytes", src.Size,
		"out_bytes", converted.Size,
	)
	return converted, nil
}

// remuxArgs copies the VP9 video as is and re-encodes opus audio to AAC,
// which every mp4 player understands.
func remuxArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", input,
		"-c:v", "copy",
		"-c:a", "aac",
		"-movflags", "+faststart",
		output,
	}
}
