// Package storage holds the download sinks exported artifacts are written to.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"camcapture/internal/core/domain"
	"camcapture/pkg/validation"
)

// FileSink writes artifacts into a local directory.
type FileSink struct {
	basePath string
}

// NewFileSink creates the directory if needed.
func NewFileSink(basePath string) (*FileSink, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create export directory: %w", domain.ErrSinkUnavailable, err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSinkUnavailable, err)
	}
	return &FileSink{basePath: abs}, nil
}

// Save writes data to a temporary file and renames it into place, so a
// reader never sees a partial artifact.
func (fs *FileSink) Save(ctx context.Context, name string, data io.Reader) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(fs.basePath, "."+name+".*")
	if err != nil {
		return fmt.Errorf("%w: failed to create file: %w", domain.ErrSinkUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), fs.Location(name)); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

func (fs *FileSink) Location(name string) string {
	return filepath.Join(fs.basePath, name)
}

// Load opens a previously saved artifact.
func (fs *FileSink) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(fs.Location(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func validName(name string) error {
	if err := validation.ValidateArtifactName(name); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArtifactName, err)
	}
	return nil
}
