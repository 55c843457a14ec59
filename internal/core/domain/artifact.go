package domain

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
)

type ArtifactID string

type ArtifactKind string

const (
	ArtifactRecording ArtifactKind = "recording"
	ArtifactStill     ArtifactKind = "still"
)

const (
	MimeWebM = "video/webm"
	MimeMP4  = "video/mp4"
	MimePNG  = "image/png"
)

// Artifact is an immutable blob produced by the session: a flushed recording
// or an encoded still. The payload is only reachable through copies and
// readers.
type Artifact struct {
	ID        ArtifactID   `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	MimeType  string       `json:"mime_type"`
	Size      int64        `json:"size"`
	Chunks    int          `json:"chunks,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	data []byte
}

func NewArtifact(kind ArtifactKind, mimeType string, data []byte) *Artifact {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &Artifact{
		ID:        ArtifactID(uuid.NewString()),
		Kind:      kind,
		MimeType:  mimeType,
		Size:      int64(len(owned)),
		CreatedAt: time.Now(),
		data:      owned,
	}
}

// ConcatChunks joins recorder chunks in arrival order into one artifact.
// An empty chunk list yields a valid, empty artifact.
func ConcatChunks(mimeType string, chunks [][]byte) *Artifact {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}
	a := &Artifact{
		ID:        ArtifactID(uuid.NewString()),
		Kind:      ArtifactRecording,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Chunks:    len(chunks),
		CreatedAt: time.Now(),
		data:      data,
	}
	return a
}

func (a *Artifact) Bytes() []byte {
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.data)
}

func (a *Artifact) Empty() bool {
	return len(a.data) == 0
}

// Extension returns the file extension for the artifact's container.
func (a *Artifact) Extension() string {
	switch a.MimeType {
	case MimeWebM:
		return "webm"
	case MimeMP4:
		return "mp4"
	case MimePNG:
		return "png"
	}
	return "bin"
}

// ExportResult describes where an artifact ended up after export.
type ExportResult struct {
	Artifact   *Artifact `json:"artifact"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	Transcoded bool      `json:"transcoded"`
	// TranscodeError is set when conversion was requested but the original
	// container was exported instead.
	TranscodeError string `json:"transcode_error,omitempty"`
}
