package domain

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatChunks_KeepsArrivalOrder(t *testing.T) {
	a := ConcatChunks(MimeWebM, [][]byte{[]byte("head"), nil, []byte("-c1"), []byte("-c2")})

	assert.Equal(t, "head-c1-c2", string(a.Bytes()))
	assert.Equal(t, int64(10), a.Size)
	assert.Equal(t, 4, a.Chunks)
	assert.Equal(t, ArtifactRecording, a.Kind)
	assert.Equal(t, "webm", a.Extension())
	assert.NotEmpty(t, a.ID)
}

func TestConcatChunks_EmptyIsValid(t *testing.T) {
	a := ConcatChunks(MimeWebM, nil)
	assert.True(t, a.Empty())
	assert.Zero(t, a.Size)
	assert.Equal(t, MimeWebM, a.MimeType)
}

func TestArtifact_IsImmutable(t *testing.T) {
	src := []byte("png-bytes")
	a := NewArtifact(ArtifactStill, MimePNG, src)
	src[0] = 'X'

	out := a.Bytes()
	out[1] = 'Y'
	assert.Equal(t, "png-bytes", string(a.Bytes()))

	data, err := io.ReadAll(a.Reader())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "png", a.Extension())
}

func TestArtifact_Extension(t *testing.T) {
	assert.Equal(t, "mp4", NewArtifact(ArtifactRecording, MimeMP4, nil).Extension())
	assert.Equal(t, "bin", NewArtifact(ArtifactRecording, "application/octet-stream", nil).Extension())
}
