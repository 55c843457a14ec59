package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camcapture/internal/core/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.Save(context.Background(), "recorded.webm", strings.NewReader("webm-bytes")))
	assert.Equal(t, filepath.Join(dir, "recorded.webm"), sink.Location("recorded.webm"))

	rc, err := sink.Load(context.Background(), "recorded.webm")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileSink_Overwrites(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, "capture.png", strings.NewReader("first")))
	require.NoError(t, sink.Save(ctx, "capture.png", strings.NewReader("second")))

	data, err := os.ReadFile(sink.Location("capture.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileSink_RejectsTraversal(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../x.webm", "a/b.png", `a\b.png`} {
		assert.Error(t, sink.Save(context.Background(), name, strings.NewReader("x")), name)
	}

	_, err = sink.Load(context.Background(), "missing.webm")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	calls int
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.calls++
	f.input = input
	data, _ := io.ReadAll(input.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Key: input.Key}, nil
}


func TestS3Sink_Save(t *testing.T) {
	up := &fakeUploader{}
	sink := newS3Sink(up, "media", "/phone/captures/")

	require.NoError(t, sink.Save(context.Background(), "recorded.mp4", strings.NewReader("mp4")))

	assert.Equal(t, "media", aws.ToString(up.input.Bucket))
	assert.Equal(t, "phone/captures/recorded.mp4", aws.ToString(up.input.Key))
	assert.Equal(t, domain.MimeMP4, aws.ToString(up.input.ContentType))
	assert.Equal(t, "mp4", up.body)
	assert.Equal(t, "s3://media/phone/captures/recorded.mp4", sink.Location("recorded.mp4"))
}

func TestS3Sink_UploadErrorIsNotRetried(t *testing.T) {
	up := &fakeUploader{err: errors.New("connection reset")}
	sink := newS3Sink(up, "media", "")

	err := sink.Save(context.Background(), "capture.png", strings.NewReader("png"))
	assert.ErrorIs(t, err, domain.ErrSinkUnavailable)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "s3://media/capture.png", sink.Location("capture.png"))
}

func TestS3Sink_RejectsBadNames(t *testing.T) {
	up := &fakeUploader{}
	sink := newS3Sink(up, "media", "")

	err := sink.Save(context.Background(), "../escape.webm", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidArtifactName)
	assert.Zero(t, up.calls)
}
