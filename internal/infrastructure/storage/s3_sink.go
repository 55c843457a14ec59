package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"camcapture/internal/core/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // for S3-compatible stores such as MinIO
	AccessKey string
	SecretKey string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads artifacts to a bucket with the multipart upload manager.
// A failed upload is reported once; nothing is retried.
type S3Sink struct {
	uploader uploader
	bucket   string
	prefix   string
	logger   *zap.SugaredLogger
}

// NewS3Sink resolves AWS credentials from the default chain unless static
// keys are configured.
func NewS3Sink(ctx context.Context, cfg S3Config, logger *zap.SugaredLogger) (*S3Sink, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %w", domain.ErrSinkUnavailable, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	sink := newS3Sink(manager.NewUploader(client), cfg.Bucket, cfg.Prefix)
	if logger != nil {
		sink.logger = logger
	}
	return sink, nil
}

func newS3Sink(u uploader, bucket, prefix string) *S3Sink {
	return &S3Sink{
		uploader: u,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   zap.NewNop().Sugar(),
	}
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Sink) Save(ctx context.Context, name string, data io.Reader) error {
	if err := validName(name); err != nil {
		return err
	}

	key := s.key(name)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		s.logger.Warnw("S3 upload failed", "bucket", s.bucket, "key", key, "error", err)
		return fmt.Errorf("%w: failed to upload to S3: %w", domain.ErrSinkUnavailable, err)
	}
	s.logger.Debugw("uploaded artifact", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".webm":
		return domain.MimeWebM
	case ".mp4":
		return domain.MimeMP4
	case ".png":
		return domain.MimePNG
	}
	return "application/octet-stream"
}
