package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mediadrop/internal/digest"
	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
)

// S3Config holds the settings for an S3 compatible bucket.
type S3Config struct {
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	// Endpoint selects a non-AWS service such as MinIO and enables path-style addressing.
	Endpoint string `toml:"endpoint"`
	// PublicBaseURL is the prefix under which stored keys are served.
	PublicBaseURL string `toml:"public_base_url"`
}

// ObjectPutter is the subset of the S3 API the sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores blobs under "<sha256><ext>" keys.
type S3Sink struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	timeout time.Duration
}

// NewS3Sink loads AWS configuration and builds a sink. Static credentials are
// used when both keys are set, otherwise the default provider chain applies.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("s3 public base url is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3SinkWithClient(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

// NewS3SinkWithClient builds a sink around an existing client.
func NewS3SinkWithClient(client ObjectPutter, bucket, publicBaseURL string) *S3Sink {
	return &S3Sink{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		timeout: DefaultTimeout,
	}
}

// Name implements Sink.
func (s *S3Sink) Name() string {
	return "s3"
}

// Key returns the object key for blob.
func Key(blob mediatypes.Blob) string {
	return digest.Sum(blob.Data).String() + mediatypes.ExtensionFor(blob.ContentType())
}

// Upload implements Sink. Progress is reported at the start and on completion.
func (s *S3Sink) Upload(ctx context.Context, blob mediatypes.Blob, progress ProgressFunc) (string, error) {
	key := Key(blob)
	total := blob.Size()
	if progress != nil {
		progress(0, total)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob.Data),
		ContentLength: aws.Int64(total),
		ContentType:   aws.String(blob.ContentType()),
	})
	if err != nil {
		logging.Warn("S3 upload of %s to bucket %s failed: %v", key, s.bucket, err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if progress != nil {
		progress(total, total)
	}
	logging.Info("Uploaded %s to bucket %s", key, s.bucket)
	return s.baseURL + "/" + key, nil
}
