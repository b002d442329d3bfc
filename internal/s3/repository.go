package s3

import (
	"bufio"
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

type Option func(*Repository)

func WithRegion(region string) Option {
	return func(r *Repository) {
		r.Region = region
	}
}

func WithBucket(bucket string) Option {
	return func(r *Repository) {
		r.Bucket = bucket
	}
}

func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.Prefix = prefix
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func WithForcePathStyle(forcePathStyle bool) Option {
	return func(r *Repository) {
		r.ForcePathStyle = forcePathStyle
	}
}

func WithEndpoint(endpoint string) Option {
	return func(r *Repository) {
		r.Endpoint = endpoint
	}
}

// Repository uploads artifacts to an S3 bucket.
type Repository struct {
	logger   *zap.Logger
	uploader *s3manager.Uploader

	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	ForcePathStyle bool
}

func New(opts ...Option) (*Repository, error) {
	r := &Repository{
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(r)
	}

	sess, err := session.NewSession(r.awsConfig())
	if err != nil {
		return nil, err
	}
	r.uploader = s3manager.NewUploader(sess)

	return r, nil
}

func (r *Repository) awsConfig() *aws.Config {
	awsConfig := &aws.Config{
		Region:           aws.String(r.Region),
		S3ForcePathStyle: aws.Bool(r.ForcePathStyle),
	}

	if r.Endpoint != "" {
		awsConfig.Endpoint = aws.String(r.Endpoint)
	}
	return awsConfig
}

// ObjectKey is the key an artifact written under key is stored at.
func (r *Repository) ObjectKey(key string) string {
	return path.Join(r.Prefix, key)
}

func (r *Repository) Write(ctx context.Context, key string, reader io.Reader) error {
	objPath := r.ObjectKey(key)

	r.logger.Debug(
		"S3 repository write",
		zap.String("key", key),
		zap.String("prefix", r.Prefix),
		zap.String("object_path", objPath),
		zap.String("bucket", r.Bucket),
	)

	// io.ReadSeeker would let the uploader skip buffering each part
	_, err := r.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(objPath),
		Body:   bufio.NewReader(reader),
	})
	return err
}

// Flush is a noop, uploads complete before Write returns.
func (r *Repository) Flush(ctx context.Context) error {
	return nil
}
