package tokenmap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileSource reads the mapping from the local filesystem.
type FileSource struct {
	Path string
}

func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	absPath, err := filepath.Abs(f.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	return os.ReadFile(absPath)
}

func (f FileSource) String() string {
	return f.Path
}

// S3Config holds S3 connection configuration.
type S3Config struct {
	Bucket    string
	Key       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// objectGetter is the subset of *s3.Client used by S3Source.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the mapping object from S3 or an S3-compatible store.
type S3Source struct {
	client objectGetter
	bucket string
	key    string
}

// NewS3Source creates an S3 source. Static credentials are used when an
// access key is configured.
func NewS3Source(cfg S3Config) *S3Source {
	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true // Required for MinIO and most S3-compatible services
	}

	return &S3Source{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		key:    cfg.Key,
	}
}

func (s *S3Source) Read(ctx context.Context) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

func (s *S3Source) String() string {
	return "s3://" + s.bucket + "/" + s.key
}
