package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"

	"ghedit-go/internal/config"
	"ghedit-go/internal/ws"
)

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage keeps the workspace document as a zstd-compressed object at
// <prefix>/<key>.json.zst.
type S3Storage struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	key      string
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

var _ ws.WorkspaceStorage = (*S3Storage)(nil)

// NewS3Storage creates an S3Storage using client.
func NewS3Storage(client S3API, bucket, prefix, name string) (*S3Storage, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &S3Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		key:      path.Join(prefix, name+".json.zst"),
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// NewS3StorageFromConfig builds an S3 client from cfg and wraps it.
func NewS3StorageFromConfig(ctx context.Context, cfg config.WorkspaceStorageConfig) (*S3Storage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})

	name := cfg.Key
	if name == "" {
		name = config.DefaultStorageKey
	}
	return NewS3Storage(client, cfg.S3Bucket, cfg.S3Prefix, name)
}

// Key returns the object key the document is stored under.
func (s *S3Storage) Key() string {
	return s.key
}

func (s *S3Storage) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("get object %s: %w", s.key, err)
	}
	defer out.Body.Close()

	compressed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", s.key, err)
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing object %s: %w", s.key, err)
	}
	return data, nil
}

func (s *S3Storage) Save(ctx context.Context, data []byte) error {
	compressed := s.encoder.EncodeAll(data, nil)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(compressed),
		ContentType: aws.String("application/zstd"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", s.key, err)
	}
	return nil
}
