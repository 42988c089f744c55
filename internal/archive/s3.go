package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// S3Archive stores blobs in an S3 bucket or an S3-compatible endpoint
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive loads the default AWS credential chain.
func NewS3Archive(ctx context.Context, cfg model.ArchiveConfig) (*S3Archive, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.NewConfigError("archive", "load AWS config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3Archive) Put(ctx context.Context, checksum string, data []byte) error {
	key, err := objectKey(a.prefix, checksum)
	if err != nil {
		return err
	}
	if ok, err := a.exists(ctx, key); err != nil || ok {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, checksum string) ([]byte, error) {
	key, err := objectKey(a.prefix, checksum)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, errors.NewNotFoundError("archived document", checksum)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func (a *S3Archive) Exists(ctx context.Context, checksum string) (bool, error) {
	key, err := objectKey(a.prefix, checksum)
	if err != nil {
		return false, err
	}
	return a.exists(ctx, key)
}

func (a *S3Archive) exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var missing *types.NotFound
	if errors.As(err, &missing) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s: %w", key, err)
}
