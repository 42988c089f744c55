package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// GCSArchive stores blobs in a Google Cloud Storage bucket
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive uses application default credentials.
func NewGCSArchive(ctx context.Context, cfg model.ArchiveConfig) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.NewConfigError("archive", "create GCS client", err)
	}
	return &GCSArchive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *GCSArchive) object(checksum string) (*storage.ObjectHandle, error) {
	key, err := objectKey(a.prefix, checksum)
	if err != nil {
		return nil, err
	}
	return a.client.Bucket(a.bucket).Object(key), nil
}

func (a *GCSArchive) Put(ctx context.Context, checksum string, data []byte) error {
	obj, err := a.object(checksum)
	if err != nil {
		return err
	}
	if _, err := obj.Attrs(ctx); err == nil {
		return nil
	}
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close: %w", err)
	}
	return nil
}

func (a *GCSArchive) Get(ctx context.Context, checksum string) ([]byte, error) {
	obj, err := a.object(checksum)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.NewNotFoundError("archived document", checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read: %w", err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (a *GCSArchive) Exists(ctx context.Context, checksum string) (bool, error) {
	obj, err := a.object(checksum)
	if err != nil {
		return false, err
	}
	_, err = obj.Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("gcs attrs: %w", err)
	}
}
