// Package archive keeps the raw bytes of registered source documents,
// addressed by their registry checksum.
package archive

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// Archiver stores raw document bytes
type Archiver interface {
	// Put stores data under checksum. Storing an existing checksum is a no-op.
	Put(ctx context.Context, checksum string, data []byte) error
	// Get returns the bytes stored under checksum.
	Get(ctx context.Context, checksum string) ([]byte, error)
	// Exists reports whether checksum is stored.
	Exists(ctx context.Context, checksum string) (bool, error)
}

// Backend names
const (
	BackendNone = "none"
	BackendFile = "file"
	BackendS3   = "s3"
	BackendGCS  = "gcs"
)

// New creates the archiver selected by cfg.
func New(ctx context.Context, cfg model.ArchiveConfig) (Archiver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return Nop{}, nil
	case BackendFile:
		if cfg.Dir == "" {
			return nil, errors.NewConfigError("archive", "file backend requires archive.dir", nil)
		}
		return NewFileArchive(cfg.Dir)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, errors.NewConfigError("archive", "s3 backend requires archive.bucket", nil)
		}
		return NewS3Archive(ctx, cfg)
	case BackendGCS:
		if cfg.Bucket == "" {
			return nil, errors.NewConfigError("archive", "gcs backend requires archive.bucket", nil)
		}
		return NewGCSArchive(ctx, cfg)
	default:
		return nil, errors.NewConfigError("archive", fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
}

// objectKey validates a hex checksum and returns its blob name.
func objectKey(prefix, checksum string) (string, error) {
	if _, err := hex.DecodeString(checksum); err != nil || checksum == "" {
		return "", fmt.Errorf("archive: %w: checksum %q", errors.ErrInvalidInput, checksum)
	}
	return prefix + checksum + ".blob", nil
}

// Nop discards everything
type Nop struct{}

func (Nop) Put(context.Context, string, []byte) error { return nil }

func (Nop) Get(_ context.Context, checksum string) ([]byte, error) {
	return nil, errors.NewNotFoundError("archived document", checksum)
}

func (Nop) Exists(context.Context, string) (bool, error) { return false, nil }

// FileArchive stores blobs in a local directory
type FileArchive struct {
	dir string
	mu  sync.RWMutex
}

// NewFileArchive creates dir if needed.
func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchive{dir: dir}, nil
}

func (a *FileArchive) Put(_ context.Context, checksum string, data []byte) error {
	name, err := objectKey("", checksum)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	path := filepath.Join(a.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (a *FileArchive) Get(_ context.Context, checksum string) ([]byte, error) {
	name, err := objectKey("", checksum)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("archived document", checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (a *FileArchive) Exists(_ context.Context, checksum string) (bool, error) {
	name, err := objectKey("", checksum)
	if err != nil {
		return false, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, err = os.Stat(filepath.Join(a.dir, name))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
