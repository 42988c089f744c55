package fetch

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/tntracker/internal/errors"
)

// FileFetcher reads local paths. file:// URLs are accepted too.
type FileFetcher struct {
	now func() time.Time
}

// NewFileFetcher creates a file fetcher
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{now: time.Now}
}

func (f *FileFetcher) Fetch(ctx context.Context, origin string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewFetchError(kindForError(err), origin, 0, err)
	}

	path := strings.TrimPrefix(origin, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		kind := errors.FetchUnreachable
		switch {
		case os.IsNotExist(err):
			kind = errors.FetchNotFound
		case os.IsPermission(err):
			kind = errors.FetchForbidden
		}
		return nil, errors.NewFetchError(kind, origin, 0, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &Content{
		Bytes:       data,
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		FinalURL:    abs,
		FetchedAt:   f.now().UTC(),
	}, nil
}
