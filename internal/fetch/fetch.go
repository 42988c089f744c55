// Package fetch retrieves raw source bytes over HTTP, a headless browser or
// the local filesystem.
package fetch

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
)

// Content is the raw result of a fetch
type Content struct {
	Bytes       []byte
	ContentType string
	FinalURL    string
	FetchedAt   time.Time
	FromCache   bool
}

// Fetcher retrieves the content behind an origin
type Fetcher interface {
	Fetch(ctx context.Context, origin string) (*Content, error)
}

const defaultMaxAttempts = 3

// fetchAfterFunc is replaced in tests to skip backoff delays
var fetchAfterFunc = time.After

// withRetry calls fn up to attempts times, backing off 1s, 2s, 4s between
// transient failures. A cancelled ctx ends the backoff early.
func withRetry(ctx context.Context, origin string, attempts int, fn func(context.Context) (*Content, error)) (*Content, error) {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		content, err := fn(ctx)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < attempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			logging.FromContext(ctx).Debug().
				Err(err).
				Str("origin", origin).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("transient fetch failure, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-fetchAfterFunc(backoff):
			}
		}
	}
	return nil, lastErr
}

// isRetryable reports whether err is transient: 5xx, 429, timeouts and
// refused or reset connections.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := errors.AsFetchError(err); ok {
		if fe.StatusCode >= 500 && fe.StatusCode < 600 || fe.StatusCode == 429 {
			return true
		}
		if fe.Kind == errors.FetchTimeout {
			return true
		}
		if fe.Kind != errors.FetchUnreachable || fe.Err == nil {
			return false
		}
		err = fe.Err
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// kindForStatus maps an HTTP status to a fetch error kind
func kindForStatus(status int) errors.FetchKind {
	switch status {
	case 404, 410:
		return errors.FetchNotFound
	case 401, 403, 451:
		return errors.FetchForbidden
	case 408, 504:
		return errors.FetchTimeout
	default:
		return errors.FetchUnreachable
	}
}

// kindForError maps a transport error to a fetch error kind
func kindForError(err error) errors.FetchKind {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.FetchTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.FetchTimeout
	}
	return errors.FetchUnreachable
}
