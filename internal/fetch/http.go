package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/tntracker/internal/cache"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/util"
	"github.com/ppiankov/tntracker/internal/worker"
)

const maxRedirects = 5

// HTTPFetcher downloads origins with plain GET requests
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBytes    int64
	maxAttempts int
	robots      *util.RobotsChecker
	limiter     *worker.Limiter
	cache       cache.Cache
	now         func() time.Time
}

// HTTPOption configures an HTTPFetcher
type HTTPOption func(*HTTPFetcher)

// WithRobots enables robots.txt checks
func WithRobots(rc *util.RobotsChecker) HTTPOption {
	return func(f *HTTPFetcher) { f.robots = rc }
}

// WithLimiter enables per-host pacing
func WithLimiter(l *worker.Limiter) HTTPOption {
	return func(f *HTTPFetcher) { f.limiter = l }
}

// WithCache enables the response cache
func WithCache(c cache.Cache) HTTPOption {
	return func(f *HTTPFetcher) { f.cache = c }
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// NewHTTPFetcher creates an HTTP fetcher from configuration
func NewHTTPFetcher(cfg model.HTTPConfig, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: util.NewTransport(cfg),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		maxBytes:    cfg.MaxBodyBytes,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 50 << 20
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the HTTP client so robots checks can share its transport
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch downloads origin, retrying transient failures
func (f *HTTPFetcher) Fetch(ctx context.Context, origin string) (*Content, error) {
	logger := logging.FromContext(ctx)
	key := cache.Key(origin, false)

	if f.cache != nil {
		if entry, ok := f.cache.Get(key); ok {
			logger.Debug().Str("origin", origin).Msg("fetch cache hit")
			return &Content{
				Bytes:       entry.Body,
				ContentType: entry.ContentType,
				FinalURL:    entry.FinalURL,
				FetchedAt:   entry.FetchedAt,
				FromCache:   true,
			}, nil
		}
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, origin)
		if err != nil {
			return nil, errors.NewFetchError(errors.FetchUnreachable, origin, 0, err)
		}
		if !allowed {
			return nil, errors.NewFetchError(errors.FetchForbidden, origin, 0, fmt.Errorf("disallowed by robots.txt"))
		}
		if f.limiter != nil {
			f.limiter.ApplyCrawlDelay(origin, delay)
		}
	}

	content, err := withRetry(ctx, origin, f.maxAttempts, func(ctx context.Context) (*Content, error) {
		return f.fetchOnce(ctx, origin)
	})
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		entry := &cache.Entry{
			Body:        content.Bytes,
			ContentType: content.ContentType,
			FinalURL:    content.FinalURL,
			FetchedAt:   content.FetchedAt,
		}
		if err := f.cache.Set(key, entry, 0); err != nil {
			logger.Warn().Err(err).Str("origin", origin).Msg("fetch cache write failed")
		}
	}

	return content, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, origin string) (*Content, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, origin); err != nil {
			return nil, errors.NewFetchError(kindForError(err), origin, 0, err)
		}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, nil)
	if err != nil {
		return nil, errors.NewFetchError(errors.FetchUnreachable, origin, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json,text/csv,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9,ta;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(kindForError(err), origin, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, errors.NewFetchError(kindForStatus(resp.StatusCode), origin, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.NewFetchError(kindForError(err), origin, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBytes {
		return nil, errors.NewFetchError(errors.FetchUnreachable, origin, resp.StatusCode,
			fmt.Errorf("body exceeds %d bytes", f.maxBytes))
	}

	return &Content{
		Bytes:       body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		FetchedAt:   f.now().UTC(),
	}, nil
}
