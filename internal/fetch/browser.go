package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ppiankov/tntracker/internal/cache"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// BrowserFetcher renders JavaScript-driven pages in headless Chrome and
// returns the resulting outer HTML.
type BrowserFetcher struct {
	cfg         model.BrowserConfig
	userAgent   string
	maxAttempts int
	cache       cache.Cache

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
	now         func() time.Time
}

// NewBrowserFetcher creates a browser fetcher. Chrome starts on first use.
func NewBrowserFetcher(cfg model.BrowserConfig, userAgent string, maxAttempts int, c cache.Cache) *BrowserFetcher {
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "body"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &BrowserFetcher{
		cfg:         cfg,
		userAgent:   userAgent,
		maxAttempts: maxAttempts,
		cache:       c,
		now:         time.Now,
	}
}

func (b *BrowserFetcher) allocator() context.Context {
	b.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(b.userAgent),
			chromedp.DisableGPU,
		)
		if b.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
		}
		// The browser outlives any single request context
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return b.allocCtx
}

// Fetch renders origin and returns its HTML
func (b *BrowserFetcher) Fetch(ctx context.Context, origin string) (*Content, error) {
	key := cache.Key(origin, true)
	if b.cache != nil {
		if entry, ok := b.cache.Get(key); ok {
			return &Content{
				Bytes:       entry.Body,
				ContentType: entry.ContentType,
				FinalURL:    entry.FinalURL,
				FetchedAt:   entry.FetchedAt,
				FromCache:   true,
			}, nil
		}
	}

	content, err := withRetry(ctx, origin, b.maxAttempts, func(ctx context.Context) (*Content, error) {
		return b.render(ctx, origin)
	})
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		_ = b.cache.Set(key, &cache.Entry{
			Body:        content.Bytes,
			ContentType: content.ContentType,
			FinalURL:    content.FinalURL,
			FetchedAt:   content.FetchedAt,
		}, 0)
	}
	return content, nil
}

func (b *BrowserFetcher) render(ctx context.Context, origin string) (*Content, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocator())
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.Timeout)
	defer cancelTimeout()

	// Abandon the tab if the caller goes away
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html, finalURL string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(origin),
		chromedp.WaitVisible(b.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if tabCtx.Err() != nil && ctx.Err() == nil {
			return nil, errors.NewFetchError(errors.FetchTimeout, origin, 0, err)
		}
		return nil, errors.NewFetchError(kindForError(err), origin, 0, fmt.Errorf("render: %w", err))
	}

	return &Content{
		Bytes:       []byte(html),
		ContentType: "text/html; charset=utf-8",
		FinalURL:    finalURL,
		FetchedAt:   b.now().UTC(),
	}, nil
}

// Close shuts the browser down
func (b *BrowserFetcher) Close() {
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
