package pipeline

import (
	"context"
	"strings"

	"github.com/ppiankov/tntracker/internal/cache"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/fetch"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/util"
	"github.com/ppiankov/tntracker/internal/worker"
)

// NewRouter builds the HTTP, browser and file fetchers from configuration.
// The returned func shuts the browser down.
func NewRouter(cfg *model.Config) (*fetch.Router, func() error) {
	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	var opts []fetch.HTTPOption
	if c != nil {
		opts = append(opts, fetch.WithCache(c))
	}
	if cfg.RateLimiting.RequestsPerSecond > 0 {
		opts = append(opts, fetch.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)))
	}
	httpFetcher := fetch.NewHTTPFetcher(cfg.HTTP, opts...)
	if cfg.HTTP.RespectRobots {
		// Robots lookups share the fetcher's transport and proxy settings
		fetch.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, httpFetcher.Client(), cfg.HTTP.Timeout))(httpFetcher)
	}

	browser := fetch.NewBrowserFetcher(cfg.Browser, cfg.HTTP.UserAgent, cfg.HTTP.MaxAttempts, c)
	router := &fetch.Router{
		HTTP:    httpFetcher,
		Browser: browser,
		File:    fetch.NewFileFetcher(),
	}
	return router, func() error {
		browser.Close()
		return nil
	}
}

// NewLocker builds the merge lock. A Redis lock is pinged up front so an
// unreachable server is reported as a configuration error.
func NewLocker(ctx context.Context, cfg model.LockConfig) (worker.Locker, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return worker.NewKeyedMutex(), func() error { return nil }, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.NewConfigError("lock", "redis backend needs lock.redis_addr", nil)
		}
		l := worker.NewRedisLocker(cfg.RedisAddr, cfg.TTL)
		if err := l.Ping(ctx); err != nil {
			_ = l.Close()
			return nil, nil, errors.NewConfigError("lock", "cannot reach redis at "+cfg.RedisAddr, err)
		}
		return l, l.Close, nil
	default:
		return nil, nil, errors.NewConfigError("lock", "unknown backend "+cfg.Backend, nil)
	}
}
