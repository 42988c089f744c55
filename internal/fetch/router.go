package fetch

import (
	"context"
	"strings"

	"github.com/ppiankov/tntracker/internal/errors"
)

// Router picks a transport by origin: http(s) goes to HTTP, or to the browser
// when rendering is requested, and everything else is a local file.
type Router struct {
	HTTP    Fetcher
	Browser Fetcher
	File    Fetcher
}

// IsRemote reports whether origin is an http(s) URL.
func IsRemote(origin string) bool {
	lower := strings.ToLower(origin)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Route returns the fetcher for origin.
func (r *Router) Route(origin string, render bool) (Fetcher, error) {
	switch {
	case IsRemote(origin) && render:
		if r.Browser == nil {
			return nil, errors.NewConfigError("fetch", "browser rendering requested but no browser fetcher is configured", nil)
		}
		return r.Browser, nil
	case IsRemote(origin):
		if r.HTTP == nil {
			return nil, errors.NewConfigError("fetch", "no HTTP fetcher configured", nil)
		}
		return r.HTTP, nil
	default:
		if r.File == nil {
			return nil, errors.NewConfigError("fetch", "no file fetcher configured", nil)
		}
		return r.File, nil
	}
}

// Fetch fetches origin without rendering
func (r *Router) Fetch(ctx context.Context, origin string) (*Content, error) {
	return r.FetchRendered(ctx, origin, false)
}

// FetchRendered fetches origin, through the browser when render is set
func (r *Router) FetchRendered(ctx context.Context, origin string, render bool) (*Content, error) {
	f, err := r.Route(origin, render)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, origin)
}
