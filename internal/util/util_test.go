package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rc := NewRobotsChecker("tntracker/0.1 (+https://example.org)", srv.Client(), time.Second)
	ctx := context.Background()

	allowed, delay, err := rc.CanFetch(ctx, srv.URL+"/TamilNadu2021/")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	allowed, _, err = rc.CanFetch(ctx, srv.URL+"/private/page")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, int32(1), hits.Load(), "robots.txt should be fetched once per host")
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rc := NewRobotsChecker("tntracker", srv.Client(), time.Second)
	allowed, _, err := rc.CanFetch(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "tntracker", NormalizeUserAgent("tntracker/0.1 (+https://x)"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "", "internal.example, .corp")

	req := &http.Request{URL: &url.URL{Scheme: "http", Host: "eci.gov.in"}}
	got, err := proxy(req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "proxy:3128", got.Host)

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "db.corp"}}
	got, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, got)
}
