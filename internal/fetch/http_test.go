package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/tntracker/internal/cache"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/util"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		MaxAttempts:  3,
	}
}

func fired() <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchAfterFunc
	fetchAfterFunc = func(time.Duration) <-chan time.Time { return fired() }
	t.Cleanup(func() { fetchAfterFunc = orig })
}

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = fmt.Fprint(w, "candidate,party\nA Kumar,PartyX\n")
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(testHTTPConfig())
	content, err := fetcher.Fetch(context.Background(), server.URL+"/roster.csv")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(content.Bytes) != "candidate,party\nA Kumar,PartyX\n" {
		t.Errorf("Unexpected body: %q", content.Bytes)
	}
	if content.ContentType != "text/csv" {
		t.Errorf("Unexpected content type %q", content.ContentType)
	}
	if !strings.HasSuffix(content.FinalURL, "/roster.csv") {
		t.Errorf("Unexpected final URL %q", content.FinalURL)
	}
	if content.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestHTTPFetcher_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	content, err := NewHTTPFetcher(testHTTPConfig()).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(content.Bytes) != "<html>OK</html>" {
		t.Errorf("Unexpected body: %s", content.Bytes)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	if _, err := NewHTTPFetcher(testHTTPConfig()).Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_AllRetriesExhausted(t *testing.T) {
	var sleeps []time.Duration
	orig := fetchAfterFunc
	fetchAfterFunc = func(d time.Duration) <-chan time.Time {
		sleeps = append(sleeps, d)
		return fired()
	}
	defer func() { fetchAfterFunc = orig }()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(testHTTPConfig()).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("Expected backoff of 1s then 2s, got %v", sleeps)
	}
	fe, ok := errors.AsFetchError(err)
	if !ok || fe.Kind != errors.FetchUnreachable || fe.StatusCode != http.StatusBadGateway {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestHTTPFetcher_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orig := fetchAfterFunc
	fetchAfterFunc = func(time.Duration) <-chan time.Time {
		cancel()
		return nil
	}
	defer func() { fetchAfterFunc = orig }()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		_, err := NewHTTPFetcher(testHTTPConfig()).Fetch(ctx, server.URL)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Backoff ignored cancellation")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_StatusKinds(t *testing.T) {
	noSleep(t)

	tests := []struct {
		status int
		kind   errors.FetchKind
	}{
		{http.StatusNotFound, errors.FetchNotFound},
		{http.StatusGone, errors.FetchNotFound},
		{http.StatusForbidden, errors.FetchForbidden},
		{http.StatusUnauthorized, errors.FetchForbidden},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewHTTPFetcher(testHTTPConfig()).Fetch(context.Background(), server.URL)
			fe, ok := errors.AsFetchError(err)
			if !ok {
				t.Fatalf("Expected FetchError, got %v", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, fe.Kind)
			}
			if attempts.Load() != 1 {
				t.Errorf("Permanent failures must not be retried, got %d attempts", attempts.Load())
			}
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	noSleep(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testHTTPConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxAttempts = 1

	_, err := NewHTTPFetcher(cfg).Fetch(context.Background(), server.URL)
	fe, ok := errors.AsFetchError(err)
	if !ok || fe.Kind != errors.FetchTimeout {
		t.Fatalf("Expected timeout FetchError, got %v", err)
	}
	if !errors.Is(err, errors.ErrTimeout) {
		t.Error("timeout FetchError should match ErrTimeout")
	}
}

func TestHTTPFetcher_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxBodyBytes = 1024

	if _, err := NewHTTPFetcher(cfg).Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error for oversized body")
	}
}

func TestHTTPFetcher_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "secret")
	}))
	defer server.Close()

	robots := util.NewRobotsChecker("test-agent", server.Client(), time.Second)
	fetcher := NewHTTPFetcher(testHTTPConfig(), WithRobots(robots))

	_, err := fetcher.Fetch(context.Background(), server.URL+"/private/list")
	fe, ok := errors.AsFetchError(err)
	if !ok || fe.Kind != errors.FetchForbidden {
		t.Fatalf("Expected forbidden, got %v", err)
	}
	if pageHits.Load() != 0 {
		t.Error("Disallowed page must not be requested")
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/public"); err != nil {
		t.Errorf("Expected allowed path to succeed, got %v", err)
	}
}

func TestHTTPFetcher_Cache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, "cached body")
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(testHTTPConfig(), WithCache(cache.NewMemoryCache(time.Minute, time.Minute)))

	first, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}

	if hits.Load() != 1 {
		t.Errorf("Expected one upstream request, got %d", hits.Load())
	}
	if first.FromCache || !second.FromCache {
		t.Error("Expected the second fetch to come from cache")
	}
	if string(second.Bytes) != "cached body" {
		t.Errorf("Unexpected cached body %q", second.Bytes)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", errors.NewFetchError(errors.FetchUnreachable, "u", 503, nil), true},
		{"500", errors.NewFetchError(errors.FetchUnreachable, "u", 500, nil), true},
		{"429", errors.NewFetchError(errors.FetchUnreachable, "u", 429, nil), true},
		{"404", errors.NewFetchError(errors.FetchNotFound, "u", 404, nil), false},
		{"403", errors.NewFetchError(errors.FetchForbidden, "u", 403, nil), false},
		{"timeout", errors.NewFetchError(errors.FetchTimeout, "u", 0, context.DeadlineExceeded), true},
		{"refused", errors.NewFetchError(errors.FetchUnreachable, "u", 0, fmt.Errorf("dial tcp: connection refused")), true},
		{"reset", errors.NewFetchError(errors.FetchUnreachable, "u", 0, fmt.Errorf("read: connection reset by peer")), true},
		{"bad url", errors.NewFetchError(errors.FetchUnreachable, "u", 0, fmt.Errorf("create request: invalid URL")), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
