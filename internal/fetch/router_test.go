package fetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

type stubFetcher struct {
	name  string
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, origin string) (*Content, error) {
	s.calls = append(s.calls, origin)
	return &Content{Bytes: []byte(s.name), FinalURL: origin}, nil
}

func TestRouter_Route(t *testing.T) {
	httpF := &stubFetcher{name: "http"}
	browserF := &stubFetcher{name: "browser"}
	fileF := &stubFetcher{name: "file"}
	r := &Router{HTTP: httpF, Browser: browserF, File: fileF}
	ctx := context.Background()

	c, err := r.FetchRendered(ctx, "https://www.myneta.info/x", false)
	require.NoError(t, err)
	assert.Equal(t, "http", string(c.Bytes))

	c, err = r.FetchRendered(ctx, "HTTPS://tamil.timesnownews.com/a", true)
	require.NoError(t, err)
	assert.Equal(t, "browser", string(c.Bytes))

	c, err = r.Fetch(ctx, "data/roster.csv")
	require.NoError(t, err)
	assert.Equal(t, "file", string(c.Bytes))

	// Render has no meaning for local files
	c, err = r.FetchRendered(ctx, "data/page.html", true)
	require.NoError(t, err)
	assert.Equal(t, "file", string(c.Bytes))
}

func TestRouter_MissingBrowserIsConfigError(t *testing.T) {
	r := &Router{HTTP: &stubFetcher{}, File: &stubFetcher{}}
	_, err := r.FetchRendered(context.Background(), "https://example.org", true)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifestos.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	f := NewFileFetcher()
	c, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(c.Bytes))
	assert.Contains(t, c.ContentType, "json")
	assert.True(t, filepath.IsAbs(c.FinalURL))

	c, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(c.Bytes))

	_, err = f.Fetch(context.Background(), filepath.Join(dir, "missing.csv"))
	fe, ok := errors.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, errors.FetchNotFound, fe.Kind)
}

// TestBrowserFetcher_Integration needs a local Chrome and skips otherwise.
func TestBrowserFetcher_Integration(t *testing.T) {
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("Skipping browser test: chrome not available")
	}

	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><script>document.body.innerHTML='<p id="x">rendered</p>'</script></body></html>`), 0o644))

	b := NewBrowserFetcher(model.BrowserConfig{WaitSelector: "#x", Timeout: 20 * time.Second}, "test-agent", 1, nil)
	defer b.Close()

	c, err := b.Fetch(context.Background(), "file://"+page)
	require.NoError(t, err)
	assert.Contains(t, string(c.Bytes), "rendered")
}
