package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	plain := Key("https://www.myneta.info/TamilNadu2021/", false)
	rendered := Key("https://www.myneta.info/TamilNadu2021/", true)

	assert.NotEqual(t, plain, rendered)
	assert.Equal(t, plain, Key("https://www.myneta.info/TamilNadu2021/", false))
	assert.Contains(t, plain, "tntracker:v1:")
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dc := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dc.now = func() time.Time { return now }

	entry := &Entry{Body: []byte("<html></html>"), ContentType: "text/html", FetchedAt: now}
	require.NoError(t, dc.Set("k", entry, 0))

	got, ok := dc.Get("k")
	require.True(t, ok)
	assert.Equal(t, entry.Body, got.Body)
	assert.Equal(t, "text/html", got.ContentType)

	now = now.Add(2 * time.Hour)
	_, ok = dc.Get("k")
	assert.False(t, ok, "entry should expire after the default ttl")

	assert.NoError(t, dc.Delete("missing"))
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	lc := NewLayeredCache(time.Minute, dir, time.Hour)

	entry := &Entry{Body: []byte("a,b\n1,2\n")}
	require.NoError(t, lc.Set("roster", entry, 0))

	// Drop the memory layer and read through disk
	require.NoError(t, lc.memory.Clear())
	got, ok := lc.Get("roster")
	require.True(t, ok)
	assert.Equal(t, entry.Body, got.Body)

	mem := lc.memory.(*MemoryCache)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, lc.Clear())
	_, ok = lc.Get("roster")
	assert.False(t, ok)
}
