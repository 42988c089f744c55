package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is a cached fetch response
type Entry struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type,omitempty"`
	FinalURL    string    `json:"final_url,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Cache stores fetch responses by key
type Cache interface {
	Get(key string) (*Entry, bool)
	Set(key string, entry *Entry, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for an origin. Rendered and plain fetches of the
// same URL are cached separately.
func Key(origin string, rendered bool) string {
	h := sha256.New()
	h.Write([]byte(origin))
	if rendered {
		h.Write([]byte("\x00render"))
	}
	return "tntracker:v1:" + hex.EncodeToString(h.Sum(nil))
}
