// Package registry records where every imported byte came from.
//
// A SourceDocument is identified by the sha256 of its origin and content.
// JSON content is canonicalized first, so re-serialized but unchanged
// documents register once.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/rs/zerolog"

	"github.com/ppiankov/tntracker/internal/archive"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/store"
)

// Document is a registration request
type Document struct {
	Origin      string
	Title       string
	Tier        model.TrustTier
	PublishedAt *time.Time
	Notes       string
	Content     []byte    // Nil registers the origin without content
	RetrievedAt time.Time // Defaults to now
}

// Registry registers and looks up source documents
type Registry struct {
	store   *store.Store
	archive archive.Archiver
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithArchive keeps the raw content of new documents.
func WithArchive(a archive.Archiver) Option {
	return func(r *Registry) { r.archive = a }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry over s.
func New(s *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		archive: archive.Nop{},
		now:     time.Now,
		logger:  logging.Default().With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Checksum returns the identity of content fetched from origin.
func Checksum(origin string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(origin))
	h.Write([]byte{'\n'})
	h.Write(Canonical(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical returns the RFC 8785 form of JSON content and anything else
// unchanged.
func Canonical(content []byte) []byte {
	if len(content) == 0 || !json.Valid(content) {
		return content
	}
	out, err := jcs.Transform(content)
	if err != nil {
		return content
	}
	return out
}

// Register records d and reports whether a new document was created.
// Registering the same origin and content again returns the stored
// document. Registering an origin without content returns its latest
// document when one exists.
func (r *Registry) Register(ctx context.Context, d Document) (model.SourceDocument, bool, error) {
	if d.Origin == "" {
		return model.SourceDocument{}, false, fmt.Errorf("register: %w: empty origin", errors.ErrInvalidInput)
	}

	prior, err := r.store.SourceDocumentsByOrigin(ctx, d.Origin)
	if err != nil {
		return model.SourceDocument{}, false, err
	}
	if len(d.Content) == 0 && len(prior) > 0 {
		return prior[0], false, nil
	}

	tier := d.Tier
	if len(prior) > 0 {
		first := prior[len(prior)-1]
		if first.Tier != tier {
			r.logger.Warn().
				Str("origin", d.Origin).
				Str("tier", tier.String()).
				Str("registered_tier", first.Tier.String()).
				Msg("Ignoring tier change for a registered origin")
			tier = first.Tier
		}
	}

	retrieved := d.RetrievedAt
	if retrieved.IsZero() {
		retrieved = r.now()
	}
	doc := model.SourceDocument{
		Origin:      d.Origin,
		Title:       d.Title,
		Tier:        tier,
		RetrievedAt: retrieved.UTC(),
		PublishedAt: d.PublishedAt,
		Checksum:    Checksum(d.Origin, d.Content),
		Notes:       d.Notes,
	}
	created, err := r.store.InsertSourceDocument(ctx, &doc)
	if err != nil {
		return model.SourceDocument{}, false, err
	}
	if !created {
		return doc, false, nil
	}

	if len(d.Content) > 0 {
		if err := r.archive.Put(ctx, doc.Checksum, d.Content); err != nil {
			r.logger.Warn().Err(err).Int64("source_id", doc.ID).Msg("Failed to archive source content")
		}
	}
	r.logger.Debug().
		Int64("source_id", doc.ID).
		Str("origin", doc.Origin).
		Str("tier", doc.Tier.String()).
		Msg("Registered source document")
	return doc, true, nil
}

// RegisterRef registers a document cited inside a record.
func (r *Registry) RegisterRef(ctx context.Context, ref model.SourceRef) (model.SourceDocument, error) {
	doc, _, err := r.Register(ctx, Document{
		Origin:      ref.Origin,
		Title:       ref.Title,
		Tier:        ref.Tier,
		PublishedAt: ref.PublishedAt,
		Notes:       ref.Notes,
		Content:     ref.Content,
	})
	return doc, err
}

// Get returns a document by id.
func (r *Registry) Get(ctx context.Context, id int64) (model.SourceDocument, error) {
	doc, err := r.store.SourceDocument(ctx, id)
	if err != nil {
		return model.SourceDocument{}, err
	}
	return *doc, nil
}

// ForOrigin lists the documents of an origin, newest first.
func (r *Registry) ForOrigin(ctx context.Context, origin string) ([]model.SourceDocument, error) {
	return r.store.SourceDocumentsByOrigin(ctx, origin)
}

// Content returns the archived bytes of a document.
func (r *Registry) Content(ctx context.Context, doc model.SourceDocument) ([]byte, error) {
	data, err := r.archive.Get(ctx, doc.Checksum)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", strconv.FormatInt(doc.ID, 10), err)
	}
	return data, nil
}
