package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

const sourceColumns = `id, origin, title, tier, retrieved_at, published_at, checksum, notes`

// InsertSourceDocument stores doc unless a document with the same checksum
// exists, in which case doc is overwritten with the stored row.
func (q *Queries) InsertSourceDocument(ctx context.Context, doc *model.SourceDocument) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO source_documents (origin, title, tier, retrieved_at, published_at, checksum, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (checksum) DO NOTHING
		 RETURNING id`,
		doc.Origin, doc.Title, int(doc.Tier), formatTime(doc.RetrievedAt), nullTime(doc.PublishedAt), doc.Checksum, doc.Notes)
	if err != nil {
		return false, fmt.Errorf("insert source document: %w", err)
	}
	if created {
		doc.ID = id
		return true, nil
	}
	existing, err := q.SourceDocumentByChecksum(ctx, doc.Checksum)
	if err != nil {
		return false, err
	}
	*doc = *existing
	return false, nil
}

// SourceDocument returns a document by id.
func (q *Queries) SourceDocument(ctx context.Context, id int64) (*model.SourceDocument, error) {
	doc, err := scanSourceDocument(q.queryRow(ctx, `SELECT `+sourceColumns+` FROM source_documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("source document", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get source document: %w", err)
	}
	return doc, nil
}

// SourceDocumentByChecksum returns the document with the given checksum.
func (q *Queries) SourceDocumentByChecksum(ctx context.Context, checksum string) (*model.SourceDocument, error) {
	doc, err := scanSourceDocument(q.queryRow(ctx, `SELECT `+sourceColumns+` FROM source_documents WHERE checksum = ?`, checksum))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("source document", checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("get source document: %w", err)
	}
	return doc, nil
}

// SourceDocumentsByOrigin returns every document registered for origin,
// newest first.
func (q *Queries) SourceDocumentsByOrigin(ctx context.Context, origin string) ([]model.SourceDocument, error) {
	rows, err := q.query(ctx,
		`SELECT `+sourceColumns+` FROM source_documents WHERE origin = ? ORDER BY retrieved_at DESC, id DESC`, origin)
	if err != nil {
		return nil, fmt.Errorf("list source documents: %w", err)
	}
	defer rows.Close()

	var docs []model.SourceDocument
	for rows.Next() {
		doc, err := scanSourceDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func scanSourceDocument(row scanner) (*model.SourceDocument, error) {
	var (
		doc       model.SourceDocument
		tier      int
		retrieved string
		published sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.Origin, &doc.Title, &tier, &retrieved, &published, &doc.Checksum, &doc.Notes); err != nil {
		return nil, err
	}
	doc.Tier = model.TrustTier(tier)
	doc.RetrievedAt = parseTime(retrieved)
	doc.PublishedAt = timePtr(published)
	return &doc, nil
}
