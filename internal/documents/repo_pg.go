package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, name, original_name, storage_key, size_bytes, mime_type, status, extracted_text, page_count, error_message, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    name,
    original_name,
    storage_key,
    size_bytes,
    mime_type,
    status,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.OwnerID,
		doc.Name,
		doc.OriginalName,
		doc.StorageKey,
		doc.SizeBytes,
		doc.MimeType,
		string(doc.Status),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// Get fetches a live document by ID for owner.
func (r *PGRepo) Get(ctx context.Context, owner Owner, id string) (Document, error) {
	if !owner.valid() {
		return Document{}, ErrNoOwner
	}
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, owner.ID(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// List returns the owner's live documents, newest first. extracted_text is
// not selected.
func (r *PGRepo) List(ctx context.Context, owner Owner) ([]Document, error) {
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	const query = `
SELECT id, owner_id, name, original_name, storage_key, size_bytes, mime_type, status, NULL, page_count, error_message, created_at, updated_at
FROM documents
WHERE owner_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, owner.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Delete tombstones a live document and returns it.
func (r *PGRepo) Delete(ctx context.Context, owner Owner, id string) (Document, error) {
	if !owner.valid() {
		return Document{}, ErrNoOwner
	}
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}
	query := `
UPDATE documents
SET deleted_at = now(), updated_at = now()
WHERE owner_id = $1 AND id = $2 AND deleted_at IS NULL
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, owner.ID(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// CompleteExtraction moves a processing document to ready.
func (r *PGRepo) CompleteExtraction(ctx context.Context, id, text string, pageCount int) error {
	const query = `
UPDATE documents
SET status = 'ready', extracted_text = $2, page_count = $3, updated_at = now()
WHERE id = $1 AND status = 'processing' AND deleted_at IS NULL`
	return expectOneRow(r.DB.ExecContext(ctx, query, id, text, pageCount))
}

// FailExtraction moves a processing document to error.
func (r *PGRepo) FailExtraction(ctx context.Context, id, reason string) error {
	const query = `
UPDATE documents
SET status = 'error', error_message = $2, updated_at = now()
WHERE id = $1 AND status = 'processing' AND deleted_at IS NULL`
	return expectOneRow(r.DB.ExecContext(ctx, query, id, reason))
}

// FailStale marks documents stuck in processing as error.
func (r *PGRepo) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	const query = `
UPDATE documents
SET status = 'error', error_message = $2, updated_at = now()
WHERE status = 'processing' AND deleted_at IS NULL AND created_at < $1`
	res, err := r.DB.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan), staleReason)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PurgeDeleted hard-deletes tombstones older than olderThan.
func (r *PGRepo) PurgeDeleted(ctx context.Context, olderThan time.Duration) (int, error) {
	const query = `DELETE FROM documents WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	res, err := r.DB.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var extractedText sql.NullString
	var pageCount sql.NullInt64
	var errorMessage sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Name,
		&doc.OriginalName,
		&doc.StorageKey,
		&doc.SizeBytes,
		&doc.MimeType,
		&status,
		&extractedText,
		&pageCount,
		&errorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Status = Status(status)
	if extractedText.Valid {
		doc.ExtractedText = &extractedText.String
	}
	if pageCount.Valid {
		pages := int(pageCount.Int64)
		doc.PageCount = &pages
	}
	if errorMessage.Valid {
		doc.ErrorMessage = errorMessage.String
	}
	return doc, nil
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotProcessing
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
