package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchat-backend/internal/shared/storage/object"
	"docchat-backend/internal/shared/telemetry"
)

const (
	// AcceptedMimeType is the only declared content type accepted on upload.
	AcceptedMimeType = "application/pdf"
	// DefaultMaxUploadBytes is the upload ceiling when none is configured.
	DefaultMaxUploadBytes = 10 << 20

	maxKeyAttempts = 5
)

// Dispatcher schedules extraction for an uploaded document without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, job ExtractionJob) error
	// Cancel stops in-flight extraction for documentID if this process runs it.
	Cancel(documentID string)
}

// UserChecker confirms the session user still exists.
type UserChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// UploadInput is a validated-on-entry file payload.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service contains business logic for documents.
type Service struct {
	Store          object.Store
	Repo           Repo
	Users          UserChecker
	Dispatcher     Dispatcher
	MaxUploadBytes int64
	Now            func() time.Time
}

// Validate classifies an upload as missing, wrong type or too large.
func (s *Service) Validate(in UploadInput) error {
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return ErrMissingFile
	}
	if !isPDF(in.ContentType) {
		return ErrUnsupportedType
	}
	if in.Size > s.maxBytes() {
		return ErrTooLarge
	}
	return nil
}

// Upload writes the blob, records the document as processing and schedules
// extraction. The returned document reflects the state at response time.
func (s *Service) Upload(ctx context.Context, owner Owner, in UploadInput) (Document, error) {
	if err := s.Validate(in); err != nil {
		return Document{}, err
	}
	if !owner.valid() {
		return Document{}, ErrNoOwner
	}
	if s.Users != nil {
		ok, err := s.Users.Exists(ctx, owner.ID())
		if err != nil {
			return Document{}, fmt.Errorf("user lookup: %w", err)
		}
		if !ok {
			return Document{}, ErrUserNotFound
		}
	}

	now := s.now()
	key, size, err := s.putBlob(ctx, now, in)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID(),
		Name:         DisplayName(in.FileName),
		OriginalName: in.FileName,
		StorageKey:   key,
		SizeBytes:    size,
		MimeType:     AcceptedMimeType,
		Status:       StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		s.removeBlob(ctx, key, doc.ID)
		return Document{}, fmt.Errorf("create document: %w", err)
	}

	telemetry.Info("document.uploaded", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"user_id":           owner.ID(),
		"document_id":       doc.ID,
		"size_bytes":        doc.SizeBytes,
		"status_transition": "->processing",
	})

	job := ExtractionJob{DocumentID: doc.ID, StorageKey: key, RequestID: telemetry.RequestIDFromContext(ctx)}
	if err := s.dispatch(ctx, job); err != nil {
		telemetry.Error("extraction.dispatch_failed", map[string]any{
			"request_id":  job.RequestID,
			"document_id": doc.ID,
			"error":       err,
		})
		if ferr := s.Repo.FailExtraction(telemetry.Detach(ctx), doc.ID, "dispatch: "+err.Error()); ferr == nil {
			doc.Status = StatusError
		}
	}
	return doc, nil
}

// Get returns one of the owner's documents including extracted text.
func (s *Service) Get(ctx context.Context, owner Owner, id string) (Document, error) {
	return s.Repo.Get(ctx, owner, id)
}

// List returns the owner's documents, newest first.
func (s *Service) List(ctx context.Context, owner Owner) ([]Document, error) {
	return s.Repo.List(ctx, owner)
}

// Delete tombstones the record, cancels in-flight extraction and removes the
// blob. Blob removal failures are logged, not returned.
func (s *Service) Delete(ctx context.Context, owner Owner, id string) error {
	doc, err := s.Repo.Delete(ctx, owner, id)
	if err != nil {
		return err
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Cancel(doc.ID)
	}
	s.removeBlob(ctx, doc.StorageKey, doc.ID)
	telemetry.Info("document.deleted", map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"user_id":     owner.ID(),
		"document_id": doc.ID,
		"status":      string(doc.Status),
	})
	return nil
}

// putBlob stores the upload under a fresh key. A failed Put never published
// our bytes, so the key is not deleted: it may belong to another upload.
// Collisions move the key forward one millisecond and retry with the body
// rewound, which needs in.Body to be an io.Seeker.
func (s *Service) putBlob(ctx context.Context, now time.Time, in UploadInput) (string, int64, error) {
	var lastErr error
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		if attempt > 0 {
			seeker, ok := in.Body.(io.Seeker)
			if !ok {
				break
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return "", 0, fmt.Errorf("rewind body: %w", err)
			}
		}
		key := StorageKey(now.Add(time.Duration(attempt)*time.Millisecond), in.FileName)
		body := &capReader{r: in.Body, remaining: s.maxBytes()}
		err := s.Store.Put(ctx, key, AcceptedMimeType, body, in.Size)
		if err == nil {
			return key, body.read, nil
		}
		if errors.Is(err, ErrTooLarge) {
			return "", 0, ErrTooLarge
		}
		if !errors.Is(err, object.ErrExists) {
			return "", 0, fmt.Errorf("store blob: %w", err)
		}
		telemetry.Warn("document.storage_key_collision", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"storage_key": key,
			"attempt":     attempt + 1,
		})
		lastErr = err
	}
	return "", 0, fmt.Errorf("store blob: %w", lastErr)
}

func (s *Service) dispatch(ctx context.Context, job ExtractionJob) error {
	if s.Dispatcher == nil {
		return errors.New("no extraction dispatcher configured")
	}
	return s.Dispatcher.Dispatch(ctx, job)
}

func (s *Service) removeBlob(ctx context.Context, key, documentID string) {
	if err := s.Store.Delete(telemetry.Detach(ctx), key); err != nil {
		telemetry.Warn("document.blob_delete_failed", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"document_id": documentID,
			"storage_key": key,
			"error":       err,
		})
	}
}

// MaxBytes is the effective upload ceiling.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes()
}

func (s *Service) maxBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// isPDF compares the declared type byte for byte. Parameters and case
// variants are rejected.
func isPDF(contentType string) bool {
	return contentType == AcceptedMimeType
}

// capReader fails with ErrTooLarge once more than remaining bytes are read,
// so a lying Content-Length cannot store an oversized blob.
type capReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
