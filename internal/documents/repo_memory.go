package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]*Document
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]*Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := doc
	r.data[doc.ID] = &stored
	return nil
}

// Get returns a live document owned by owner.
func (r *MemoryRepo) Get(ctx context.Context, owner Owner, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !owner.valid() {
		return Document{}, ErrNoOwner
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok || doc.OwnerID != owner.ID() || doc.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	return copyDoc(doc), nil
}

// List returns the owner's live documents, newest first.
func (r *MemoryRepo) List(ctx context.Context, owner Owner) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !owner.valid() {
		return nil, ErrNoOwner
	}
	r.mu.RLock()
	out := make([]Document, 0)
	for _, doc := range r.data {
		if doc.OwnerID == owner.ID() && doc.DeletedAt == nil {
			out = append(out, copyDoc(doc))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete tombstones a live document owned by owner.
func (r *MemoryRepo) Delete(ctx context.Context, owner Owner, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !owner.valid() {
		return Document{}, ErrNoOwner
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok || doc.OwnerID != owner.ID() || doc.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	before := copyDoc(doc)
	now := r.now()
	doc.DeletedAt = &now
	doc.UpdatedAt = now
	return before, nil
}

// CompleteExtraction moves a processing document to ready.
func (r *MemoryRepo) CompleteExtraction(ctx context.Context, id, text string, pageCount int) error {
	return r.transition(ctx, id, func(doc *Document) {
		doc.Status = StatusReady
		doc.ExtractedText = &text
		doc.PageCount = &pageCount
	})
}

// FailExtraction moves a processing document to error.
func (r *MemoryRepo) FailExtraction(ctx context.Context, id, reason string) error {
	return r.transition(ctx, id, func(doc *Document) {
		doc.Status = StatusError
		doc.ErrorMessage = reason
	})
}

func (r *MemoryRepo) transition(ctx context.Context, id string, apply func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok || doc.Status != StatusProcessing || doc.DeletedAt != nil {
		return ErrNotProcessing
	}
	apply(doc)
	doc.UpdatedAt = r.now()
	return nil
}

// FailStale marks long-running processing documents as error.
func (r *MemoryRepo) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-olderThan)
	n := 0
	for _, doc := range r.data {
		if doc.Status == StatusProcessing && doc.DeletedAt == nil && doc.CreatedAt.Before(cutoff) {
			doc.Status = StatusError
			doc.ErrorMessage = staleReason
			doc.UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

// PurgeDeleted drops tombstones older than olderThan.
func (r *MemoryRepo) PurgeDeleted(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-olderThan)
	n := 0
	for id, doc := range r.data {
		if doc.DeletedAt != nil && doc.DeletedAt.Before(cutoff) {
			delete(r.data, id)
			n++
		}
	}
	return n, nil
}

func copyDoc(doc *Document) Document {
	out := *doc
	if doc.ExtractedText != nil {
		text := *doc.ExtractedText
		out.ExtractedText = &text
	}
	if doc.PageCount != nil {
		pages := *doc.PageCount
		out.PageCount = &pages
	}
	if doc.DeletedAt != nil {
		at := *doc.DeletedAt
		out.DeletedAt = &at
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
