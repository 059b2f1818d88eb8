package documents

import (
	"context"
	"time"
)

const staleReason = "extraction did not finish"

// Repo persists documents. Reads and deletes require an Owner, so no
// handler can reach another user's record.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, owner Owner, id string) (Document, error)
	List(ctx context.Context, owner Owner) ([]Document, error)
	// Delete tombstones the record and returns it as it was.
	Delete(ctx context.Context, owner Owner, id string) (Document, error)
	Transitions
	Maintenance
}

// Transitions are the only unscoped writes. Each applies only while the
// record is processing and not deleted, and returns ErrNotProcessing otherwise.
type Transitions interface {
	CompleteExtraction(ctx context.Context, id, text string, pageCount int) error
	FailExtraction(ctx context.Context, id, reason string) error
}

// Maintenance backs operator tooling.
type Maintenance interface {
	// FailStale moves records processing since before now-olderThan to error.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
	// PurgeDeleted removes tombstones older than olderThan.
	PurgeDeleted(ctx context.Context, olderThan time.Duration) (int, error)
}
