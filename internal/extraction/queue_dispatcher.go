package extraction

import (
	"context"
	"time"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/queue"
)

// QueueDispatcher hands jobs to an external queue for worker processes.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

// Dispatch publishes job as a queue message.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job documents.ExtractionJob) error {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return d.Client.Send(ctx, queue.Message{
		DocumentID: job.DocumentID,
		StorageKey: job.StorageKey,
		RequestID:  job.RequestID,
		EnqueuedAt: now().UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	})
}

// Cancel is a no-op; a worker that finishes after delete finds the tombstone
// and discards its result.
func (d *QueueDispatcher) Cancel(string) {}

// JobFromMessage converts a queue message back into a job.
func JobFromMessage(msg queue.Message) documents.ExtractionJob {
	return documents.ExtractionJob{
		DocumentID: msg.DocumentID,
		StorageKey: msg.StorageKey,
		RequestID:  msg.RequestID,
	}
}

var _ documents.Dispatcher = (*QueueDispatcher)(nil)
