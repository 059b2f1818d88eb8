package extraction

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/shared/telemetry"
)

// ErrPoolClosed is returned by Dispatch after Shutdown.
var ErrPoolClosed = errors.New("extraction pool closed")

// JobRunner executes one extraction job.
type JobRunner interface {
	Run(ctx context.Context, job documents.ExtractionJob) error
}

type inflight struct {
	cancel context.CancelFunc
}

// Pool runs extraction jobs in-process with at most N running at once.
// Jobs beyond the limit wait for a slot without blocking the dispatcher.
type Pool struct {
	runner JobRunner
	sem    *semaphore.Weighted

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*inflight
	closed bool
}

// NewPool constructs a Pool with the given concurrency limit.
func NewPool(runner JobRunner, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	base, stop := context.WithCancel(context.Background())
	return &Pool{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		base:   base,
		stop:   stop,
		jobs:   make(map[string]*inflight),
	}
}

// Dispatch schedules job and returns immediately.
func (p *Pool) Dispatch(_ context.Context, job documents.ExtractionJob) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	ctx, cancel := context.WithCancel(telemetry.WithRequestID(p.base, job.RequestID))
	entry := &inflight{cancel: cancel}
	p.jobs[job.DocumentID] = entry
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.release(job.DocumentID, entry)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			telemetry.Warn("extraction.cancelled", map[string]any{
				"request_id":  job.RequestID,
				"document_id": job.DocumentID,
				"error":       err,
				"queued":      true,
			})
			return
		}
		defer p.sem.Release(1)

		if err := p.runner.Run(ctx, job); err != nil && ctx.Err() == nil {
			telemetry.Error("extraction.run_failed", map[string]any{
				"request_id":  job.RequestID,
				"document_id": job.DocumentID,
				"error":       err,
			})
		}
	}()
	return nil
}

// Cancel stops the job for documentID if it is queued or running here.
func (p *Pool) Cancel(documentID string) {
	p.mu.Lock()
	entry, ok := p.jobs[documentID]
	p.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones. When ctx ends
// first the remaining jobs are cancelled and ctx's error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		<-done
		return ctx.Err()
	}
}

// Wait blocks until every dispatched job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) release(documentID string, entry *inflight) {
	entry.cancel()
	p.mu.Lock()
	if p.jobs[documentID] == entry {
		delete(p.jobs, documentID)
	}
	p.mu.Unlock()
}

var _ documents.Dispatcher = (*Pool)(nil)
