package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/shared/metrics"
	"docchat-backend/internal/shared/storage/object"
	"docchat-backend/internal/shared/telemetry"
)

const (
	maxReasonLen     = 500
	statusWriteLimit = 10 * time.Second
)

// Extractor turns PDF bytes into text and a page count.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (extract.Result, error)
}

// Runner performs one extraction job and records the terminal status.
type Runner struct {
	Store     object.Store
	Repo      documents.Transitions
	Extractor Extractor
	// Timeout bounds a single extraction. Zero means no limit.
	Timeout time.Duration
}

// Run extracts the job's blob and moves the document to ready or error.
// Extraction failures are absorbed into the error status. Run returns an
// error only when the job was cancelled or the status could not be written,
// so queue backends can redeliver.
func (r *Runner) Run(ctx context.Context, job documents.ExtractionJob) error {
	start := time.Now()
	metrics.IncExtractionStarted()
	defer metrics.ExtractionFinished()

	fields := func() map[string]any {
		return map[string]any{
			"request_id":  job.RequestID,
			"document_id": job.DocumentID,
			"storage_key": job.StorageKey,
		}
	}
	telemetry.Info("extraction.started", fields())

	res, runErr := r.extract(ctx, job)
	if runErr != nil && ctx.Err() != nil {
		f := fields()
		f["error"] = ctx.Err()
		telemetry.Warn("extraction.cancelled", f)
		return ctx.Err()
	}

	writeCtx, cancel := context.WithTimeout(telemetry.Detach(telemetry.WithRequestID(ctx, job.RequestID)), statusWriteLimit)
	defer cancel()

	if runErr == nil {
		err := r.Repo.CompleteExtraction(writeCtx, job.DocumentID, res.Text, res.PageCount)
		switch {
		case err == nil:
			metrics.IncExtractionCompleted()
			metrics.ObserveExtractionDurationMs(metrics.Since(start))
			f := fields()
			f["page_count"] = res.PageCount
			f["text_len"] = len(res.Text)
			f["duration_ms"] = metrics.Since(start)
			f["status_transition"] = "processing->ready"
			telemetry.Info("extraction.completed", f)
			return nil
		case errors.Is(err, documents.ErrNotProcessing):
			r.discarded(fields())
			return nil
		default:
			runErr = fmt.Errorf("save result: %w", err)
		}
	}

	return r.fail(writeCtx, job, runErr, fields())
}

func (r *Runner) fail(ctx context.Context, job documents.ExtractionJob, cause error, f map[string]any) error {
	f["error"] = cause
	err := r.Repo.FailExtraction(ctx, job.DocumentID, reason(cause))
	switch {
	case err == nil:
		metrics.IncExtractionFailed()
		f["status_transition"] = "processing->error"
		telemetry.Error("extraction.failed", f)
		return nil
	case errors.Is(err, documents.ErrNotProcessing):
		r.discarded(f)
		return nil
	default:
		f["status_error"] = err
		telemetry.Error("extraction.status_write_failed", f)
		return fmt.Errorf("mark document %s failed: %w", job.DocumentID, err)
	}
}

func (r *Runner) discarded(f map[string]any) {
	metrics.IncExtractionDiscarded()
	telemetry.Info("extraction.discarded", f)
}

func (r *Runner) extract(ctx context.Context, job documents.ExtractionJob) (res extract.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = extract.Result{}
			err = fmt.Errorf("extraction panic: %v", rec)
		}
	}()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	body, err := r.Store.Open(ctx, job.StorageKey)
	if err != nil {
		return extract.Result{}, fmt.Errorf("open blob: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return extract.Result{}, fmt.Errorf("read blob: %w", err)
	}

	res, err = r.Extractor.Extract(ctx, data)
	if errors.Is(err, context.DeadlineExceeded) {
		return extract.Result{}, fmt.Errorf("extraction timed out after %s", r.Timeout)
	}
	return res, err
}

func reason(err error) string {
	msg := err.Error()
	if len(msg) > maxReasonLen {
		msg = msg[:maxReasonLen]
	}
	return msg
}
