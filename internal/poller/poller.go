// Package poller refreshes a document list until no document is processing.
package poller

import (
	"context"
	"time"

	"docchat-backend/internal/client"
	"docchat-backend/internal/shared/telemetry"
)

// DefaultInterval matches the dashboard refresh cadence.
const DefaultInterval = 3 * time.Second

// Lister fetches the full document list.
type Lister interface {
	List(ctx context.Context) ([]client.Document, error)
}

// Poller re-fetches the list on a fixed interval while any document is
// processing.
type Poller struct {
	Source   Lister
	Interval time.Duration
	// OnUpdate receives every successfully fetched list.
	OnUpdate func([]client.Document)
	// MaxDuration stops polling with context.DeadlineExceeded. Zero polls
	// until nothing is processing.
	MaxDuration time.Duration
}

// Run polls until no document is processing and returns that final list.
// Fetch errors are logged and the previous list is kept. When ctx ends first,
// Run returns the last list it saw with ctx's error.
func (p *Poller) Run(ctx context.Context) ([]client.Document, error) {
	if p.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxDuration)
		defer cancel()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last []client.Document
	for {
		docs, err := p.Source.List(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				telemetry.Warn("poller.fetch_failed", map[string]any{"error": err})
			}
		default:
			last = docs
			if p.OnUpdate != nil {
				p.OnUpdate(docs)
			}
			if !AnyProcessing(docs) {
				return docs, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// AnyProcessing reports whether any document is still processing.
func AnyProcessing(docs []client.Document) bool {
	for _, d := range docs {
		if d.Processing() {
			return true
		}
	}
	return false
}
