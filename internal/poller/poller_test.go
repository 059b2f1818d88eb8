package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docchat-backend/internal/client"
)

type scriptedLister struct {
	mu    sync.Mutex
	steps [][]client.Document
	errs  []error
	calls int
}

func (s *scriptedLister) List(context.Context) ([]client.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i], nil
}

func docs(statuses ...string) []client.Document {
	out := make([]client.Document, len(statuses))
	for i, s := range statuses {
		out[i] = client.Document{ID: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestRunStopsWhenNothingProcessing(t *testing.T) {
	src := &scriptedLister{steps: [][]client.Document{
		docs("processing", "ready"),
		docs("processing", "ready"),
		docs("error", "ready"),
	}}
	var updates int
	p := &Poller{Source: src, Interval: time.Millisecond, OnUpdate: func([]client.Document) { updates++ }}

	final, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(final) != 2 || final[0].Status != "error" {
		t.Fatalf("unexpected final list %+v", final)
	}
	if src.calls != 3 || updates != 3 {
		t.Fatalf("expected 3 fetches and updates, got %d/%d", src.calls, updates)
	}
}

func TestRunReturnsImmediatelyWhenIdle(t *testing.T) {
	src := &scriptedLister{steps: [][]client.Document{docs("ready")}}
	p := &Poller{Source: src, Interval: time.Hour}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected a single fetch, got %d", src.calls)
	}
}

func TestRunKeepsPollingThroughErrors(t *testing.T) {
	src := &scriptedLister{
		steps: [][]client.Document{nil, nil, docs("ready")},
		errs:  []error{errors.New("timeout"), errors.New("502")},
	}
	p := &Poller{Source: src, Interval: time.Millisecond}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.calls != 3 {
		t.Fatalf("expected 3 fetches, got %d", src.calls)
	}
}

func TestRunHonoursMaxDuration(t *testing.T) {
	src := &scriptedLister{steps: [][]client.Document{docs("processing")}}
	p := &Poller{Source: src, Interval: time.Millisecond, MaxDuration: 20 * time.Millisecond}
	last, err := p.Run(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if len(last) != 1 || !last[0].Processing() {
		t.Fatalf("expected last seen list, got %+v", last)
	}
}
