package documents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docchat-backend/internal/shared/storage/object/local"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	jobs      []ExtractionJob
	cancelled []string
	err       error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job ExtractionJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Cancel(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = append(d.cancelled, id)
}

type knownUsers map[string]bool

func (u knownUsers) Exists(_ context.Context, id string) (bool, error) {
	if id == "explode" {
		return false, errors.New("db down")
	}
	return u[id], nil
}

type fixture struct {
	svc        *Service
	repo       *MemoryRepo
	dispatcher *recordingDispatcher
	dir        string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	repo := NewMemoryRepo()
	dispatcher := &recordingDispatcher{}
	clock := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{
		Store:          local.New(dir),
		Repo:           repo,
		Users:          knownUsers{"user-a": true, "user-b": true},
		Dispatcher:     dispatcher,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Now: func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		},
	}
	return fixture{svc: svc, repo: repo, dispatcher: dispatcher, dir: dir}
}

func mustOwner(t *testing.T, id string) Owner {
	t.Helper()
	owner, err := NewOwner(id)
	if err != nil {
		t.Fatalf("NewOwner(%q): %v", id, err)
	}
	return owner
}
