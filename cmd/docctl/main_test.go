package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docchat-backend/internal/documents"
)

func run(t *testing.T, maint maintenanceFactory, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(maint)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func noMaintenance(context.Context) (documents.Maintenance, func(), error) {
	return nil, nil, nil
}

func TestListPrintsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{
			{"id": "doc-1", "name": "report", "status": "ready", "pageCount": 3, "fileSize": 1200, "createdAt": "2026-01-02T03:04:05Z"},
		}})
	}))
	defer srv.Close()

	out, err := run(t, noMaintenance, "--api", srv.URL, "--token", "tok", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "doc-1") || !strings.Contains(out, "report") || !strings.Contains(out, "ready") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWatchPrintsTransitions(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		status := "processing"
		if calls > 1 {
			status = "ready"
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{
			{"id": "doc-1", "name": "report", "status": status},
		}})
	}))
	defer srv.Close()

	out, err := run(t, noMaintenance, "--api", srv.URL, "watch", "--interval", "10ms")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out, "doc-1\tprocessing") || !strings.Contains(out, "doc-1\tready") {
		t.Fatalf("expected both states, got %q", out)
	}
}

func TestGetReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"Document not found"}}`))
	}))
	defer srv.Close()

	_, err := run(t, noMaintenance, "--api", srv.URL, "get", "missing")
	if err == nil || !strings.Contains(err.Error(), "Document not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSweepFailsStaleAndPurges(t *testing.T) {
	repo := documents.NewMemoryRepo()
	old := time.Now().Add(-2 * time.Hour)
	owner, err := documents.NewOwner("user-1")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	for _, doc := range []documents.Document{
		{ID: "stale", OwnerID: "user-1", Name: "a", StorageKey: "1-a.pdf", Status: documents.StatusProcessing, CreatedAt: old, UpdatedAt: old},
		{ID: "fresh", OwnerID: "user-1", Name: "b", StorageKey: "2-b.pdf", Status: documents.StatusProcessing, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	} {
		if err := repo.Create(context.Background(), doc); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	closed := false
	maint := func(context.Context) (documents.Maintenance, func(), error) {
		return repo, func() { closed = true }, nil
	}

	out, err := run(t, maint, "sweep", "--older-than", "1h", "--purge")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "marked 1 stale") || !strings.Contains(out, "purged 0") {
		t.Fatalf("unexpected output %q", out)
	}
	if !closed {
		t.Fatalf("expected maintenance store closed")
	}
	stale, err := repo.Get(context.Background(), owner, "stale")
	if err != nil || stale.Status != documents.StatusError {
		t.Fatalf("expected stale doc failed, got %+v %v", stale, err)
	}
	fresh, _ := repo.Get(context.Background(), owner, "fresh")
	if fresh.Status != documents.StatusProcessing {
		t.Fatalf("fresh doc must stay processing, got %s", fresh.Status)
	}
}
