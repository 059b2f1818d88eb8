package extraction

import (
	"context"
	"testing"
	"time"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/shared/storage/object/local"
)

type stubExtractor func(ctx context.Context, data []byte) (extract.Result, error)

func (f stubExtractor) Extract(ctx context.Context, data []byte) (extract.Result, error) {
	return f(ctx, data)
}

type env struct {
	store  *local.Store
	repo   *documents.MemoryRepo
	runner *Runner
	owner  documents.Owner
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := local.New(t.TempDir())
	repo := documents.NewMemoryRepo()
	owner, err := documents.NewOwner("user-1")
	if err != nil {
		t.Fatalf("NewOwner: %v", err)
	}
	return env{
		store:  store,
		repo:   repo,
		owner:  owner,
		runner: &Runner{Store: store, Repo: repo, Extractor: extract.PDFExtractor{}},
	}
}

func (e env) seed(t *testing.T, id string, blob []byte) documents.ExtractionJob {
	t.Helper()
	key := id + ".pdf"
	if blob != nil {
		if err := e.store.Put(context.Background(), key, "application/pdf", bytesReader(blob), int64(len(blob))); err != nil {
			t.Fatalf("put blob: %v", err)
		}
	}
	now := time.Now().UTC()
	err := e.repo.Create(context.Background(), documents.Document{
		ID:         id,
		OwnerID:    e.owner.ID(),
		Name:       id,
		StorageKey: key,
		Status:     documents.StatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return documents.ExtractionJob{DocumentID: id, StorageKey: key, RequestID: "req-" + id}
}

func (e env) get(t *testing.T, id string) documents.Document {
	t.Helper()
	doc, err := e.repo.Get(context.Background(), e.owner, id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return doc
}
