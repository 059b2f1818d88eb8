package extraction

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/extract/extracttest"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func TestRunMarksReadyWithPageCount(t *testing.T) {
	e := newEnv(t)
	job := e.seed(t, "notes", extracttest.PDF("one", "two", "three", "four", "five"))

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := e.get(t, "notes")
	if doc.Status != documents.StatusReady {
		t.Fatalf("expected ready, got %s (%s)", doc.Status, doc.ErrorMessage)
	}
	if doc.PageCount == nil || *doc.PageCount != 5 {
		t.Fatalf("expected 5 pages, got %v", doc.PageCount)
	}
	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		t.Fatalf("expected extracted text")
	}
}

func TestRunMarksCorruptPDFAsError(t *testing.T) {
	e := newEnv(t)
	job := e.seed(t, "corrupt", []byte("%PDF-1.4 this is not really a pdf"))

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := e.get(t, "corrupt")
	if doc.Status != documents.StatusError {
		t.Fatalf("expected error, got %s", doc.Status)
	}
	if doc.ExtractedText != nil || doc.PageCount != nil {
		t.Fatalf("failed document must not carry text or page count")
	}
	if doc.ErrorMessage == "" {
		t.Fatalf("expected an error message")
	}
}

func TestRunMarksMissingBlobAsError(t *testing.T) {
	e := newEnv(t)
	job := e.seed(t, "orphan", nil)

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if doc := e.get(t, "orphan"); doc.Status != documents.StatusError {
		t.Fatalf("expected error, got %s", doc.Status)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	e := newEnv(t)
	e.runner.Extractor = stubExtractor(func(context.Context, []byte) (extract.Result, error) {
		panic("parser exploded")
	})
	job := e.seed(t, "panicky", []byte("%PDF"))

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if doc := e.get(t, "panicky"); doc.Status != documents.StatusError {
		t.Fatalf("expected error, got %s", doc.Status)
	}
}

func TestRunTimeoutBecomesError(t *testing.T) {
	e := newEnv(t)
	e.runner.Timeout = 10 * time.Millisecond
	e.runner.Extractor = stubExtractor(func(ctx context.Context, _ []byte) (extract.Result, error) {
		<-ctx.Done()
		return extract.Result{}, ctx.Err()
	})
	job := e.seed(t, "slow", []byte("%PDF"))

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := e.get(t, "slow")
	if doc.Status != documents.StatusError {
		t.Fatalf("expected error, got %s", doc.Status)
	}
}

func TestRunDiscardsResultForDeletedDocument(t *testing.T) {
	e := newEnv(t)
	job := e.seed(t, "gone", extracttest.PDF("hello"))
	if _, err := e.repo.Delete(context.Background(), e.owner, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := e.runner.Run(context.Background(), job); err != nil {
		t.Fatalf("late result should be discarded quietly, got %v", err)
	}
	if _, err := e.repo.Get(context.Background(), e.owner, "gone"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("deleted document must stay deleted, got %v", err)
	}
}

func TestRunCancelledLeavesDocumentProcessing(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	e.runner.Extractor = stubExtractor(func(ctx context.Context, _ []byte) (extract.Result, error) {
		cancel()
		return extract.Result{}, ctx.Err()
	})
	job := e.seed(t, "cancelled", []byte("%PDF"))

	if err := e.runner.Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if doc := e.get(t, "cancelled"); doc.Status != documents.StatusProcessing {
		t.Fatalf("expected processing, got %s", doc.Status)
	}
}

type failingTransitions struct {
	documents.Transitions
	failCalls int
}

func (f *failingTransitions) CompleteExtraction(context.Context, string, string, int) error {
	return errors.New("db down")
}

func (f *failingTransitions) FailExtraction(context.Context, string, string) error {
	f.failCalls++
	return errors.New("db down")
}

func TestRunReturnsErrorWhenStatusCannotBeWritten(t *testing.T) {
	e := newEnv(t)
	repo := &failingTransitions{}
	e.runner.Repo = repo
	e.runner.Extractor = stubExtractor(func(context.Context, []byte) (extract.Result, error) {
		return extract.Result{Text: "ok", PageCount: 1}, nil
	})
	job := e.seed(t, "unlucky", []byte("%PDF"))

	if err := e.runner.Run(context.Background(), job); err == nil {
		t.Fatalf("expected error when status write fails")
	}
	if repo.failCalls != 1 {
		t.Fatalf("expected fallback to error status, got %d calls", repo.failCalls)
	}
}
