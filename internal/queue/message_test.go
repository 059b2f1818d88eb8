package queue

import (
	"errors"
	"testing"
)

func TestEncodeStampsVersion(t *testing.T) {
	payload, err := EncodeMessage(Message{DocumentID: "doc-1", StorageKey: "1-a.pdf"})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.Version != MessageVersion || got.DocumentID != "doc-1" || got.StorageKey != "1-a.pdf" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"storageKey":"k"}`)); !errors.Is(err, ErrMissingDocumentID) {
		t.Fatalf("expected ErrMissingDocumentID, got %v", err)
	}
	if _, err := DecodeMessage([]byte(`{"documentId":"d","version":9}`)); err == nil {
		t.Fatalf("expected error for future version")
	}
	if _, err := DecodeMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
