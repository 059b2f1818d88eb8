package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageVersion is the payload version written by this build.
const MessageVersion = 1

// ErrMissingDocumentID is returned for payloads without a document id.
var ErrMissingDocumentID = errors.New("missing document id")

// Message is the payload sent to extraction workers.
type Message struct {
	DocumentID string `json:"documentId"`
	StorageKey string `json:"storageKey"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses and validates a JSON payload.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return msg, ErrMissingDocumentID
	}
	if msg.Version > MessageVersion {
		return msg, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
