package queue

import "context"

// TaskExtractDocument is the asynq task type for document extraction.
const TaskExtractDocument = "document:extract"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
