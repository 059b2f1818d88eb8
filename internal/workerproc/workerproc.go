package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"docchat-backend/internal/extraction"
	"docchat-backend/internal/queue"
	"docchat-backend/internal/shared/metrics"
	"docchat-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a payload that is not a valid message.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrProcess indicates the job ran but could not record its outcome.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process document"
	}
	return "process document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the payload cannot help.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	return errors.As(err, &empty) || errors.As(err, &decode)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return msg, meta, ErrDecode{Meta: meta, Err: err}
	}
	return msg, meta, nil
}

// HandleMessage parses body and runs the extraction job it describes.
func HandleMessage(ctx context.Context, runner extraction.JobRunner, body string) error {
	if runner == nil {
		return errors.New("extraction runner not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	metrics.IncJobsReceived()
	ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	if err := runner.Run(ctx, extraction.JobFromMessage(msg)); err != nil {
		return ErrProcess{DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// NewAsynqMux routes extraction tasks to runner. Malformed payloads are not
// retried.
func NewAsynqMux(runner extraction.JobRunner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskExtractDocument, func(ctx context.Context, task *asynq.Task) error {
		err := HandleMessage(ctx, runner, string(task.Payload()))
		if err == nil {
			return nil
		}
		meta := ComputeMeta(string(task.Payload()))
		telemetry.Error("worker.extraction.failed", map[string]any{
			"task_type":   task.Type(),
			"body_len":    meta.BodyLen,
			"body_sha256": meta.BodySHA,
			"error":       err,
		})
		if Unrecoverable(err) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	})
	return mux
}
