package workerproc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"docchat-backend/internal/documents"
	"docchat-backend/internal/queue"
)

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]sqstypes.Message
	deleted  []string
	received chan struct{}
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()
	if f.received != nil {
		select {
		case f.received <- struct{}{}:
		default:
		}
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestSQSDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	runner := &recordingRunner{}
	c := &SQSConsumer{Client: client, QueueURL: "queue", Runner: runner}

	msg := sqsMessage("m1", encoded(t, queue.Message{DocumentID: "doc-1", StorageKey: "1-a.pdf", RequestID: "req-1"}))
	if !c.Handle(context.Background(), msg) {
		t.Fatalf("expected delete")
	}
	if len(client.deleted) != 1 || client.deleted[0] != "r-m1" {
		t.Fatalf("unexpected deletes %v", client.deleted)
	}
	if len(runner.jobs) != 1 || runner.jobs[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected jobs %+v", runner.jobs)
	}
}

func TestSQSKeepsMessageOnFailure(t *testing.T) {
	client := &fakeSQS{}
	c := &SQSConsumer{Client: client, QueueURL: "queue", Runner: &recordingRunner{err: errors.New("status write failed")}}

	msg := sqsMessage("m2", encoded(t, queue.Message{DocumentID: "doc-2", StorageKey: "2-b.pdf"}))
	if c.Handle(context.Background(), msg) {
		t.Fatalf("expected message to stay on the queue")
	}
	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %v", client.deleted)
	}
}

func TestSQSDeletesUnrecoverablePayloads(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json": "{bad-json",
		"empty":        "",
		"missing id":   `{"storageKey":"k"}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeSQS{}
			runner := &recordingRunner{}
			c := &SQSConsumer{Client: client, QueueURL: "queue", Runner: runner}
			if !c.Handle(context.Background(), sqsMessage("m3", body)) {
				t.Fatalf("expected delete")
			}
			if len(runner.jobs) != 0 {
				t.Fatalf("runner must not see malformed payloads")
			}
		})
	}
}

func TestSQSRunDrainsBatchesUntilCancelled(t *testing.T) {
	client := &fakeSQS{
		batches: [][]sqstypes.Message{{
			sqsMessage("a", encoded(t, queue.Message{DocumentID: "doc-a", StorageKey: "1-a.pdf"})),
			sqsMessage("b", encoded(t, queue.Message{DocumentID: "doc-b", StorageKey: "1-b.pdf"})),
		}},
		received: make(chan struct{}, 1),
	}
	c := &SQSConsumer{Client: client, QueueURL: "queue", Runner: &lockedRunner{}, Concurrency: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-client.received:
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer did not poll again")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.deleted) != 2 {
		t.Fatalf("expected both messages deleted, got %v", client.deleted)
	}
}

type lockedRunner struct {
	mu   sync.Mutex
	jobs []documents.ExtractionJob
}

func (r *lockedRunner) Run(_ context.Context, job documents.ExtractionJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}
