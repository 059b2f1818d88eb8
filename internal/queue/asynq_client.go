package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

const asynqMaxRetry = 5

// AsynqClient enqueues extraction tasks on Redis through asynq.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient connects to Redis at addr.
func NewAsynqClient(addr, password string, db int) *AsynqClient {
	return &AsynqClient{client: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewTask wraps msg as an asynq task.
func NewTask(msg Message) (*asynq.Task, error) {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	return asynq.NewTask(TaskExtractDocument, payload), nil
}

// Send enqueues msg with bounded retries.
func (c *AsynqClient) Send(ctx context.Context, msg Message) error {
	task, err := NewTask(msg)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(asynqMaxRetry)); err != nil {
		return fmt.Errorf("enqueue extract task: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *AsynqClient) Close() error {
	return c.client.Close()
}

var _ Client = (*AsynqClient)(nil)
