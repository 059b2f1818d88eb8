package workerproc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"docchat-backend/internal/extraction"
	"docchat-backend/internal/shared/telemetry"
)

const (
	defaultVisibilitySeconds = 300
	defaultWaitSeconds       = 20
	maxBatch                 = 10
	receiveErrorPause        = time.Second

	receiveCountAttr = sqstypes.QueueAttributeName("ApproximateReceiveCount")
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a queue and runs one extraction per message.
// Messages are deleted after success or when the payload can never succeed;
// failed jobs stay on the queue and reappear after the visibility timeout.
type SQSConsumer struct {
	Client            SQSAPI
	QueueURL          string
	Runner            extraction.JobRunner
	Concurrency       int
	VisibilitySeconds int32
	WaitSeconds       int32
}

// Run polls until ctx is cancelled and then waits for in-flight messages.
func (c *SQSConsumer) Run(ctx context.Context) error {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	visibility := c.VisibilitySeconds
	if visibility <= 0 {
		visibility = defaultVisibilitySeconds
	}
	wait := c.WaitSeconds
	if wait <= 0 {
		wait = defaultWaitSeconds
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	defer func() { _ = g.Wait() }()

	for ctx.Err() == nil {
		resp, err := c.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.QueueURL),
			MaxNumberOfMessages: maxBatch,
			WaitTimeSeconds:     wait,
			VisibilityTimeout:   visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{receiveCountAttr},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Error("worker.sqs.receive_failed", map[string]any{"error": err})
			select {
			case <-ctx.Done():
			case <-time.After(receiveErrorPause):
			}
			continue
		}
		for _, msg := range resp.Messages {
			msg := msg
			g.Go(func() error {
				c.Handle(ctx, msg)
				return nil
			})
		}
	}
	return nil
}

// Handle processes one delivery and reports whether it was deleted.
func (c *SQSConsumer) Handle(ctx context.Context, msg sqstypes.Message) bool {
	body := aws.ToString(msg.Body)
	err := HandleMessage(ctx, c.Runner, body)
	if err == nil {
		fields := c.fields(msg, body)
		if c.delete(ctx, msg, fields) {
			telemetry.Info("worker.extraction.completed", fields)
			return true
		}
		return false
	}

	fields := c.fields(msg, body)
	fields["error"] = err
	if Unrecoverable(err) {
		meta := ComputeMeta(body)
		fields["body_len"] = meta.BodyLen
		fields["body_sha256"] = meta.BodySHA
		telemetry.Error("worker.extraction.unrecoverable", fields)
		return c.delete(ctx, msg, fields)
	}
	telemetry.Error("worker.extraction.failed", fields)
	return false
}

func (c *SQSConsumer) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields["delete_error"] = "missing receipt handle"
		telemetry.Error("worker.sqs.delete_failed", fields)
		return false
	}
	if _, err := c.Client.DeleteMessage(telemetry.Detach(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.QueueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields["delete_error"] = err.Error()
		telemetry.Error("worker.sqs.delete_failed", fields)
		return false
	}
	return true
}

func (c *SQSConsumer) fields(msg sqstypes.Message, body string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if parsed, _, err := ParseMessage(body); err == nil {
		fields["document_id"] = parsed.DocumentID
		if strings.TrimSpace(parsed.RequestID) != "" {
			fields["request_id"] = parsed.RequestID
		}
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(receiveCountAttr)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
