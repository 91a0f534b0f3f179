package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"greenquote/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueuePublisher writes QuoteMessages to one forwarding queue. The API uses
// Send for the first dispatch; workers use Requeue to retry.
type QueuePublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewQueuePublisher creates a QueuePublisher targeting queueURL.
func NewQueuePublisher(client SQSSender, queueURL string, logger types.Logger) *QueuePublisher {
	return &QueuePublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Send enqueues msg unchanged and without delay.
func (p *QueuePublisher) Send(ctx context.Context, msg types.QuoteMessage) error {
	return p.publish(ctx, msg, 0)
}

// Requeue increments the message's RetryCount, serializes it, and sends it
// back to the queue after delay. The delay is clamped to [0, 900s].
//
// The increment happens before serialization so the next consumer sees the
// attempt number it is about to make.
func (p *QueuePublisher) Requeue(ctx context.Context, msg types.QuoteMessage, delay time.Duration) error {
	msg.RetryCount++
	return p.publish(ctx, msg, delay)
}

func (p *QueuePublisher) publish(ctx context.Context, msg types.QuoteMessage, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue publisher: failed to marshal message: %w", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > int32(SQSMaxDelay.Seconds()) {
		delaySec = int32(SQSMaxDelay.Seconds())
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.Info("quote message published",
		"message_id", msg.MessageID,
		"quote_id", msg.Quote.ID,
		"channel", string(msg.Channel),
		"retry_count", msg.RetryCount,
		"delay_seconds", delaySec,
		"trace_id", msg.TraceID,
	)

	return nil
}
