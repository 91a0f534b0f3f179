package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"greenquote/internal/types"
)

// Requeuer publishes a retry of msg after delay.
type Requeuer interface {
	Requeue(ctx context.Context, msg types.QuoteMessage, delay time.Duration) error
}

// DeliveredFunc runs after a successful delivery. Its error is logged; the
// message is still acknowledged.
type DeliveredFunc func(ctx context.Context, msg *types.QuoteMessage, result *types.DeliveryResult) error

// Worker consumes one forwarding queue and drives a ForwardingChannel.
//
// Retries follow a publish-and-ack pattern: a retryable failure publishes a
// new, delayed copy of the message with RetryCount incremented and
// acknowledges the original. Only a failed re-publish is reported back to
// SQS as a batch item failure.
type Worker struct {
	channel     types.ForwardingChannel
	requeuer    Requeuer
	policy      RetryPolicy
	metrics     ForwardingMetrics
	logger      types.Logger
	clock       types.Clock
	onDelivered DeliveredFunc
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithOnDelivered registers a hook that runs after each successful delivery.
func WithOnDelivered(fn DeliveredFunc) WorkerOption {
	return func(w *Worker) { w.onDelivered = fn }
}

// WithClock overrides the clock for testing.
func WithClock(c types.Clock) WorkerOption {
	return func(w *Worker) { w.clock = c }
}

// WithRetryPolicy overrides the channel's default retry policy.
func WithRetryPolicy(p RetryPolicy) WorkerOption {
	return func(w *Worker) { w.policy = p }
}

// NewWorker builds a Worker for channel.
func NewWorker(channel types.ForwardingChannel, requeuer Requeuer, metrics ForwardingMetrics, logger types.Logger, opts ...WorkerOption) *Worker {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	w := &Worker{
		channel:  channel,
		requeuer: requeuer,
		policy:   PolicyFor(channel.Type()),
		metrics:  metrics,
		logger:   logger.With("channel", string(channel.Type())),
		clock:    types.RealClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle processes an SQS batch. Messages are independent; those that must
// be redelivered by SQS are returned in BatchItemFailures.
func (w *Worker) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range event.Records {
		if err := w.processRecord(ctx, record); err != nil {
			w.logger.Error("failed to process SQS message",
				"sqs_message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (w *Worker) processRecord(ctx context.Context, record events.SQSMessage) error {
	start := w.clock.Now()

	var msg types.QuoteMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// A body that cannot be parsed never will be; ACK it.
		w.logger.Error("failed to unmarshal quote message",
			"sqs_message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := w.logger.With(
		"message_id", msg.MessageID,
		"quote_id", msg.Quote.ID,
		"account_id", msg.AccountID,
		"retry_count", msg.RetryCount,
		"trace_id", msg.TraceID,
	)

	if msg.Channel != w.channel.Type() {
		logger.Warn("dropping message for another channel", "message_channel", string(msg.Channel))
		return nil
	}

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sent); err == nil {
			w.metrics.RecordQueueLag(ctx, start.Sub(sentAt))
		}
	}

	defer func() {
		w.metrics.RecordLatency(ctx, w.channel.Type(), w.clock.Now().Sub(start))
	}()

	payload, err := w.channel.Format(ctx, &msg)
	if err != nil {
		w.permanentFailure(ctx, logger, fmt.Sprintf("format_error: %v", err))
		return nil
	}

	result, deliverErr := w.channel.Deliver(ctx, &msg, payload)
	return w.handleResult(ctx, &msg, result, deliverErr, logger)
}

func (w *Worker) handleResult(
	ctx context.Context,
	msg *types.QuoteMessage,
	result *types.DeliveryResult,
	deliverErr error,
	logger types.Logger,
) error {
	if result == nil {
		reason := "nil_result_nil_error"
		if deliverErr != nil {
			reason = fmt.Sprintf("deliver_error: %v", deliverErr)
			if w.channel.ShouldRetry(deliverErr) {
				return w.retry(ctx, msg, reason, nil, logger)
			}
		}
		w.permanentFailure(ctx, logger, reason)
		return nil
	}

	switch result.Status {
	case types.DeliveryStatusSent:
		w.metrics.RecordDelivery(ctx, w.channel.Type(), MetricSuccess)
		logger.Info("quote delivered", "provider_message_id", result.ProviderMessageID)
		if w.onDelivered != nil {
			if err := w.onDelivered(ctx, msg, result); err != nil {
				logger.Error("post-delivery hook failed", "error", err.Error())
			}
		}
		return nil

	case types.DeliveryStatusRetrying:
		return w.retry(ctx, msg, result.FailureReason, result.RetryAfter, logger)

	case types.DeliveryStatusBounced:
		w.terminalFailure(ctx, logger, result.FailureReason)
		return nil

	default:
		if result.Terminal {
			w.terminalFailure(ctx, logger, result.FailureReason)
			return nil
		}
		if result.Retryable {
			return w.retry(ctx, msg, result.FailureReason, result.RetryAfter, logger)
		}
		w.permanentFailure(ctx, logger, result.FailureReason)
		return nil
	}
}

// retry re-publishes msg with backoff, or gives up once the policy's attempts
// are spent. A server-supplied Retry-After wins over the computed backoff.
func (w *Worker) retry(ctx context.Context, msg *types.QuoteMessage, reason string, retryAfter *time.Duration, logger types.Logger) error {
	if msg.RetryCount >= w.policy.MaxAttempts {
		w.permanentFailure(ctx, logger, "max_retries_exceeded: "+reason)
		return nil
	}

	delay := CalculateNextRetry(w.policy, msg.RetryCount)
	if retryAfter != nil {
		delay = *retryAfter
	}
	if delay > SQSMaxDelay {
		delay = SQSMaxDelay
	}

	if err := w.requeuer.Requeue(ctx, *msg, delay); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	w.metrics.RecordDelivery(ctx, w.channel.Type(), MetricRetried)
	logger.Warn("quote delivery retry scheduled",
		"reason", reason,
		"next_retry_count", msg.RetryCount+1,
		"delay_seconds", int(delay.Seconds()),
	)
	return nil
}

func (w *Worker) permanentFailure(ctx context.Context, logger types.Logger, reason string) {
	w.metrics.RecordDelivery(ctx, w.channel.Type(), MetricFailed)
	logger.Error("quote delivery permanently failed", "reason", reason)
}

// terminalFailure covers destinations that are gone (HTTP 410, hard bounce).
// The account owner has to fix their settings; nothing is retried.
func (w *Worker) terminalFailure(ctx context.Context, logger types.Logger, reason string) {
	w.metrics.RecordDelivery(ctx, w.channel.Type(), MetricFailed)
	logger.Error("quote destination rejected delivery", "reason", reason, "terminal", true)
}

// parseMillisTimestamp parses the SQS SentTimestamp attribute.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}
