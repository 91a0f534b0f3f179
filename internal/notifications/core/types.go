// Package core provides the forwarding plumbing shared by the webhook and
// email workers: queue publishing, retry policy, delivery metrics, the
// dispatcher the API hands new quotes to, and the SQS batch worker.
package core

import (
	"context"
	"time"

	"greenquote/internal/types"
)

// SQSMaxDelay is the longest DelaySeconds SQS accepts.
const SQSMaxDelay = 900 * time.Second

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricRetried MetricResult = "retried"
	MetricFailed  MetricResult = "failed"
)

// ForwardingMetrics abstracts CloudWatch for the forwarding pipeline.
type ForwardingMetrics interface {
	RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult)
	RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	// RecordCount emits an undimensioned counter such as QuotesCreated.
	RecordCount(ctx context.Context, metric string, value float64)
}

// RetryPolicy defines the exponential backoff parameters for delivery retries.
// MaxAttempts counts re-queues, not the first attempt.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Standard retry policies for each channel type. Delays stay within what SQS
// can hold so a retry never needs to be parked elsewhere.
var (
	WebhookRetryPolicy = RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     30 * time.Second,
		MaxDelay:      SQSMaxDelay,
		BackoffFactor: 4.0,
	}
	EmailRetryPolicy = RetryPolicy{
		MaxAttempts:   4,
		BaseDelay:     60 * time.Second,
		MaxDelay:      SQSMaxDelay,
		BackoffFactor: 2.0,
	}
)

// PolicyFor returns the retry policy of a channel type.
func PolicyFor(channel types.ChannelType) RetryPolicy {
	if channel == types.ChannelEmail {
		return EmailRetryPolicy
	}
	return WebhookRetryPolicy
}

// CalculateNextRetry computes the delay before the next retry attempt using
// exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}
