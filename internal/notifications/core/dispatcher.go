package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"greenquote/internal/types"
)

// MessageSender enqueues a message for first delivery.
type MessageSender interface {
	Send(ctx context.Context, msg types.QuoteMessage) error
}

// Dispatcher hands freshly created quotes to the forwarding queues.
type Dispatcher struct {
	webhook MessageSender
	email   MessageSender
	metrics ForwardingMetrics
	logger  types.Logger
}

// NewDispatcher wires the two forwarding queues. A nil sender disables that
// channel.
func NewDispatcher(webhook, email MessageSender, metrics ForwardingMetrics, logger types.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Dispatcher{
		webhook: webhook,
		email:   email,
		metrics: metrics,
		logger:  logger,
	}
}

// Forward publishes quote to every channel the account and quote ask for.
// The webhook queue is used when the account has a webhook URL. The email
// queue is used when the account forwards to its notification address, or
// when the quote asks for a customer copy and has a customer email.
//
// Publishing failures never fail the caller; they are logged and reported in
// the result.
func (d *Dispatcher) Forward(ctx context.Context, account *types.Account, quote *types.Quote) types.ForwardResult {
	var (
		result types.ForwardResult
		mu     sync.Mutex
	)

	base := types.QuoteMessage{
		AccountID:   account.ID,
		AccountName: account.Name,
		Quote:       *quote,
		TraceID:     types.GetRequestID(ctx),
	}
	logger := d.logger.With("quote_id", quote.ID, "account_id", account.ID, "trace_id", base.TraceID)

	fail := func(channel types.ChannelType, err error) {
		logger.Error("failed to queue quote for forwarding", "channel", string(channel), "error", err.Error())
		mu.Lock()
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", channel, err))
		mu.Unlock()
	}

	// Each publish reports its own failure; neither cancels the other.
	var g errgroup.Group

	if d.webhook != nil && account.WebhookURL != "" {
		msg := base
		msg.MessageID = newMessageID()
		msg.Channel = types.ChannelWebhook
		msg.Destination = account.WebhookURL
		msg.SigningSecret = account.WebhookSecret.Unmask()
		g.Go(func() error {
			if err := d.webhook.Send(ctx, msg); err != nil {
				fail(types.ChannelWebhook, err)
				return nil
			}
			mu.Lock()
			result.WebhookQueued = true
			mu.Unlock()
			return nil
		})
	}

	toAccount := account.EmailForwardingEnabled && account.NotificationEmail != ""
	toCustomer := quote.SendToCustomer && quote.Email != ""
	if d.email != nil && (toAccount || toCustomer) {
		msg := base
		msg.MessageID = newMessageID()
		msg.Channel = types.ChannelEmail
		if toAccount {
			msg.Destination = account.NotificationEmail
		}
		msg.CustomerCopy = toCustomer
		g.Go(func() error {
			if err := d.email.Send(ctx, msg); err != nil {
				fail(types.ChannelEmail, err)
				return nil
			}
			mu.Lock()
			result.EmailQueued = true
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	d.metrics.RecordCount(ctx, types.MetricQuotesCreated, 1)
	logger.Info("quote forwarding queued",
		"webhook_queued", result.WebhookQueued,
		"email_queued", result.EmailQueued,
		"errors", len(result.Errors),
	)
	return result
}

func newMessageID() string {
	return "msg_" + uuid.NewString()
}
