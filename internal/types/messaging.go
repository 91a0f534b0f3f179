package types

// QuoteMessage is the SQS envelope that carries a priced quote to a
// forwarding worker. Everything the worker needs travels with the message so
// delivery never depends on live account state.
type QuoteMessage struct {
	MessageID string      `json:"message_id"`
	AccountID string      `json:"account_id"`
	Channel   ChannelType `json:"channel"`

	// Destination is a webhook URL or an email address.
	Destination string `json:"destination"`
	// SigningSecret signs webhook payloads; empty for email.
	SigningSecret string `json:"signing_secret,omitempty"`
	// CustomerCopy asks the email worker to also mail the prospect.
	CustomerCopy bool `json:"customer_copy,omitempty"`
	// AccountNotified and CustomerNotified record copies already sent, so a
	// re-queued email message only retries what is still outstanding.
	AccountNotified  bool `json:"account_notified,omitempty"`
	CustomerNotified bool `json:"customer_notified,omitempty"`

	AccountName string `json:"account_name"`
	Quote       Quote  `json:"quote"`

	// RetryCount is incremented by the publisher on every re-queue.
	RetryCount int    `json:"retry_count"`
	TraceID    string `json:"trace_id"`
}

// ForwardResult reports which forwarding queues accepted a quote. Failures
// are informational; the quote is already persisted.
type ForwardResult struct {
	WebhookQueued bool     `json:"webhook_queued"`
	EmailQueued   bool     `json:"email_queued"`
	Errors        []string `json:"errors,omitempty"`
}
