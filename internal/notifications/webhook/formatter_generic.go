package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"greenquote/internal/types"
)

// GenericFormatter emits the stable GreenQuote event envelope. It is the
// default for webhook URLs that match no known platform.
type GenericFormatter struct{}

// Platform returns the platform identifier.
func (f *GenericFormatter) Platform() Platform {
	return PlatformGeneric
}

// GenericPayload is the webhook contract for custom integrations (CRMs,
// Zapier, in-house endpoints). Attempt starts at 1.
type GenericPayload struct {
	Event       string      `json:"event"`
	DeliveryID  string      `json:"delivery_id"`
	Attempt     int         `json:"attempt"`
	AccountID   string      `json:"account_id"`
	AccountName string      `json:"account_name"`
	Quote       types.Quote `json:"quote"`
}

// Format transforms a QuoteMessage into the generic envelope.
func (f *GenericFormatter) Format(_ context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("generic formatter: message is nil")
	}

	payload := GenericPayload{
		Event:       EventQuoteCreated,
		DeliveryID:  msg.MessageID,
		Attempt:     msg.RetryCount + 1,
		AccountID:   msg.AccountID,
		AccountName: msg.AccountName,
		Quote:       msg.Quote,
	}

	return json.Marshal(payload)
}

// ValidateResponse for generic webhooks simply checks the HTTP status code.
func (f *GenericFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("generic webhook: unexpected status %d: %s", statusCode, truncateBody(body))
}
