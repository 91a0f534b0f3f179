package webhook

import (
	"context"

	"greenquote/internal/types"
)

// Platform names the chat product behind a webhook URL. Anything that is not
// recognized receives the generic signed JSON body.
type Platform string

const (
	PlatformGeneric Platform = "generic"
	PlatformSlack   Platform = "slack"
	PlatformDiscord Platform = "discord"
	PlatformTeams   Platform = "teams"
)

// EventQuoteCreated is the only event GreenQuote forwards today.
const EventQuoteCreated = "quote.created"

// PlatformFormatter renders a quote for one platform and judges that
// platform's response.
type PlatformFormatter interface {
	Format(ctx context.Context, msg *types.QuoteMessage) ([]byte, error)
	Platform() Platform

	// ValidateResponse may reject a 2xx response whose body reports an
	// error, as Slack does.
	ValidateResponse(statusCode int, body []byte) error
}

const maxErrorBody = 200

// truncateBody shortens a response body for inclusion in an error.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
