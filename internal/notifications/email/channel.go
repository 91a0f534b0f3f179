package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greenquote/internal/external"
	"greenquote/internal/types"
)

// Channel implements types.ForwardingChannel for email. One message yields
// up to two emails: the lead notification to the account and, when asked
// for, an estimate to the customer.
type Channel struct {
	provider external.EmailProvider
	renderer *Renderer
	from     types.SenderIdentity
	logger   types.Logger
}

// ChannelConfig holds the dependencies needed to create a Channel.
type ChannelConfig struct {
	Provider external.EmailProvider
	Renderer *Renderer
	From     types.SenderIdentity
	Logger   types.Logger
}

// NewChannel creates a Channel with the given dependencies.
func NewChannel(cfg ChannelConfig) (*Channel, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("email channel: provider is nil")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("email channel: renderer is nil")
	}
	if cfg.From.Address == "" {
		return nil, fmt.Errorf("email channel: sender address is empty")
	}
	return &Channel{
		provider: cfg.Provider,
		renderer: cfg.Renderer,
		from:     cfg.From,
		logger:   cfg.Logger,
	}, nil
}

// outgoing is one rendered email and its envelope.
type outgoing struct {
	To      string        `json:"to"`
	ReplyTo string        `json:"reply_to,omitempty"`
	Email   RenderedEmail `json:"email"`
}

// renderedQuote is the payload Format hands to Deliver.
type renderedQuote struct {
	Account  *outgoing `json:"account,omitempty"`
	Customer *outgoing `json:"customer,omitempty"`
}

// Type returns the channel type identifier for email.
func (c *Channel) Type() types.ChannelType {
	return types.ChannelEmail
}

// Format renders every copy that has not been sent yet. A message with no
// outstanding recipient is an error.
func (c *Channel) Format(ctx context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("email channel: message is nil")
	}

	var out renderedQuote
	if msg.Destination != "" && !msg.AccountNotified {
		rendered, err := c.renderer.Render(AudienceAccount, msg)
		if err != nil {
			return nil, err
		}
		out.Account = &outgoing{To: msg.Destination, ReplyTo: msg.Quote.Email, Email: *rendered}
	}
	if msg.CustomerCopy && msg.Quote.Email != "" && !msg.CustomerNotified {
		rendered, err := c.renderer.Render(AudienceCustomer, msg)
		if err != nil {
			return nil, err
		}
		out.Customer = &outgoing{To: msg.Quote.Email, ReplyTo: msg.Destination, Email: *rendered}
	}
	if out.Account == nil && out.Customer == nil {
		return nil, fmt.Errorf("email channel: message has no outstanding recipient")
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("email channel: failed to marshal payload: %w", err)
	}
	return payload, nil
}

// Deliver sends the account copy, then the customer copy. Each copy that
// succeeds is marked on msg, so a retry after a partial failure resends only
// the remainder. A blocked recipient is skipped; the message counts as
// bounced only if no copy went out.
func (c *Channel) Deliver(ctx context.Context, msg *types.QuoteMessage, payload []byte) (*types.DeliveryResult, error) {
	var in renderedQuote
	if err := json.Unmarshal(payload, &in); err != nil {
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: fmt.Sprintf("invalid_payload: %v", err),
		}, nil
	}

	var sentIDs []string
	bounced := 0

	if in.Account != nil {
		id, err := c.send(ctx, msg, in.Account, c.from)
		switch {
		case err == nil:
			msg.AccountNotified = true
			sentIDs = append(sentIDs, id)
		case IsBlocklistError(err):
			msg.AccountNotified = true
			bounced++
		default:
			return nil, err
		}
	}

	if in.Customer != nil {
		from := c.from
		if msg.AccountName != "" {
			from.Name = msg.AccountName
		}
		id, err := c.send(ctx, msg, in.Customer, from)
		switch {
		case err == nil:
			msg.CustomerNotified = true
			sentIDs = append(sentIDs, id)
		case IsBlocklistError(err):
			msg.CustomerNotified = true
			bounced++
		default:
			return nil, err
		}
	}

	if len(sentIDs) == 0 {
		if bounced > 0 {
			return &types.DeliveryResult{
				Status:        types.DeliveryStatusBounced,
				FailureReason: "address_blocked",
			}, nil
		}
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: "no_recipients",
		}, nil
	}

	return &types.DeliveryResult{
		ProviderMessageID: strings.Join(sentIDs, ","),
		Status:            types.DeliveryStatusSent,
	}, nil
}

func (c *Channel) send(ctx context.Context, msg *types.QuoteMessage, out *outgoing, from types.SenderIdentity) (string, error) {
	c.logger.Info("attempting email delivery", "dest", RedactEmail(out.To))

	id, err := c.provider.Send(ctx, types.SendInput{
		To:          out.To,
		From:        from,
		ReplyTo:     out.ReplyTo,
		Subject:     out.Email.Subject,
		BodyHTML:    out.Email.BodyHTML,
		BodyText:    out.Email.BodyText,
		ReferenceID: msg.MessageID,
	})
	if err != nil {
		if IsBlocklistError(err) {
			c.logger.Warn("recipient blocked by provider",
				"dest", RedactEmail(out.To),
				"message_id", msg.MessageID,
			)
		}
		return "", err
	}
	return id, nil
}

// ShouldRetry reports whether a provider error is transient. Blocked
// recipients are not; anything unrecognized is assumed to be.
func (c *Channel) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsBlocklistError(err) || errors.Is(err, context.Canceled) {
		return false
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeInternalUnexpected {
		return false
	}
	return true
}

var _ types.ForwardingChannel = (*Channel)(nil)
