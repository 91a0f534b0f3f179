// Package webhook delivers quotes to account-configured webhook endpoints.
//
// Chat platforms (Slack, Teams, Discord) are detected by URL and get a
// message formatted for them; every other endpoint receives the generic
// quote.created envelope. Payloads are signed with HMAC-SHA256 and sent
// through an SSRF-guarded HTTP client.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"greenquote/internal/config"
	"greenquote/internal/security"
	"greenquote/internal/types"
)

// maxResponseBodyRead caps how much of a response is read.
const maxResponseBodyRead = 4 << 10

var _ types.ForwardingChannel = (*Channel)(nil)

type Channel struct {
	registry   *PlatformRegistry
	httpClient *http.Client
	userAgent  string
	logger     types.Logger
	clock      types.Clock
}

// NewChannel creates a Channel whose HTTP client dials only addresses the
// guard allows, including on every redirect hop.
func NewChannel(cfg config.WebhookConfig, guard *security.Guard, logger types.Logger) (*Channel, error) {
	if guard == nil {
		return nil, fmt.Errorf("webhook channel: guard is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("webhook channel: logger is nil")
	}
	return NewChannelWithClient(cfg, guard.NewHTTPClient(cfg), logger), nil
}

// NewChannelWithClient creates a Channel with a caller-supplied HTTP client.
func NewChannelWithClient(cfg config.WebhookConfig, httpClient *http.Client, logger types.Logger) *Channel {
	return &Channel{
		registry:   NewPlatformRegistry(),
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		logger:     logger,
		clock:      types.RealClock{},
	}
}

// SetClock replaces the clock used for signatures and Retry-After dates.
func (c *Channel) SetClock(clock types.Clock) { c.clock = clock }

func (c *Channel) Type() types.ChannelType { return types.ChannelWebhook }

// Format renders the quote for the platform behind msg.Destination.
func (c *Channel) Format(ctx context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("webhook channel: message is nil")
	}
	if msg.Destination == "" {
		return nil, fmt.Errorf("webhook channel: message has no destination")
	}

	f := c.registry.For(msg.Destination)
	c.logger.Info("formatting webhook payload", "message_id", msg.MessageID, "platform", string(f.Platform()))
	return f.Format(ctx, msg)
}

// Deliver POSTs the signed payload to msg.Destination. HTTP outcomes are
// reported in the DeliveryResult; the error return is reserved for failures
// before the request could be built.
func (c *Channel) Deliver(ctx context.Context, msg *types.QuoteMessage, payload []byte) (*types.DeliveryResult, error) {
	dest := msg.Destination
	log := c.logger.With("destination", dest, "message_id", msg.MessageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, bytes.NewReader(payload))
	if err != nil {
		return failed(fmt.Sprintf("invalid_destination: %v", err), false), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderEvent, EventQuoteCreated)
	req.Header.Set(HeaderDelivery, msg.MessageID)
	if msg.SigningSecret != "" {
		sig, err := Sign(payload, msg.SigningSecret, c.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("webhook deliver: %w", err)
		}
		req.Header.Set(HeaderSignature, sig)
	}

	log.Info("delivering webhook", "payload_size", len(payload))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if security.IsBlockedError(err) {
			log.Error("webhook destination blocked", "error", err)
			return failed(fmt.Sprintf("ssrf_blocked: %v", err), false), nil
		}
		log.Warn("webhook network error", "error", err)
		return failed(fmt.Sprintf("network_error: %v", err), true), nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	result := c.classify(resp, body, dest)
	if result.Status == types.DeliveryStatusSent {
		log.Info("webhook delivered", "status", resp.StatusCode, "provider_message_id", result.ProviderMessageID)
	} else {
		log.Warn("webhook rejected", "status", resp.StatusCode, "reason", result.FailureReason, "retryable", result.Retryable)
	}
	return result, nil
}

// classify maps a response to a delivery outcome:
//
//	2xx      sent, unless the platform reports a soft failure (retryable)
//	408, 5xx retryable
//	429      retrying after Retry-After
//	410      terminal: the endpoint was removed
//	4xx      permanent
func (c *Channel) classify(resp *http.Response, body []byte, dest string) *types.DeliveryResult {
	status := resp.StatusCode
	switch {
	case status/100 == 2:
		platform := c.registry.Detect(dest)
		if err := c.registry.Get(platform).ValidateResponse(status, body); err != nil {
			return failed(fmt.Sprintf("soft_failure: %v", err), true)
		}
		return &types.DeliveryResult{
			ProviderMessageID: providerMessageID(resp, platform, c.clock),
			Status:            types.DeliveryStatusSent,
		}
	case status == http.StatusTooManyRequests:
		after := parseRetryAfter(resp.Header.Get("Retry-After"), c.clock)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusRetrying,
			FailureReason: fmt.Sprintf("rate_limited_429: retry after %s", after),
			Retryable:     true,
			RetryAfter:    &after,
		}
	case status == http.StatusGone:
		r := failed("endpoint_gone_410", false)
		r.Terminal = true
		return r
	case status == http.StatusRequestTimeout || status >= 500:
		return failed(fmt.Sprintf("server_error_%d: %s", status, truncateBody(body)), true)
	default:
		return failed(fmt.Sprintf("client_error_%d: %s", status, truncateBody(body)), false)
	}
}

func failed(reason string, retryable bool) *types.DeliveryResult {
	return &types.DeliveryResult{
		Status:        types.DeliveryStatusFailed,
		FailureReason: reason,
		Retryable:     retryable,
	}
}

// ShouldRetry reports whether a bare Deliver error is transient. Guard
// rejections are not.
func (c *Channel) ShouldRetry(err error) bool {
	return err != nil && !security.IsBlockedError(err) && !errors.Is(err, context.Canceled)
}

const defaultRetryAfter = time.Minute

// parseRetryAfter reads delta-seconds or an HTTP date. Missing or garbled
// values give a minute; past or zero values give one second.
func parseRetryAfter(header string, clock types.Clock) time.Duration {
	var d time.Duration
	if secs, err := strconv.ParseInt(header, 10, 64); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		d = at.Sub(clock.Now())
	} else {
		return defaultRetryAfter
	}
	return max(d, time.Second)
}

// providerMessageID prefers the receiver's request ID header and otherwise
// mints generic-<status>-<unix>-<short uuid>.
func providerMessageID(resp *http.Response, platform Platform, clock types.Clock) string {
	headers := []string{"X-Request-Id"}
	if platform == PlatformSlack {
		headers = []string{"X-Slack-Req-Id", "X-Request-Id"}
	}
	for _, h := range headers {
		if id := resp.Header.Get(h); id != "" {
			return id
		}
	}
	return fmt.Sprintf("generic-%d-%d-%s", resp.StatusCode, clock.Now().Unix(), uuid.NewString()[:8])
}
