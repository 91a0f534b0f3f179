package types

import (
	"fmt"
	"net/url"
)

// Size limits on stored documents and listings.
const (
	MaxTiers        = 20
	MaxAddOns       = 50
	MaxListPageSize = 100
)

// ValidateWebhookURL accepts absolute https URLs. Address checks happen at
// delivery time, when the host is resolved.
func ValidateWebhookURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("%s: invalid URL", ErrCodeValidationInvalidWebhook)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("%s: must use HTTPS", ErrCodeValidationInvalidWebhook)
	}
	return nil
}

// SSRFBlockedCIDRs are never dialed by the webhook client.
var SSRFBlockedCIDRs = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private Class A
	"172.16.0.0/12",  // Private Class B
	"192.168.0.0/16", // Private Class C
	"169.254.0.0/16", // Link-local, includes instance metadata
	"0.0.0.0/8",      // Current network
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
	"100.64.0.0/10",  // Shared Address Space (CGN)
	"198.18.0.0/15",  // Benchmark testing
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
	"::1/128",        // IPv6 localhost
}
