// Package security keeps outbound webhook requests away from internal
// infrastructure. Every resolved address is checked against
// types.SSRFBlockedCIDRs at dial time, and again for each redirect hop.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"greenquote/internal/config"
	"greenquote/internal/types"
)

const dnsTimeout = 500 * time.Millisecond

var (
	ErrBlocked          = errors.New("ssrf: destination address is blocked")
	ErrDNSTimeout       = errors.New("ssrf: DNS resolution timeout")
	ErrDNSFailed        = errors.New("ssrf: DNS resolution failed")
	ErrTooManyRedirects = errors.New("ssrf: too many redirects")
)

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard decides whether a host may be contacted.
type Guard struct {
	blocked  []*net.IPNet
	resolver Resolver
}

// NewGuard parses the blocklist. A nil resolver uses net.DefaultResolver.
func NewGuard(resolver Resolver) (*Guard, error) {
	g := &Guard{resolver: resolver}
	if g.resolver == nil {
		g.resolver = net.DefaultResolver
	}
	for _, cidr := range types.SSRFBlockedCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("ssrf: parse CIDR %q: %w", cidr, err)
		}
		g.blocked = append(g.blocked, n)
	}
	return g, nil
}

// IsBlocked reports whether ip falls inside a blocked range.
func (g *Guard) IsBlocked(ip net.IP) bool {
	for _, n := range g.blocked {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// resolve returns the addresses for host after checking every one of them.
// Mixed answers are rejected outright so a rebinding record cannot slip a
// private address in next to a public one.
func (g *Guard) resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		if g.IsBlocked(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return []net.IPAddr{{IP: ip}}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q has no addresses", ErrDNSFailed, host)
	}
	for _, a := range addrs {
		if g.IsBlocked(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a.IP, host)
		}
	}
	return addrs, nil
}

// CheckHost resolves host and fails if any address is blocked.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	_, err := g.resolve(ctx, host)
	return err
}

// ValidateURL is a static pre-flight check used when a webhook URL is saved.
// It rejects IP literals in blocked ranges and localhost names without a DNS
// lookup; the dial-time check covers everything else.
func (g *Guard) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: URL has no host", ErrBlocked)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlocked, host)
	}
	if ip := net.ParseIP(host); ip != nil && g.IsBlocked(ip) {
		return fmt.Errorf("%w: %s", ErrBlocked, ip)
	}
	return nil
}

// Validator adapts ValidateURL to types.SSRFValidator.
func (g *Guard) Validator() types.SSRFValidator {
	return g.ValidateURL
}

// DialContext resolves and checks addr before dialing the first safe address.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}
	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(addrs[0].IP.String(), port))
}

// CheckRedirect limits redirects and applies the guard to every hop.
func (g *Guard) CheckRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect has no host", ErrBlocked)
		}
		return g.CheckHost(req.Context(), host)
	}
}

// NewHTTPClient builds the client the webhook worker delivers with.
func (g *Guard) NewHTTPClient(cfg config.WebhookConfig) *http.Client {
	transport := &http.Transport{
		DialContext:           g.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.DefaultTimeout,
		MaxIdleConns:          20,
		IdleConnTimeout:       60 * time.Second,
	}
	return &http.Client{
		Transport:     transport,
		Timeout:       cfg.DefaultTimeout,
		CheckRedirect: g.CheckRedirect(cfg.MaxRedirects),
	}
}

// IsBlockedError reports whether err came from the guard rather than the
// remote server. Such failures are permanent for the destination.
func IsBlockedError(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrTooManyRedirects)
}
