package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"greenquote/internal/types"
)

const stripeAPIBase = "https://api.stripe.com"

// CustomerLinker persists the Stripe customer chosen for an account.
type CustomerLinker interface {
	SetStripeCustomerID(ctx context.Context, accountID, customerID string) error
}

// StripeClientConfig configures StripeClient. PriceIDs maps each purchasable
// plan to its Stripe Price.
type StripeClientConfig struct {
	SecretKey string
	PriceIDs  map[types.PlanTier]string
	BaseURL   string
	Logger    *slog.Logger
}

// StripeClient calls the Stripe REST API through BaseClient with form-encoded
// requests pinned to the stripe-go API version.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	prices    map[types.PlanTier]string
	plans     map[string]types.PlanTier
	linker    CustomerLinker
	logger    *slog.Logger
}

func NewStripeClient(base *BaseClient, linker CustomerLinker, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prices := make(map[types.PlanTier]string, len(cfg.PriceIDs))
	plans := make(map[string]types.PlanTier, len(cfg.PriceIDs))
	for plan, id := range cfg.PriceIDs {
		if id == "" {
			continue
		}
		prices[plan] = id
		plans[id] = plan
	}
	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		prices:    prices,
		plans:     plans,
		linker:    linker,
		logger:    logger,
	}
}

// PlanForPrice maps a Stripe Price ID back to a plan.
func (s *StripeClient) PlanForPrice(priceID string) (types.PlanTier, bool) {
	plan, ok := s.plans[priceID]
	return plan, ok
}

// EnsureCustomer returns the account's Stripe customer, searching by
// metadata before creating one so retries never produce duplicates.
func (s *StripeClient) EnsureCustomer(ctx context.Context, account *types.Account) (string, error) {
	if account.StripeCustomerID != "" {
		return account.StripeCustomerID, nil
	}

	q := url.Values{}
	q.Set("query", fmt.Sprintf("metadata['account_id']:'%s'", account.ID))
	var found struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := s.call(ctx, http.MethodGet, "/v1/customers/search", q, &found); err != nil {
		return "", err
	}

	var customerID string
	if len(found.Data) > 0 {
		customerID = found.Data[0].ID
	} else {
		form := url.Values{}
		form.Set("name", account.Name)
		if account.NotificationEmail != "" {
			form.Set("email", account.NotificationEmail)
		}
		form.Set("metadata[account_id]", account.ID)
		var created struct {
			ID string `json:"id"`
		}
		if err := s.call(ctx, http.MethodPost, "/v1/customers", form, &created); err != nil {
			return "", err
		}
		customerID = created.ID
	}

	if err := s.linker.SetStripeCustomerID(ctx, account.ID, customerID); err != nil {
		s.logger.WarnContext(ctx, "failed to store stripe customer id",
			slog.String("account_id", account.ID),
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
	}
	account.StripeCustomerID = customerID
	return customerID, nil
}

// CreateCheckoutSession starts a subscription checkout. The account ID rides
// along as client_reference_id so the completion webhook can find it.
func (s *StripeClient) CreateCheckoutSession(
	ctx context.Context,
	account *types.Account,
	plan types.PlanTier,
	urls types.RedirectURLs,
) (string, string, error) {
	priceID, ok := s.prices[plan]
	if !ok {
		return "", "", types.NewAppError(types.ErrCodeValidationInvalidPlan,
			fmt.Sprintf("plan %q is not available for purchase", plan), nil)
	}
	customerID, err := s.EnsureCustomer(ctx, account)
	if err != nil {
		return "", "", err
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer", customerID)
	form.Set("client_reference_id", account.ID)
	form.Set("success_url", urls.SuccessURL)
	form.Set("cancel_url", urls.CancelURL)
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[account_id]", account.ID)
	form.Set("metadata[plan]", string(plan))
	form.Set("subscription_data[metadata][account_id]", account.ID)

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.call(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return "", "", err
	}
	return session.URL, session.ID, nil
}

// CreatePortalSession opens the self-serve billing portal.
func (s *StripeClient) CreatePortalSession(ctx context.Context, account *types.Account, returnURL string) (string, error) {
	customerID, err := s.EnsureCustomer(ctx, account)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var session struct {
		URL string `json:"url"`
	}
	if err := s.call(ctx, http.MethodPost, "/v1/billing_portal/sessions", form, &session); err != nil {
		return "", err
	}
	return session.URL, nil
}

// call performs one Stripe request and decodes a 200 body into out.
func (s *StripeClient) call(ctx context.Context, method, path string, params url.Values, out any) error {
	target := s.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build stripe request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stripeError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode stripe response", err)
	}
	return nil
}

func stripeError(path string, resp *http.Response) error {
	var payload struct {
		Error struct {
			Code        string `json:"code"`
			DeclineCode string `json:"decline_code"`
			Message     string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)
	e := payload.Error

	if e.Code == "card_declined" || e.DeclineCode != "" {
		return types.NewAppErrorWithDetails(types.ErrCodePaymentDeclined,
			"payment declined: "+e.Message, nil,
			map[string]any{"decline_code": e.DeclineCode})
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("stripe %s returned %d: %s", path, resp.StatusCode, e.Message), nil,
		map[string]any{"stripe_code": e.Code})
}

// StripeVerifier checks webhook signatures with stripe-go.
type StripeVerifier struct{}

func (StripeVerifier) Verify(payload []byte, header, secret string) error {
	return webhook.ValidatePayload(payload, header, secret)
}

var (
	_ BillingService  = (*StripeClient)(nil)
	_ WebhookVerifier = StripeVerifier{}
)
