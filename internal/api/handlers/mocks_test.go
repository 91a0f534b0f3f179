package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"greenquote/internal/core"
	"greenquote/internal/types"
)

// =============================================================================
// Mocks
// =============================================================================

type mockAccountStore struct {
	getByIDFn               func(ctx context.Context, id string) (*types.Account, error)
	updateProfileFn         func(ctx context.Context, a *types.Account) error
	getByStripeCustomerIDFn func(ctx context.Context, customerID string) (*types.Account, error)
	setStripeCustomerIDFn   func(ctx context.Context, id, customerID string) error
	updateSubscriptionFn    func(ctx context.Context, id string, plan types.PlanTier, status types.SubscriptionStatus, eventAt time.Time) error
	updateStatusFn          func(ctx context.Context, id string, status types.SubscriptionStatus) error
}

func (m *mockAccountStore) GetByID(ctx context.Context, id string) (*types.Account, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return activeAccount(id), nil
}

func (m *mockAccountStore) UpdateProfile(ctx context.Context, a *types.Account) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, a)
	}
	return nil
}

func (m *mockAccountStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Account, error) {
	if m.getByStripeCustomerIDFn != nil {
		return m.getByStripeCustomerIDFn(ctx, customerID)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
}

func (m *mockAccountStore) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	if m.setStripeCustomerIDFn != nil {
		return m.setStripeCustomerIDFn(ctx, id, customerID)
	}
	return nil
}

func (m *mockAccountStore) UpdateSubscription(ctx context.Context, id string, plan types.PlanTier, status types.SubscriptionStatus, eventAt time.Time) error {
	if m.updateSubscriptionFn != nil {
		return m.updateSubscriptionFn(ctx, id, plan, status, eventAt)
	}
	return nil
}

func (m *mockAccountStore) UpdateSubscriptionStatus(ctx context.Context, id string, status types.SubscriptionStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

type mockProvisioner struct {
	provisionFn func(ctx context.Context, account *types.Account, cfg types.PricingConfiguration, key *types.APIKey) (*types.AccountSettings, error)
}

func (m *mockProvisioner) Provision(ctx context.Context, account *types.Account, cfg types.PricingConfiguration, key *types.APIKey) (*types.AccountSettings, error) {
	if m.provisionFn != nil {
		return m.provisionFn(ctx, account, cfg, key)
	}
	return &types.AccountSettings{AccountID: account.ID, Pricing: cfg, UpdatedAt: account.CreatedAt}, nil
}

type mockSettingsStore struct {
	getFn    func(ctx context.Context, accountID string) (*types.AccountSettings, error)
	putFn    func(ctx context.Context, accountID string, cfg types.PricingConfiguration) (*types.AccountSettings, error)
	updateFn func(ctx context.Context, accountID string, cfg types.PricingConfiguration, expected time.Time) (*types.AccountSettings, error)
}

func (m *mockSettingsStore) Get(ctx context.Context, accountID string) (*types.AccountSettings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, accountID)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSettings, "settings not found", nil)
}

func (m *mockSettingsStore) Put(ctx context.Context, accountID string, cfg types.PricingConfiguration) (*types.AccountSettings, error) {
	if m.putFn != nil {
		return m.putFn(ctx, accountID, cfg)
	}
	return &types.AccountSettings{AccountID: accountID, Pricing: cfg, UpdatedAt: testNow}, nil
}

func (m *mockSettingsStore) Update(ctx context.Context, accountID string, cfg types.PricingConfiguration, expected time.Time) (*types.AccountSettings, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, accountID, cfg, expected)
	}
	return &types.AccountSettings{AccountID: accountID, Pricing: cfg, UpdatedAt: testNow}, nil
}

type mockQuoteStore struct {
	createFn       func(ctx context.Context, q *types.Quote) error
	getByIDFn      func(ctx context.Context, accountID, id string) (*types.Quote, error)
	listFn         func(ctx context.Context, accountID string, f types.QuoteFilter) ([]*types.Quote, types.PageInfo, error)
	updateStatusFn func(ctx context.Context, accountID, id string, status types.QuoteStatus) (*types.Quote, error)
	created        []*types.Quote
}

func (m *mockQuoteStore) Create(ctx context.Context, q *types.Quote) error {
	m.created = append(m.created, q)
	if m.createFn != nil {
		return m.createFn(ctx, q)
	}
	return nil
}

func (m *mockQuoteStore) GetByID(ctx context.Context, accountID, id string) (*types.Quote, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, accountID, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundQuote, "quote not found", nil)
}

func (m *mockQuoteStore) List(ctx context.Context, accountID string, f types.QuoteFilter) ([]*types.Quote, types.PageInfo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, accountID, f)
	}
	return []*types.Quote{}, types.PageInfo{}, nil
}

func (m *mockQuoteStore) UpdateStatus(ctx context.Context, accountID, id string, status types.QuoteStatus) (*types.Quote, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, accountID, id, status)
	}
	return &types.Quote{ID: id, AccountID: accountID, Status: status}, nil
}

type mockUsageReporter struct {
	getCurrentUsageFn func(ctx context.Context, accountID string) (*types.UsageSnapshot, error)
}

func (m *mockUsageReporter) GetCurrentUsage(ctx context.Context, accountID string) (*types.UsageSnapshot, error) {
	if m.getCurrentUsageFn != nil {
		return m.getCurrentUsageFn(ctx, accountID)
	}
	return &types.UsageSnapshot{Plan: types.PlanStarter, QuotesThisMonth: 0, Limit: 25, Remaining: 25}, nil
}

type mockForwarder struct {
	forwardFn func(ctx context.Context, account *types.Account, quote *types.Quote) types.ForwardResult
	calls     int
}

func (m *mockForwarder) Forward(ctx context.Context, account *types.Account, quote *types.Quote) types.ForwardResult {
	m.calls++
	if m.forwardFn != nil {
		return m.forwardFn(ctx, account, quote)
	}
	return types.ForwardResult{WebhookQueued: account.WebhookURL != "", EmailQueued: account.EmailForwardingEnabled}
}

type mockAPIKeyStore struct {
	createFn func(ctx context.Context, key *types.APIKey) error
	revokeFn func(ctx context.Context, id, accountID string) error
}

func (m *mockAPIKeyStore) Create(ctx context.Context, key *types.APIKey) error {
	if m.createFn != nil {
		return m.createFn(ctx, key)
	}
	return nil
}

func (m *mockAPIKeyStore) Revoke(ctx context.Context, id, accountID string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id, accountID)
	}
	return nil
}

type mockBillingService struct {
	checkoutFn func(ctx context.Context, account *types.Account, plan types.PlanTier, urls types.RedirectURLs) (string, string, error)
	portalFn   func(ctx context.Context, account *types.Account, returnURL string) (string, error)
}

func (m *mockBillingService) EnsureCustomer(ctx context.Context, account *types.Account) (string, error) {
	return "cus_test", nil
}

func (m *mockBillingService) CreateCheckoutSession(ctx context.Context, account *types.Account, plan types.PlanTier, urls types.RedirectURLs) (string, string, error) {
	if m.checkoutFn != nil {
		return m.checkoutFn(ctx, account, plan, urls)
	}
	return "https://checkout.stripe.test/cs_1", "cs_1", nil
}

func (m *mockBillingService) CreatePortalSession(ctx context.Context, account *types.Account, returnURL string) (string, error) {
	if m.portalFn != nil {
		return m.portalFn(ctx, account, returnURL)
	}
	return "https://billing.stripe.test/p_1", nil
}

func (m *mockBillingService) PlanForPrice(priceID string) (types.PlanTier, bool) {
	switch priceID {
	case "price_starter":
		return types.PlanStarter, true
	case "price_pro":
		return types.PlanProfessional, true
	}
	return "", false
}

type mockVerifier struct {
	err error
}

func (m *mockVerifier) Verify(payload []byte, header, secret string) error {
	return m.err
}

// plainHasher stores secrets as-is so tests avoid bcrypt's cost.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "plain:" + secret, nil }
func (plainHasher) Compare(hash, secret string) error  { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// =============================================================================
// Helpers
// =============================================================================

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger(), nil)
}

func activeAccount(id string) *types.Account {
	return &types.Account{
		ID:                     id,
		Name:                   "Green Acres Lawn",
		NotificationEmail:      "owner@greenacres.test",
		EmailForwardingEnabled: true,
		Plan:                   types.PlanStarter,
		SubscriptionStatus:     types.SubStatusActive,
		CreatedAt:              testNow.Add(-30 * 24 * time.Hour),
	}
}

// withActor authenticates r as an API key of accountID.
func withActor(r *http.Request, accountID string) *http.Request {
	actor := types.Actor{
		ID:        "key_test",
		Type:      types.ActorTypeAPIKey,
		AccountID: accountID,
		Operator:  "Sam",
		Source:    "api_key",
	}
	return r.WithContext(types.WithActor(r.Context(), actor))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// serve routes req through a chi router so URL params resolve.
func serve(register func(chi.Router), req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Meta  *types.ResponseMeta `json:"meta"`
	Error *core.ErrorDetail   `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) *types.ResponseMeta {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env.Meta
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}
