package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"greenquote/internal/billing"
	"greenquote/internal/core"
	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

const defaultQuotePageSize = 20

// QuoteStore persists quotes.
type QuoteStore interface {
	Create(ctx context.Context, q *types.Quote) error
	GetByID(ctx context.Context, accountID, id string) (*types.Quote, error)
	List(ctx context.Context, accountID string, f types.QuoteFilter) ([]*types.Quote, types.PageInfo, error)
	UpdateStatus(ctx context.Context, accountID, id string, status types.QuoteStatus) (*types.Quote, error)
}

// SettingsReader loads an account's pricing configuration.
type SettingsReader interface {
	Get(ctx context.Context, accountID string) (*types.AccountSettings, error)
}

// QuoteForwarder hands a stored quote to the delivery channels. It never
// fails the request; problems are reported in the result.
type QuoteForwarder interface {
	Forward(ctx context.Context, account *types.Account, quote *types.Quote) types.ForwardResult
}

// PricingRequest is what a quote is priced from.
type PricingRequest struct {
	Area       decimal.Decimal  `json:"area"`
	AreaSource types.AreaSource `json:"area_source" validate:"omitempty,area_source"`
	Service    string           `json:"service" validate:"max=100"`
	AddOns     []string         `json:"add_ons" validate:"max=50,dive,max=100"`
	Frequency  types.Frequency  `json:"frequency" validate:"required,frequency"`
}

func (p PricingRequest) input() pricing.QuoteInput {
	source := p.AreaSource
	if source == "" {
		source = types.AreaSourceMeasured
	}
	return pricing.QuoteInput{
		Area:       p.Area,
		AreaSource: source,
		Service:    p.Service,
		AddOnIDs:   p.AddOns,
		Frequency:  p.Frequency,
	}
}

// CreateQuoteRequest is the body of POST /v1/quotes and of the public form.
type CreateQuoteRequest struct {
	PricingRequest
	CustomerName    string             `json:"customer_name" validate:"required,max=200"`
	Email           string             `json:"email" validate:"omitempty,email"`
	Phone           string             `json:"phone" validate:"max=50"`
	PropertyAddress string             `json:"property_address" validate:"max=500"`
	PropertyType    types.PropertyType `json:"property_type" validate:"omitempty,property_type"`
	Notes           string             `json:"notes" validate:"max=2000"`
	SendToCustomer  bool               `json:"send_to_customer"`
}

// UpdateQuoteStatusRequest is the body of PATCH /v1/quotes/{quoteID}/status.
type UpdateQuoteStatusRequest struct {
	Status types.QuoteStatus `json:"status" validate:"required,quote_status"`
}

// PreviewResponse is a priced quote that was not stored. Comparison is set
// when the caller asked for ?compare=true.
type PreviewResponse struct {
	Quote      pricing.QuoteResult `json:"quote"`
	Comparison *pricing.Comparison `json:"comparison,omitempty"`
}

// QuoteResponse is the result of creating a quote.
type QuoteResponse struct {
	Quote         *types.Quote         `json:"quote"`
	IgnoredAddOns []string             `json:"ignored_add_ons,omitempty"`
	UsageWarning  string               `json:"usage_warning,omitempty"`
	Forwarding    *types.ForwardResult `json:"forwarding,omitempty"`
}

// QuoteHandler prices, stores, and lists quotes.
type QuoteHandler struct {
	quotes    QuoteStore
	settings  SettingsReader
	accounts  AccountReader
	usage     UsageReporter
	forwarder QuoteForwarder
	clock     types.Clock
	validator *core.Validator
	logger    *slog.Logger
}

func NewQuoteHandler(
	quotes QuoteStore,
	settings SettingsReader,
	accounts AccountReader,
	usage UsageReporter,
	forwarder QuoteForwarder,
	clock types.Clock,
	v *core.Validator,
	l *slog.Logger,
) *QuoteHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &QuoteHandler{
		quotes:    quotes,
		settings:  settings,
		accounts:  accounts,
		usage:     usage,
		forwarder: forwarder,
		clock:     clock,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the authenticated quote routes.
func (h *QuoteHandler) RegisterRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/preview", h.Preview)
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{quoteID}", h.Get)
		r.Patch("/{quoteID}/status", h.UpdateStatus)
	})
}

// RegisterPublicRoutes mounts the unauthenticated lead form.
func (h *QuoteHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/public/accounts/{accountID}/quotes", h.CreatePublic)
}

// Preview handles POST /v1/quotes/preview.
func (h *QuoteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req PricingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	cfg, err := h.loadPricing(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := pricing.AssembleQuote(cfg, req.input())
	if err != nil {
		core.Error(w, r, pricing.ToAppError(err))
		return
	}

	resp := PreviewResponse{Quote: result}
	if compare, _ := strconv.ParseBool(r.URL.Query().Get("compare")); compare {
		c, err := pricing.ComparePricing(result.Area, cfg)
		if err != nil {
			core.Error(w, r, pricing.ToAppError(err))
			return
		}
		resp.Comparison = &c
	}
	core.Respond(w, r, http.StatusOK, resp, nil)
}

// Create handles POST /v1/quotes. Quotes past the plan allowance are still
// accepted and flagged with a usage warning.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.create(r.Context(), account, req, actorAttribution(r.Context()), false)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusCreated, resp, nil)
}

// CreatePublic handles POST /v1/public/accounts/{accountID}/quotes. Lead
// forms stop at the plan allowance and carry no operator attribution.
func (h *QuoteHandler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.create(r.Context(), account, req, "", true)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusCreated, resp, nil)
}

func (h *QuoteHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (CreateQuoteRequest, bool) {
	var req CreateQuoteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return req, false
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return req, false
	}
	if req.SendToCustomer && req.Email == "" {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"email is required when send_to_customer is set", nil,
			map[string]any{"field": "email"}))
		return req, false
	}
	return req, true
}

func (h *QuoteHandler) create(
	ctx context.Context,
	account *types.Account,
	req CreateQuoteRequest,
	createdBy string,
	public bool,
) (*QuoteResponse, error) {
	now := h.clock.Now()
	if !billing.StatusFor(account, now).HasAccess {
		return nil, types.NewAppErrorWithDetails(types.ErrCodePermissionNoAccess,
			"subscription is not active", nil,
			map[string]any{"status": account.SubscriptionStatus})
	}

	usage, err := h.usage.GetCurrentUsage(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if public && usage.QuotesThisMonth >= usage.Limit {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeLimitQuotes,
			"monthly quote limit reached", nil,
			map[string]any{"limit": usage.Limit, "plan": usage.Plan})
	}

	cfg, err := h.loadPricing(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	in := req.input()
	result, err := pricing.AssembleQuote(cfg, in)
	if err != nil {
		return nil, pricing.ToAppError(err)
	}

	quote := pricing.BuildQuote(cfg, in, result)
	quote.ID = newID("q_")
	quote.AccountID = account.ID
	quote.Lead = types.Lead{
		CustomerName:    req.CustomerName,
		Email:           req.Email,
		Phone:           req.Phone,
		PropertyAddress: req.PropertyAddress,
		PropertyType:    req.PropertyType,
		Notes:           req.Notes,
	}
	quote.SendToCustomer = req.SendToCustomer
	quote.CreatedBy = createdBy
	quote.CreatedAt = now

	if err := h.quotes.Create(ctx, &quote); err != nil {
		return nil, err
	}

	after := billing.Summarize(usage.Plan, types.PlanLimits{MaxQuotesMonthly: usage.Limit}, usage.QuotesThisMonth+1)
	resp := &QuoteResponse{
		Quote:         &quote,
		IgnoredAddOns: result.IgnoredAddOns,
		UsageWarning:  billing.UsageWarning(&after),
	}

	if h.forwarder != nil {
		fr := h.forwarder.Forward(ctx, account, &quote)
		resp.Forwarding = &fr
	}

	h.logger.InfoContext(ctx, "quote created",
		"account_id", account.ID,
		"quote_id", quote.ID,
		"price_per_visit", quote.PricePerVisit.StringFixed(2),
		"public", public,
		"overage", after.IsOverLimit(),
	)
	return resp, nil
}

// loadPricing returns the account's configuration. An account without a
// settings row cannot be priced.
func (h *QuoteHandler) loadPricing(ctx context.Context, accountID string) (types.PricingConfiguration, error) {
	settings, err := h.settings.Get(ctx, accountID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSettings {
			return types.PricingConfiguration{}, types.NewAppError(types.ErrCodePricingNotConfigured,
				"pricing has not been configured for this account", err)
		}
		return types.PricingConfiguration{}, err
	}
	return settings.Pricing, nil
}

// List handles GET /v1/quotes.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	filter, err := parseQuoteFilter(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	quotes, page, err := h.quotes.List(r.Context(), accountID, filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, quotes, &types.ResponseMeta{Pagination: &page})
}

func parseQuoteFilter(r *http.Request) (types.QuoteFilter, error) {
	q := r.URL.Query()
	f := types.QuoteFilter{Limit: defaultQuotePageSize, Cursor: q.Get("cursor")}

	if s := q.Get("status"); s != "" {
		f.Status = types.QuoteStatus(s)
		if !f.Status.IsValid() {
			return f, types.NewAppError(types.ErrCodeValidationInvalidStatus, "unknown quote status "+strconv.Quote(s), nil)
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > types.MaxListPageSize {
			return f, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidArgument,
				"limit must be between 1 and 100", err, map[string]any{"field": "limit"})
		}
		f.Limit = n
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidArgument,
				p.name+" must be an RFC 3339 timestamp", err, map[string]any{"field": p.name})
		}
		*p.dst = t.UTC()
	}
	return f, nil
}

// Get handles GET /v1/quotes/{quoteID}.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	quote, err := h.quotes.GetByID(r.Context(), accountID, chi.URLParam(r, "quoteID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, quote, nil)
}

// UpdateStatus handles PATCH /v1/quotes/{quoteID}/status. A pending quote
// may become won or lost, once.
func (h *QuoteHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateQuoteStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if !req.Status.IsTerminal() {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			"status must be won or lost", nil))
		return
	}

	quoteID := chi.URLParam(r, "quoteID")
	quote, err := h.quotes.UpdateStatus(r.Context(), accountID, quoteID, req.Status)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "quote status updated",
		"account_id", accountID,
		"quote_id", quoteID,
		"status", req.Status,
		"updated_by", actorAttribution(r.Context()),
	)
	core.Respond(w, r, http.StatusOK, quote, nil)
}
