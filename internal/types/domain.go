package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanTier identifies the subscription plan of an account.
type PlanTier string

const (
	PlanStarter      PlanTier = "starter"
	PlanProfessional PlanTier = "professional"
	PlanEnterprise   PlanTier = "enterprise"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle.
type SubscriptionStatus string

const (
	SubStatusTrialing   SubscriptionStatus = "trialing"
	SubStatusActive     SubscriptionStatus = "active"
	SubStatusPastDue    SubscriptionStatus = "past_due"
	SubStatusCanceled   SubscriptionStatus = "canceled"
	SubStatusIncomplete SubscriptionStatus = "incomplete"
)

// Frequency is how often a lawn-care visit recurs.
type Frequency string

const (
	FrequencyOneTime  Frequency = "one_time"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi_weekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Frequencies lists every supported Frequency in display order.
var Frequencies = []Frequency{FrequencyOneTime, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly}

// IsValid reports whether f is a known frequency.
func (f Frequency) IsValid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// Label is the human-readable form used in emails and chat messages.
func (f Frequency) Label() string {
	switch f {
	case FrequencyOneTime:
		return "One-time"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyBiWeekly:
		return "Bi-weekly"
	case FrequencyMonthly:
		return "Monthly"
	default:
		return string(f)
	}
}

// AreaSource records how the property area was obtained.
type AreaSource string

const (
	// AreaSourceMeasured is an area traced by the user on a map.
	AreaSourceMeasured AreaSource = "measured"
	// AreaSourceEstimated is an area filled in from lot defaults.
	AreaSourceEstimated AreaSource = "estimated"
)

// PricingMode is the pricing strategy a quote was computed with.
type PricingMode string

const (
	PricingModeTiered PricingMode = "tiered"
	PricingModeFlat   PricingMode = "flat"
)

// PropertyType classifies the quoted property.
type PropertyType string

const (
	PropertyResidential PropertyType = "residential"
	PropertyCommercial  PropertyType = "commercial"
)

// QuoteStatus is the sales outcome of a quote.
type QuoteStatus string

const (
	QuoteStatusPending QuoteStatus = "pending"
	QuoteStatusWon     QuoteStatus = "won"
	QuoteStatusLost    QuoteStatus = "lost"
)

// IsValid reports whether s is a known quote status.
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusWon, QuoteStatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusWon || s == QuoteStatusLost
}

// CanTransitionTo reports whether a quote in status s may move to next.
// Only pending quotes move, and only to won or lost.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	return s == QuoteStatusPending && next.IsTerminal()
}

// PricingTier is one volume-discount band. A nil UpToArea is the unbounded
// top band.
type PricingTier struct {
	UpToArea        *decimal.Decimal `json:"up_to_area"`
	RatePerUnitArea decimal.Decimal  `json:"rate_per_unit_area"`
}

// IsUnbounded reports whether the tier has no upper boundary.
func (t PricingTier) IsUnbounded() bool {
	return t.UpToArea == nil
}

// BoundedTier builds a tier ending at upTo.
func BoundedTier(upTo, rate decimal.Decimal) PricingTier {
	return PricingTier{UpToArea: &upTo, RatePerUnitArea: rate}
}

// UnboundedTier builds the open top tier.
func UnboundedTier(rate decimal.Decimal) PricingTier {
	return PricingTier{RatePerUnitArea: rate}
}

// AddOn is an optional extra service offered per visit.
type AddOn struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	PricePerVisit decimal.Decimal `json:"price_per_visit"`
	Enabled       bool            `json:"enabled"`
}

// PricingConfiguration is an account's full pricing setup. It is stored as a
// single JSONB document so reads and writes are atomic.
type PricingConfiguration struct {
	UseTieredPricing     bool                          `json:"use_tiered_pricing"`
	FlatRatePerUnitArea  decimal.Decimal               `json:"flat_rate_per_unit_area"`
	Tiers                []PricingTier                 `json:"tiers"`
	MinPricePerVisit     decimal.Decimal               `json:"min_price_per_visit"`
	BaseFee              decimal.Decimal               `json:"base_fee"`
	AddOns               []AddOn                       `json:"add_ons"`
	FrequencyMultipliers map[Frequency]decimal.Decimal `json:"frequency_multipliers"`
}

// Mode returns the pricing mode this configuration selects.
func (c PricingConfiguration) Mode() PricingMode {
	if c.UseTieredPricing {
		return PricingModeTiered
	}
	return PricingModeFlat
}

// Clone returns a deep copy. Quotes keep clones so later edits to the
// account configuration never reach a stored quote.
func (c PricingConfiguration) Clone() PricingConfiguration {
	out := c
	out.Tiers = CloneTiers(c.Tiers)
	if c.AddOns != nil {
		out.AddOns = append([]AddOn(nil), c.AddOns...)
	}
	if c.FrequencyMultipliers != nil {
		out.FrequencyMultipliers = make(map[Frequency]decimal.Decimal, len(c.FrequencyMultipliers))
		for k, v := range c.FrequencyMultipliers {
			out.FrequencyMultipliers[k] = v
		}
	}
	return out
}

// CloneTiers deep-copies a tier list, including boundary pointers.
func CloneTiers(tiers []PricingTier) []PricingTier {
	if tiers == nil {
		return nil
	}
	out := make([]PricingTier, len(tiers))
	for i, t := range tiers {
		out[i] = PricingTier{RatePerUnitArea: t.RatePerUnitArea}
		if t.UpToArea != nil {
			b := *t.UpToArea
			out[i].UpToArea = &b
		}
	}
	return out
}

// BandResult is the billed slice of area within one tier.
type BandResult struct {
	RangeStart decimal.Decimal  `json:"range_start"`
	RangeEnd   *decimal.Decimal `json:"range_end"`
	AreaInBand decimal.Decimal  `json:"area_in_band"`
	Rate       decimal.Decimal  `json:"rate"`
	Price      decimal.Decimal  `json:"price"`
}

// SelectedAddOn is an add-on as priced at quote time.
type SelectedAddOn struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	PricePerVisit decimal.Decimal `json:"price_per_visit"`
}

// Account is a tenant of the service (a lawn-care business).
type Account struct {
	ID                     string             `json:"id" db:"id"`
	Name                   string             `json:"name" db:"name"`
	NotificationEmail      string             `json:"notification_email,omitempty" db:"notification_email"`
	WebhookURL             string             `json:"webhook_url,omitempty" db:"webhook_url"`
	WebhookSecret          SecretString       `json:"-" db:"webhook_secret"`
	EmailForwardingEnabled bool               `json:"email_forwarding_enabled" db:"email_forwarding_enabled"`
	Plan                   PlanTier           `json:"plan" db:"plan"`
	SubscriptionStatus     SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	TrialEndsAt            *time.Time         `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	StripeCustomerID       string             `json:"-" db:"stripe_customer_id"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}

// AccountSettings is the settings row that owns the pricing document.
type AccountSettings struct {
	AccountID string               `json:"account_id" db:"account_id"`
	Pricing   PricingConfiguration `json:"pricing" db:"pricing_config"`
	UpdatedAt time.Time            `json:"updated_at" db:"updated_at"`
}

// Lead holds the prospect's contact details captured with a quote.
type Lead struct {
	CustomerName    string       `json:"customer_name" db:"customer_name"`
	Email           string       `json:"email,omitempty" db:"email"`
	Phone           string       `json:"phone,omitempty" db:"phone"`
	PropertyAddress string       `json:"property_address,omitempty" db:"property_address"`
	PropertyType    PropertyType `json:"property_type,omitempty" db:"property_type"`
	Notes           string       `json:"notes,omitempty" db:"notes"`
}

// Quote is an immutable priced offer. Only Status, StatusUpdatedAt, and
// EmailSentAt change after creation.
type Quote struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`
	Lead

	Area       decimal.Decimal `json:"area" db:"area"`
	AreaSource AreaSource      `json:"area_source" db:"area_source"`
	Service    string          `json:"service" db:"service"`
	AddOns     SelectedAddOns  `json:"add_ons" db:"addons"`
	Frequency  Frequency       `json:"frequency" db:"frequency"`

	PricingMode      PricingMode     `json:"pricing_mode" db:"pricing_mode"`
	TiersSnapshot    TierSnapshot    `json:"tiers_snapshot" db:"tiers_snapshot"`
	FlatRateSnapshot decimal.Decimal `json:"flat_rate_snapshot" db:"flat_rate_snapshot"`
	Breakdown        Breakdown       `json:"breakdown" db:"breakdown"`

	AreaPrice       decimal.Decimal  `json:"area_price" db:"area_price"`
	BasePrice       decimal.Decimal  `json:"base_price" db:"base_price"`
	AddOnsTotal     decimal.Decimal  `json:"add_ons_total" db:"add_ons_total"`
	PricePerVisit   decimal.Decimal  `json:"price_per_visit" db:"price_per_visit"`
	MonthlyEstimate *decimal.Decimal `json:"monthly_estimate" db:"monthly_estimate"`

	Status          QuoteStatus `json:"status" db:"status"`
	SendToCustomer  bool        `json:"send_to_customer" db:"send_to_customer"`
	CreatedBy       string      `json:"created_by,omitempty" db:"created_by"`
	EmailSentAt     *time.Time  `json:"email_sent_at,omitempty" db:"email_sent_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	StatusUpdatedAt *time.Time  `json:"status_updated_at,omitempty" db:"status_updated_at"`
}

// HasMonthlyEstimate reports whether the quote recurs and so has a monthly figure.
func (q *Quote) HasMonthlyEstimate() bool {
	return q.MonthlyEstimate != nil
}

// QuoteFilter narrows quote listings. Cursor is the opaque NextCursor of a
// previous page; zero Since/Until leave that side open.
type QuoteFilter struct {
	Status QuoteStatus
	Limit  int
	Cursor string
	Since  time.Time
	Until  time.Time
}

// APIKey is a stored credential. The secret itself is never persisted.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	AccountID  string     `json:"account_id" db:"account_id"`
	KeyHash    string     `json:"-" db:"key_hash"`
	Name       string     `json:"name" db:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// ChannelType identifies a forwarding channel.
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
)

// DeliveryStatus is the outcome of a single forwarding attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent     DeliveryStatus = "sent"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
	DeliveryStatusBounced  DeliveryStatus = "bounced"
)

// DeliveryResult describes what happened when a channel delivered a payload.
type DeliveryResult struct {
	ProviderMessageID string
	Status            DeliveryStatus
	FailureReason     string
	Retryable         bool
	Terminal          bool
	RetryAfter        *time.Duration
}

// SendInput is a fully rendered email ready for a provider.
type SendInput struct {
	To          string
	From        SenderIdentity
	ReplyTo     string
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// RedirectURLs are the browser destinations after a hosted billing flow.
type RedirectURLs struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}
