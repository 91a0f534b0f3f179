package email

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

func testQuoteMessage() *types.QuoteMessage {
	monthly := decimal.RequireFromString("386.45")
	return &types.QuoteMessage{
		MessageID:    "msg_001",
		AccountID:    "acc_123",
		Channel:      types.ChannelEmail,
		Destination:  "owner@greenlawns.com",
		CustomerCopy: true,
		AccountName:  "Green Lawns",
		Quote: types.Quote{
			ID:        "qt_abc",
			AccountID: "acc_123",
			Lead: types.Lead{
				CustomerName:    "Pat Doe",
				Email:           "pat@example.com",
				PropertyAddress: "12 Elm St",
				Notes:           "Gate code 1234",
			},
			Area:            decimal.NewFromInt(10000),
			Frequency:       types.FrequencyWeekly,
			PricePerVisit:   decimal.RequireFromString("89.25"),
			MonthlyEstimate: &monthly,
			CreatedAt:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}
	return r
}

func TestRendererRenderAccountCopy(t *testing.T) {
	r := newTestRenderer(t)

	rendered, err := r.Render(AudienceAccount, testQuoteMessage())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if want := "New quote for Pat Doe: $89.25 per visit"; rendered.Subject != want {
		t.Errorf("Subject = %q, want %q", rendered.Subject, want)
	}
	for _, want := range []string{"$89.25", "$386.45", "10,000 sq ft", "12 Elm St", "Gate code 1234", "qt_abc"} {
		if !strings.Contains(rendered.BodyHTML, want) {
			t.Errorf("BodyHTML missing %q", want)
		}
		if !strings.Contains(rendered.BodyText, want) {
			t.Errorf("BodyText missing %q", want)
		}
	}
}

func TestRendererRenderCustomerCopy(t *testing.T) {
	r := newTestRenderer(t)

	rendered, err := r.Render(AudienceCustomer, testQuoteMessage())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if want := "Your lawn care quote from Green Lawns"; rendered.Subject != want {
		t.Errorf("Subject = %q, want %q", rendered.Subject, want)
	}
	if !strings.Contains(rendered.BodyText, "Hi Pat Doe, thanks for your request.") {
		t.Errorf("BodyText missing greeting:\n%s", rendered.BodyText)
	}
	if strings.Contains(rendered.BodyText, "Gate code") {
		t.Error("customer copy should not include internal notes")
	}
}

func TestRendererRenderOneTimeHasNoMonthly(t *testing.T) {
	r := newTestRenderer(t)
	msg := testQuoteMessage()
	msg.Quote.Frequency = types.FrequencyOneTime
	msg.Quote.MonthlyEstimate = nil

	rendered, err := r.Render(AudienceAccount, msg)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if strings.Contains(rendered.BodyText, "per month") {
		t.Errorf("one-time quote should not show a monthly figure:\n%s", rendered.BodyText)
	}
}

func TestRendererEscapesHTML(t *testing.T) {
	r := newTestRenderer(t)
	msg := testQuoteMessage()
	msg.Quote.Notes = "<script>alert(1)</script>"

	rendered, err := r.Render(AudienceAccount, msg)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if strings.Contains(rendered.BodyHTML, "<script>") {
		t.Error("notes were not escaped in BodyHTML")
	}
}

func TestRendererRenderNilMessage(t *testing.T) {
	r := newTestRenderer(t)
	if _, err := r.Render(AudienceAccount, nil); err == nil {
		t.Fatal("expected error for nil message")
	}
}

func TestRendererRenderUnknownAudience(t *testing.T) {
	r := newTestRenderer(t)
	if _, err := r.Render(Audience("partner_quote"), testQuoteMessage()); err == nil {
		t.Fatal("expected error for unknown audience")
	}
}
