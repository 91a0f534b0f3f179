package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// Fact is one labelled line of a quote summary.
type Fact struct {
	Label string
	Value string
}

// QuoteSummary is the display form of a quote shared by the chat formatters
// and the email templates. Monthly is empty for one-time quotes.
type QuoteSummary struct {
	Title         string
	AccountName   string
	Customer      string
	PricePerVisit string
	Monthly       string
	Frequency     string
	Facts         []Fact
}

// Summarize renders the quote carried by msg for humans. Empty lead fields
// are left out of Facts.
func Summarize(msg *types.QuoteMessage) QuoteSummary {
	q := &msg.Quote

	s := QuoteSummary{
		Title:         "New quote for " + q.CustomerName,
		AccountName:   msg.AccountName,
		Customer:      q.CustomerName,
		PricePerVisit: FormatMoney(q.PricePerVisit),
		Frequency:     q.Frequency.Label(),
	}
	if q.CustomerName == "" {
		s.Title = "New quote"
	}
	if q.MonthlyEstimate != nil {
		s.Monthly = FormatMoney(*q.MonthlyEstimate)
	}

	add := func(label, value string) {
		if value != "" {
			s.Facts = append(s.Facts, Fact{Label: label, Value: value})
		}
	}
	add("Customer", q.CustomerName)
	add("Email", q.Email)
	add("Phone", q.Phone)
	add("Address", q.PropertyAddress)
	add("Property", string(q.PropertyType))
	add("Area", FormatArea(q.Area))
	add("Service", q.Service)
	add("Frequency", s.Frequency)
	if len(q.AddOns) > 0 {
		labels := make([]string, 0, len(q.AddOns))
		for _, a := range q.AddOns {
			labels = append(labels, a.Label)
		}
		add("Add-ons", strings.Join(labels, ", "))
	}
	add("Per visit", s.PricePerVisit)
	add("Monthly estimate", s.Monthly)

	return s
}

// FormatMoney renders an amount as dollars with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatArea renders an area in square feet with thousands separators.
func FormatArea(area decimal.Decimal) string {
	if area.IsZero() {
		return ""
	}
	whole := area.Truncate(0)
	digits := whole.Abs().String()

	var b strings.Builder
	if whole.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac := area.Sub(whole).Abs(); !frac.IsZero() {
		b.WriteString(strings.TrimPrefix(frac.StringFixed(2), "0"))
	}
	return fmt.Sprintf("%s sq ft", b.String())
}
