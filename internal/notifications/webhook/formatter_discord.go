package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"greenquote/internal/notifications/core"
	"greenquote/internal/types"
)

const (
	colorOneTime   = 0x2196F3 // Blue
	colorRecurring = 0x4CAF50 // Green
)

type DiscordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed colors are decimal RGB.
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordFormatter renders a quote as a single embed, green for recurring
// service and blue for one-time jobs.
type DiscordFormatter struct{}

func (f *DiscordFormatter) Platform() Platform { return PlatformDiscord }

func (f *DiscordFormatter) Format(_ context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("discord formatter: message is nil")
	}

	s := core.Summarize(msg)

	color := colorOneTime
	if msg.Quote.HasMonthlyEstimate() {
		color = colorRecurring
	}

	description := fmt.Sprintf("**%s** per visit", s.PricePerVisit)
	if s.Monthly != "" {
		description += fmt.Sprintf(", about **%s** per month", s.Monthly)
	}

	fields := make([]DiscordField, 0, len(s.Facts))
	for _, fact := range s.Facts {
		fields = append(fields, DiscordField{Name: fact.Label, Value: fact.Value, Inline: true})
	}

	payload := DiscordPayload{
		Username: "GreenQuote",
		Content:  fmt.Sprintf("%s: %s per visit", s.Title, s.PricePerVisit),
		Embeds: []DiscordEmbed{
			{
				Title:       s.Title,
				Description: description,
				Color:       color,
				Fields:      fields,
				Footer:      &DiscordFooter{Text: fmt.Sprintf("%s | Quote %s", s.AccountName, msg.Quote.ID)},
			},
		},
	}

	return json.Marshal(payload)
}

// ValidateResponse checks the Discord webhook response. Discord returns 204
// No Content on success for webhook messages.
func (f *DiscordFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return fmt.Errorf("discord: API error: %s", resp.Message)
	}

	return fmt.Errorf("discord: unexpected status %d: %s", statusCode, truncateBody(body))
}
