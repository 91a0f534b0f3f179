package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greenquote/internal/notifications/core"
	"greenquote/internal/types"
)

const (
	adaptiveCardContentType = "application/vnd.microsoft.card.adaptive"
	adaptiveCardSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
)

// TeamsPayload is the message envelope accepted by both Teams connectors and
// Power Automate "post to channel" workflows.
type TeamsPayload struct {
	Type        string            `json:"type"`
	Attachments []TeamsAttachment `json:"attachments"`
}

type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Schema  string         `json:"$schema"`
	Type    string         `json:"type"`
	Version string         `json:"version"`
	Body    []AdaptiveItem `json:"body"`
	MSTeams *teamsWidth    `json:"msteams,omitempty"`
}

// AdaptiveItem covers the two element kinds the card uses: TextBlock and
// FactSet.
type AdaptiveItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Color    string `json:"color,omitempty"`
	IsSubtle bool   `json:"isSubtle,omitempty"`
	Wrap     bool   `json:"wrap,omitempty"`
	Facts    []Fact `json:"facts,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type teamsWidth struct {
	Width string `json:"width"`
}

// TeamsFormatter renders a quote as an Adaptive Card: a headline, the quote
// facts, optional notes and a footer naming the account.
type TeamsFormatter struct{}

func (f *TeamsFormatter) Platform() Platform { return PlatformTeams }

func (f *TeamsFormatter) Format(_ context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("teams formatter: nil message")
	}
	s := core.Summarize(msg)

	facts := make([]Fact, len(s.Facts))
	for i, fact := range s.Facts {
		facts[i] = Fact{Title: fact.Label, Value: fact.Value}
	}

	body := []AdaptiveItem{
		{Type: "TextBlock", Text: s.Title, Size: "Large", Weight: "Bolder", Wrap: true},
		{Type: "FactSet", Facts: facts},
	}
	if notes := strings.TrimSpace(msg.Quote.Notes); notes != "" {
		body = append(body, AdaptiveItem{Type: "TextBlock", Text: "Notes: " + notes, Wrap: true})
	}
	body = append(body, AdaptiveItem{
		Type:     "TextBlock",
		Text:     fmt.Sprintf("%s | Quote %s", s.AccountName, msg.Quote.ID),
		Size:     "Small",
		IsSubtle: true,
		Wrap:     true,
	})

	return json.Marshal(TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{{
			ContentType: adaptiveCardContentType,
			Content: AdaptiveCard{
				Schema:  adaptiveCardSchema,
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
				MSTeams: &teamsWidth{Width: "Full"},
			},
		}},
	})
}

// ValidateResponse accepts any 2xx. Workflows answer 202 Accepted, legacy
// connectors 200 with body "1".
func (f *TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode/100 == 2 {
		return nil
	}
	return fmt.Errorf("teams: unexpected status %d: %s", statusCode, truncateBody(body))
}
