package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"greenquote/internal/notifications/core"
	"greenquote/internal/types"
)

// SlackPayload is a Block Kit message. Text is the notification fallback.
type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Fields   []*SlackText `json:"fields,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// slackErrorBodies are the plain-text errors incoming webhooks return with a
// 200 status.
var slackErrorBodies = map[string]bool{
	"no_text":              true,
	"invalid_payload":      true,
	"channel_not_found":    true,
	"channel_is_archived":  true,
	"too_many_attachments": true,
	"no_service":           true,
}

// SlackFormatter renders a quote as Block Kit: a header, the quote facts in
// two-column sections, optional notes and a context footer.
type SlackFormatter struct{}

func (f *SlackFormatter) Platform() Platform { return PlatformSlack }

func (f *SlackFormatter) Format(_ context.Context, msg *types.QuoteMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("slack formatter: message is nil")
	}

	s := core.Summarize(msg)

	payload := SlackPayload{
		Text: fmt.Sprintf("%s: %s per visit", s.Title, s.PricePerVisit),
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackText{Type: "plain_text", Text: s.Title},
			},
		},
	}

	// Slack renders at most 10 fields per section.
	var fields []*SlackText
	for _, fact := range s.Facts {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", fact.Label, fact.Value)})
	}
	for len(fields) > 0 {
		n := min(len(fields), 10)
		payload.Blocks = append(payload.Blocks, SlackBlock{Type: "section", Fields: fields[:n]})
		fields = fields[n:]
	}

	if notes := strings.TrimSpace(msg.Quote.Notes); notes != "" {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: "*Notes*\n" + notes},
		})
	}

	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type: "context",
		Elements: []*SlackText{
			{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%s | Quote %s | GreenQuote", s.AccountName, msg.Quote.ID),
			},
		},
	})

	return json.Marshal(payload)
}

// ValidateResponse also fails a 200 whose body is a known error string or a
// JSON object with "ok": false.
func (f *SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}

	bodyStr := strings.TrimSpace(string(body))

	if bodyStr == "ok" || bodyStr == "" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", errMsg)
	}

	if slackErrorBodies[bodyStr] {
		return fmt.Errorf("slack: API error: %s", bodyStr)
	}

	return nil
}
