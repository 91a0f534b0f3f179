package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"greenquote/internal/types"
)

const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClient sends rendered email through the v3 mail/send endpoint.
type SendGridClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
}

// NewSendGridClient uses baseURL when non-empty, for tests.
func NewSendGridClient(base *BaseClient, apiKey, baseURL string) *SendGridClient {
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	return &SendGridClient{base: base, apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []struct {
		To []sgAddress `json:"to"`
	} `json:"personalizations"`
	From       sgAddress         `json:"from"`
	ReplyTo    *sgAddress        `json:"reply_to,omitempty"`
	Subject    string            `json:"subject"`
	Content    []sgContent       `json:"content"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

func buildSendGridMail(in types.SendInput) sgMail {
	m := sgMail{
		From:    sgAddress{Email: in.From.Address, Name: in.From.Name},
		Subject: in.Subject,
	}
	m.Personalizations = make([]struct {
		To []sgAddress `json:"to"`
	}, 1)
	m.Personalizations[0].To = []sgAddress{{Email: in.To}}
	if in.ReplyTo != "" {
		m.ReplyTo = &sgAddress{Email: in.ReplyTo}
	}
	// SendGrid requires text/plain before text/html.
	if in.BodyText != "" {
		m.Content = append(m.Content, sgContent{Type: "text/plain", Value: in.BodyText})
	}
	if in.BodyHTML != "" {
		m.Content = append(m.Content, sgContent{Type: "text/html", Value: in.BodyHTML})
	}
	if in.ReferenceID != "" {
		m.CustomArgs = map[string]string{"reference_id": in.ReferenceID}
	}
	return m
}

// Send returns the X-Message-Id of an accepted message.
func (s *SendGridClient) Send(ctx context.Context, in types.SendInput) (string, error) {
	body, err := json.Marshal(buildSendGridMail(in))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode sendgrid mail", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sendgrid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}

	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && len(payload.Errors) > 0 {
		msg = payload.Errors[0].Message
	}

	if resp.StatusCode == http.StatusForbidden {
		return "", types.NewAppError(types.ErrCodeEmailBlocked, "sendgrid refused delivery: "+msg, nil)
	}
	return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, msg), nil)
}

var _ EmailProvider = (*SendGridClient)(nil)
