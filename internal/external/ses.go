package external

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"greenquote/internal/types"
)

// SESAPI is the part of the SES v2 client SESClient needs.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient sends email with SES v2. The SDK retries on its own, so it does
// not go through BaseClient.
type SESClient struct {
	api       SESAPI
	configSet string
}

func NewSESClient(api SESAPI, configSet string) *SESClient {
	return &SESClient{api: api, configSet: configSet}
}

func utf8Content(s string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (s *SESClient) Send(ctx context.Context, in types.SendInput) (string, error) {
	from := in.From.Address
	if in.From.Name != "" {
		from = (&mail.Address{Name: in.From.Name, Address: in.From.Address}).String()
	}

	body := &sestypes.Body{}
	if in.BodyHTML != "" {
		body.Html = utf8Content(in.BodyHTML)
	}
	if in.BodyText != "" {
		body.Text = utf8Content(in.BodyText)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &sestypes.Destination{ToAddresses: []string{in.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{Subject: utf8Content(in.Subject), Body: body},
		},
	}
	if in.ReplyTo != "" {
		input.ReplyToAddresses = []string{in.ReplyTo}
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}
	if in.ReferenceID != "" {
		input.EmailTags = []sestypes.MessageTag{{Name: aws.String("quote_id"), Value: aws.String(in.ReferenceID)}}
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	var throttled *sestypes.TooManyRequestsException
	var paused *sestypes.SendingPausedException
	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeEmailBlocked, "SES rejected the message", err)
	case errors.As(err, &throttled):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending is paused", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, fmt.Sprintf("SES send failed: %v", err), err)
	}
}

var _ EmailProvider = (*SESClient)(nil)
