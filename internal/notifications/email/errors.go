// Package email forwards quotes by email. Messages are rendered from
// embedded templates and sent through an external.EmailProvider (SES or
// SendGrid).
package email

import (
	"errors"

	"greenquote/internal/types"
)

// ErrRecipientBlocked is returned by providers when the address is on their
// suppression list.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// IsBlocklistError reports whether err anywhere in its chain marks the
// recipient as blocked. Providers signal this either with
// ErrRecipientBlocked or with an ErrCodeEmailBlocked AppError.
func IsBlocklistError(err error) bool {
	if err == nil {
		return false
	}
	var appErr *types.AppError
	return errors.Is(err, ErrRecipientBlocked) ||
		(errors.As(err, &appErr) && appErr.Code == types.ErrCodeEmailBlocked)
}
