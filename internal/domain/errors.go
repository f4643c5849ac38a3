package domain

import "errors"

// Sentinel errors for the application. Handlers map these to HTTP status
// codes with errors.Is, so services wrap them rather than inventing new
// root causes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrConflict     = errors.New("resource already exists")
	ErrValidation   = errors.New("invalid input")
	ErrLinkExpired  = errors.New("link expired")
)

// ExpiredLinkError carries the account email so the client can offer to
// resend the activation or reset mail.
type ExpiredLinkError struct {
	Email string
}

func (e *ExpiredLinkError) Error() string {
	return "link expired for " + e.Email
}

func (e *ExpiredLinkError) Unwrap() error {
	return ErrLinkExpired
}
