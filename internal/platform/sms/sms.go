package sms

import (
	"context"
	"errors"
)

// Gateway sends an SMS and returns the provider's message ID.
type Gateway interface {
	Send(ctx context.Context, phone, body string) (providerID string, err error)
}

// PermanentError marks a delivery failure that retrying cannot fix, such as
// an invalid destination number.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return "sms: permanent delivery failure: " + e.Reason
}

// IsPermanent reports whether err is a non-retriable delivery failure.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
