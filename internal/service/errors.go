package service

import (
	"errors"
	"fmt"
)

// AuthError means the mailbox credential is missing, expired beyond refresh,
// or was rejected by the provider. Campaigns pause on it.
type AuthError struct {
	UserID string
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "mailbox authorization failed: " + e.Reason
	if e.UserID != "" {
		msg = fmt.Sprintf("mailbox authorization failed for user %s: %s", e.UserID, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DeliveryError is a non-auth provider failure while sending one message.
// Permanent is set when the provider rejected the message itself (bad
// recipient, malformed payload) so retrying is pointless. Throttled marks
// quota/rate rejections, which say nothing about the recipient.
type DeliveryError struct {
	StatusCode int
	Permanent  bool
	Throttled  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// ConflictError represents a rejected state change
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict with %s: %s", e.Resource, e.Message)
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// AsDeliveryError returns the DeliveryError in err's chain, if any
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr, true
	}
	return nil, false
}
