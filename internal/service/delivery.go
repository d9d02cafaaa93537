package service

import "context"

// OutgoingMessage is one rendered email ready for the provider
type OutgoingMessage struct {
	To      string
	Subject string
	HTML    string
}

// MailboxProfile identifies the mailbox a credential sends from
type MailboxProfile struct {
	EmailAddress  string
	MessagesTotal int64
}

// MailSender is the Delivery Client: it sends exactly one message and
// returns the provider's message id. Auth rejections are AuthError, other
// failures DeliveryError. It never retries.
type MailSender interface {
	SendMessage(ctx context.Context, accessToken string, msg OutgoingMessage) (string, error)
	GetProfile(ctx context.Context, accessToken string) (*MailboxProfile, error)
}
