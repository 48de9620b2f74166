// Package email delivers plain-text mail with optional attachments. An unconfigured relay
// is a valid state: every send then fails with ErrNotConfigured.
package email

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured  = errors.New("email_not_configured")
	ErrDeliveryFailed = errors.New("email_delivery_failed")
	ErrNoRecipient    = errors.New("email_no_recipient")
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single outbound mail. An empty From uses the configured sender.
type Message struct {
	From        string
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
	Headers     map[string]string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Configured() bool
}

// NotConfigured is used when no SMTP relay is set up.
type NotConfigured struct{}

func (NotConfigured) Send(context.Context, Message) error { return ErrNotConfigured }

func (NotConfigured) Configured() bool { return false }
