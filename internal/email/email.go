// Package email delivers subscription confirmation messages.
//
// Two transports are supported: AWS SES through the SDK and an HTTP JSON
// API in the Postmark format. Message bodies are rendered from Liquid
// templates.
package email

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a sender that has no client.
var ErrNotConfigured = errors.New("email sender not configured")

// Message is one outbound email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	// Tag groups messages in the provider's reporting.
	Tag string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
