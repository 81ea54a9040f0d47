package mail

import (
	"context"
	"io"
)

// Sender dispatches a single message and reports the transport-assigned ID.
type Sender interface {
	Send(ctx context.Context, email Email) (Result, error)
	io.Closer
}

// Email represents an outbound message.
type Email struct {
	// From.Address is always replaced by the configured account; only the
	// display name is taken from the caller.
	From    Address
	To      []Address
	Subject string

	// Headers
	Headers map[string]string

	// Body
	Body string // Plain text body
	HTML string // HTML body

	Attachments []Attachment
}

// Address represents an email address.
type Address struct {
	Name    string // "Velocity Jobs"
	Address string // "jobs@example.com"
}

// Attachment is a file carried alongside the message body.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Result reports an accepted message.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// Validate checks the message is complete enough to dispatch.
func (e Email) Validate() error {
	if len(e.To) == 0 {
		return &DeliveryError{Kind: KindInvalidMessage, Err: ErrNoRecipients}
	}
	for _, to := range e.To {
		if to.Address == "" {
			return &DeliveryError{Kind: KindInvalidMessage, Err: ErrNoRecipients}
		}
	}
	if e.Subject == "" {
		return &DeliveryError{Kind: KindInvalidMessage, Err: ErrNoSubject}
	}
	if e.Body == "" && e.HTML == "" {
		return &DeliveryError{Kind: KindInvalidMessage, Err: ErrNoBody}
	}

	return nil
}
