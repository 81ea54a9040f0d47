package noop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pure-golang/velocity-mailer/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender accepts every valid message without network I/O and keeps a copy.
// It backs local development (EMAIL_PROVIDER=noop) and tests.
type Sender struct {
	mx     sync.Mutex
	sent   []mail.Email
	closed bool
}

// NewSender creates a new no-op Sender.
func NewSender() *Sender {
	return &Sender{}
}

// Send records email and returns a synthetic message ID.
func (n *Sender) Send(ctx context.Context, email mail.Email) (mail.Result, error) {
	if err := email.Validate(); err != nil {
		return mail.Result{}, err
	}

	n.mx.Lock()
	defer n.mx.Unlock()

	if n.closed {
		return mail.Result{}, errors.New("sender is closed")
	}
	n.sent = append(n.sent, email)

	id := "<" + uuid.NewString() + "@noop>"
	slog.Default().DebugContext(ctx, "noop sender discarded message",
		"message_id", id,
		"subject", email.Subject,
		"attachments", len(email.Attachments),
	)

	return mail.Result{Success: true, MessageID: id}, nil
}

// Sent returns the messages accepted so far.
func (n *Sender) Sent() []mail.Email {
	n.mx.Lock()
	defer n.mx.Unlock()

	return append([]mail.Email(nil), n.sent...)
}

// Close is idempotent.
func (n *Sender) Close() error {
	n.mx.Lock()
	defer n.mx.Unlock()

	n.closed = true
	return nil
}
