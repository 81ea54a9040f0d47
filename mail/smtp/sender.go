package smtp

import (
	"context"
	"log/slog"
	netmail "net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/velocity-mailer/mail"
)

var _ mail.Sender = (*Sender)(nil)

// Sender implements mail.Sender by opening a fresh SMTP session per message.
// Concurrent Send calls share no transport state.
type Sender struct {
	mx     sync.RWMutex
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	closed bool
}

// SenderOptions contains options for creating a Sender.
type SenderOptions struct {
	Logger *slog.Logger
}

// NewSender creates a new SMTP Sender.
func NewSender(cfg Config, options *SenderOptions) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: slog.Default().WithGroup("smtp"),
		now:    time.Now,
	}
	if options != nil && options.Logger != nil {
		s.logger = options.Logger
	}

	return s
}

// Send verifies the relay and submits email. Exactly one send attempt is made.
func (s *Sender) Send(ctx context.Context, email mail.Email) (mail.Result, error) {
	ctx, span := tracer.Start(ctx, "SMTP.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.subject", email.Subject),
		attribute.Int("smtp.to_count", len(email.To)),
		attribute.Int("smtp.attachments_count", len(email.Attachments)),
		attribute.String("smtp.host", s.cfg.Host),
		attribute.Int("smtp.port", s.cfg.Port),
	)

	started := time.Now()
	res, err := s.send(ctx, email)
	recordDispatch(ctx, started, err)

	if err != nil {
		recordError(span, err)
		return mail.Result{}, err
	}

	span.SetAttributes(attribute.String("smtp.message_id", res.MessageID))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (s *Sender) send(ctx context.Context, email mail.Email) (mail.Result, error) {
	s.mx.RLock()
	closed := s.closed
	s.mx.RUnlock()
	if closed {
		return mail.Result{}, errors.New("sender is closed")
	}

	account := s.cfg.Account()
	if account == "" {
		return mail.Result{}, &mail.DeliveryError{Kind: mail.KindInvalidMessage, Err: mail.ErrNoFrom}
	}
	if err := email.Validate(); err != nil {
		return mail.Result{}, err
	}

	recipients := make([]string, 0, len(email.To))
	for _, to := range email.To {
		addr, err := netmail.ParseAddress(to.Address)
		if err != nil {
			return mail.Result{}, &mail.DeliveryError{
				Kind: mail.KindInvalidMessage,
				Err:  errors.Wrapf(err, "invalid recipient %q", to.Address),
			}
		}
		recipients = append(recipients, addr.Address)
	}

	from := mail.Address{Name: email.From.Name, Address: account}
	messageID := mail.NewMessageID(account)

	msg, err := mail.Compose(from, email, messageID, s.now())
	if err != nil {
		return mail.Result{}, &mail.DeliveryError{Kind: mail.KindInvalidMessage, Err: err}
	}

	t, err := Build(s.cfg).Open(ctx)
	if err != nil {
		return mail.Result{}, err
	}
	defer func() {
		if err := t.Close(); err != nil {
			s.logger.Debug("smtp session close failed", "error", err.Error())
		}
	}()

	if err := t.Verify(ctx); err != nil {
		return mail.Result{}, err
	}

	if err := t.Submit(ctx, account, recipients, msg); err != nil {
		return mail.Result{}, err
	}

	return mail.Result{Success: true, MessageID: messageID}, nil
}

// Close rejects further sends. Sessions are per message, so nothing else is held.
func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}
