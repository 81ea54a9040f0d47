package smtp

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pure-golang/velocity-mailer/mail"
)

// Transport is a single open SMTP session. It is not safe for concurrent use
// and must be closed by the caller.
type Transport struct {
	cfg    TransportConfig
	conn   net.Conn
	client *smtp.Client
	stop   func() bool
}

// Open dials the relay and reads its greeting.
// Cancelling ctx closes the underlying connection.
func (c TransportConfig) Open(ctx context.Context) (*Transport, error) {
	dialer := &net.Dialer{Timeout: c.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, unreachable(errors.Wrap(err, "failed to connect to SMTP server"))
	}

	if c.ImplicitTLS {
		tlsConn := tls.Client(conn, c.TLS)
		_ = conn.SetDeadline(time.Now().Add(c.ConnectTimeout))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, unreachable(errors.Wrap(err, "TLS handshake failed"))
		}
		conn = tlsConn
	}

	_ = conn.SetDeadline(time.Now().Add(c.GreetingTimeout))
	client, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		_ = conn.Close()
		return nil, unreachable(errors.Wrap(err, "failed to read SMTP greeting"))
	}

	return &Transport{
		cfg:    c,
		conn:   conn,
		client: client,
		stop:   context.AfterFunc(ctx, func() { _ = conn.Close() }),
	}, nil
}

// Verify says hello, upgrades to TLS when offered and authenticates when
// credentials are configured. Nothing is sent.
func (t *Transport) Verify(ctx context.Context) error {
	_, span := tracer.Start(ctx, "SMTP.Verify")
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.address", t.cfg.Addr()),
		attribute.Bool("smtp.implicit_tls", t.cfg.ImplicitTLS),
	)

	t.touch()
	if err := t.client.Hello(localName()); err != nil {
		recordError(span, err)
		return unreachable(errors.Wrap(err, "EHLO failed"))
	}

	if !t.cfg.ImplicitTLS {
		if ok, _ := t.client.Extension("STARTTLS"); ok {
			span.SetAttributes(attribute.Bool("smtp.starttls", true))
			t.touch()
			if err := t.client.StartTLS(t.cfg.TLS); err != nil {
				recordError(span, err)
				return unreachable(errors.Wrap(err, "failed to start TLS"))
			}
		}
	}

	if t.cfg.Username == "" {
		return nil
	}

	ok, params := t.client.Extension("AUTH")
	if !ok {
		err := errors.New("server does not support AUTH")
		recordError(span, err)
		return &mail.DeliveryError{Kind: mail.KindUnauthenticated, Err: err}
	}

	auth, err := t.cfg.negotiateAuth(params)
	if err != nil {
		recordError(span, err)
		return &mail.DeliveryError{Kind: mail.KindUnauthenticated, Err: err}
	}
	span.SetAttributes(attribute.String("smtp.auth_params", params))

	t.touch()
	if err := t.client.Auth(auth); err != nil {
		recordError(span, err)
		return &mail.DeliveryError{Kind: mail.KindUnauthenticated, Err: errors.Wrap(err, "failed to authenticate")}
	}

	return nil
}

// Submit transfers msg for the given envelope.
func (t *Transport) Submit(ctx context.Context, from string, to []string, msg []byte) error {
	_, span := tracer.Start(ctx, "SMTP.Submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("smtp.from", from),
		attribute.Int("smtp.recipients_count", len(to)),
		attribute.Int("smtp.size", len(msg)),
	)

	t.touch()
	if err := t.client.Mail(from); err != nil {
		recordError(span, err)
		return rejected(errors.Wrap(err, "failed to set sender"))
	}

	for _, addr := range to {
		t.touch()
		if err := t.client.Rcpt(addr); err != nil {
			recordError(span, err)
			return rejected(errors.Wrapf(err, "failed to set recipient: %s", addr))
		}
	}

	t.touch()
	w, err := t.client.Data()
	if err != nil {
		recordError(span, err)
		return rejected(errors.Wrap(err, "failed to get data writer"))
	}

	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		recordError(span, err)
		return rejected(errors.Wrap(err, "failed to write message"))
	}

	t.touch()
	if err := w.Close(); err != nil {
		recordError(span, err)
		return rejected(errors.Wrap(err, "message not accepted"))
	}

	return nil
}

// Close ends the session with QUIT and releases the connection.
func (t *Transport) Close() error {
	t.stop()
	t.touch()

	if err := t.client.Quit(); err != nil {
		_ = t.client.Close()
		return errors.Wrap(err, "failed to quit SMTP session")
	}

	return nil
}

// touch extends the socket deadline before each command.
func (t *Transport) touch() {
	_ = t.conn.SetDeadline(time.Now().Add(t.cfg.SocketTimeout))
}

func unreachable(err error) error {
	return &mail.DeliveryError{Kind: mail.KindUnreachable, Err: err}
}

func rejected(err error) error {
	return &mail.DeliveryError{Kind: mail.KindRejected, Err: err}
}

func localName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}

	return "localhost"
}
