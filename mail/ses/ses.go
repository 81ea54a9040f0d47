// Package ses dispatches mail through the AWS SES v2 API as raw MIME messages.
package ses

import (
	"context"
	"log/slog"
	netmail "net/mail"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/velocity-mailer/mail"
)

var (
	_ mail.Sender = (*Sender)(nil)

	tracer = otel.Tracer("github.com/pure-golang/velocity-mailer/mail/ses")
)

type Config struct {
	Region          string `envconfig:"SES_REGION" default:"us-east-1"`
	AccessKeyID     string `envconfig:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SES_SECRET_ACCESS_KEY"`
	// Endpoint overrides the regional endpoint, e.g. for LocalStack.
	Endpoint string `envconfig:"SES_ENDPOINT"`
	From     string `envconfig:"EMAIL_FROM"`
}

// API is the subset of the SES v2 client the Sender needs.
type API interface {
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender checks the account with GetAccount, then submits each message with a
// single SendEmail call. It is safe for concurrent use.
type Sender struct {
	mx     sync.RWMutex
	client API
	from   string
	logger *slog.Logger
	now    func() time.Time
	closed bool
}

// New loads AWS configuration from the environment chain, preferring static
// keys when both are set. SDK retries are disabled: one request, one attempt.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithClient(cfg.From, client), nil
}

func NewWithClient(from string, client API) *Sender {
	return &Sender{
		client: client,
		from:   from,
		logger: slog.Default().WithGroup("ses"),
		now:    time.Now,
	}
}

func (s *Sender) Send(ctx context.Context, email mail.Email) (res mail.Result, err error) {
	ctx, span := tracer.Start(ctx, "SES.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("mail.failure", string(mail.KindOf(err))))
		}
		span.End()
	}()

	s.mx.RLock()
	defer s.mx.RUnlock()

	if s.closed {
		return mail.Result{}, errors.New("sender is closed")
	}
	if s.from == "" {
		return mail.Result{}, &mail.DeliveryError{Kind: mail.KindInvalidMessage, Err: mail.ErrNoFrom}
	}
	if err := email.Validate(); err != nil {
		return mail.Result{}, err
	}

	to := make([]string, 0, len(email.To))
	for _, rcpt := range email.To {
		addr, err := netmail.ParseAddress(rcpt.Address)
		if err != nil {
			return mail.Result{}, &mail.DeliveryError{
				Kind: mail.KindInvalidMessage,
				Err:  errors.Wrapf(err, "invalid recipient %q", rcpt.Address),
			}
		}
		to = append(to, addr.Address)
	}

	messageID := mail.NewMessageID(s.from)
	raw, err := mail.Compose(mail.Address{Name: email.From.Name, Address: s.from}, email, messageID, s.now())
	if err != nil {
		return mail.Result{}, &mail.DeliveryError{Kind: mail.KindInvalidMessage, Err: err}
	}

	if err := s.verify(ctx); err != nil {
		return mail.Result{}, err
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: to},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return mail.Result{}, classify(err)
	}

	if out != nil && out.MessageId != nil && *out.MessageId != "" {
		messageID = "<" + *out.MessageId + "@email.amazonses.com>"
	}
	s.logger.Debug("message accepted", "message_id", messageID)

	return mail.Result{Success: true, MessageID: messageID}, nil
}

func (s *Sender) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}

// verify checks the endpoint is reachable and the credentials are accepted.
func (s *Sender) verify(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SES.Verify")
	defer span.End()

	if _, err := s.client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		kind := mail.KindUnreachable
		if isAuthError(err) {
			kind = mail.KindUnauthenticated
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &mail.DeliveryError{Kind: kind, Err: errors.Wrap(err, "SES GetAccount failed")}
	}

	return nil
}

// classify maps SES API error codes onto delivery failure kinds.
func classify(err error) error {
	kind := mail.KindUnreachable

	var apiErr smithy.APIError
	switch {
	case isAuthError(err):
		kind = mail.KindUnauthenticated
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "MessageRejected", "MailFromDomainNotVerifiedException", "AccountSuspendedException",
			"SendingPausedException", "LimitExceededException", "TooManyRequestsException":
			kind = mail.KindRejected
		case "BadRequestException", "ValidationException":
			kind = mail.KindInvalidMessage
		}
	}

	return &mail.DeliveryError{Kind: kind, Err: errors.Wrap(err, "SES SendEmail failed")}
}

func isAuthError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "InvalidClientTokenId",
		"SignatureDoesNotMatch", "ExpiredTokenException":
		return true
	}
	return false
}
