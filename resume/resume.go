// Package resume downloads applicant resumes so they can be attached to emails.
package resume

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/velocity-mailer/mail"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10 << 20

	ContentType = "application/pdf"
)

var (
	tracer     = otel.Tracer("github.com/pure-golang/velocity-mailer/resume")
	whitespace = regexp.MustCompile(`\s+`)

	ErrTooLarge = errors.New("resume exceeds size limit")
)

type Config struct {
	Timeout  time.Duration `envconfig:"RESUME_FETCH_TIMEOUT" default:"15s"`
	MaxBytes int64         `envconfig:"RESUME_MAX_BYTES" default:"10485760"`
}

// Fetcher retrieves a resume document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches resumes over HTTP(S). It is safe for concurrent use.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher uses client when non-nil, otherwise a client bounded by c.Timeout.
func NewFetcher(c Config, client *http.Client) *HTTPFetcher {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}

	return &HTTPFetcher{
		client:   client,
		maxBytes: c.MaxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (_ []byte, err error) {
	ctx, span := tracer.Start(ctx, "Resume.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build resume request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch resume")
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("failed to fetch resume: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read resume")
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "limit %d bytes", f.maxBytes)
	}

	span.SetAttributes(attribute.Int("resume.size", len(data)))

	return data, nil
}

// Attachment names the resume after the applicant, e.g. "Jane_Doe_Resume.pdf".
// Every whitespace run becomes "_", leading and trailing ones included.
func Attachment(applicantName string, data []byte) mail.Attachment {
	name := whitespace.ReplaceAllString(applicantName, "_")
	if name == "" {
		name = "Applicant"
	}

	return mail.Attachment{
		Filename:    name + "_Resume.pdf",
		ContentType: ContentType,
		Content:     data,
	}
}
