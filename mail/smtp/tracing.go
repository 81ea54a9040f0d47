package smtp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/velocity-mailer/mail"
)

var (
	tracer = otel.Tracer("github.com/pure-golang/velocity-mailer/mail/smtp")
	meter  = otel.GetMeterProvider().Meter("github.com/pure-golang/velocity-mailer/mail/smtp")
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	dispatchCount, _ = meter.Int64Counter("mail.dispatch_count")
	dispatchTime, _  = meter.Int64Histogram("mail.dispatch_time", metric.WithUnit("ms"))
)

func recordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func recordDispatch(ctx context.Context, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("kind", string(mail.KindOf(err))),
	)

	dispatchCount.Add(ctx, 1, attrs)
	dispatchTime.Record(ctx, time.Since(started).Milliseconds(), attrs)
}
