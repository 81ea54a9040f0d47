package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/velocity-mailer/logger"
)

var (
	meter = otel.GetMeterProvider().Meter("github.com/pure-golang/velocity-mailer/httpserver/middleware")
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	requestsCount, _       = meter.Int64Counter("http.request_count")
	requestTimeHist, _     = meter.Int64Histogram("http.request_time", metric.WithUnit("ms"))
	requestBodyLenHist, _  = meter.Int64Histogram("http.request_body_len", metric.WithUnit("By"))
	responseBodyLenHist, _ = meter.Int64Histogram("http.response_body_len", metric.WithUnit("By"))
	tracer                 = otel.Tracer("github.com/pure-golang/velocity-mailer/httpserver/middleware")
)

// Monitoring traces incoming http requests using open telemetry tracer + attaches logger to request context.
// Request headers and bodies carry credentials and personal data, so only their sizes are recorded.
func Monitoring(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqTime := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		path := r.URL.Path
		ctx, span := tracer.Start(ctx, r.Method+" "+path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		metricLabels := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", path),
		}

		traceID := span.SpanContext().TraceID().String()

		log := slog.Default().With("method", r.Method, "path", path)
		if span.SpanContext().HasTraceID() {
			log = log.With("trace_id", traceID)
		}

		attrs := semconv.NetAttributesFromHTTPRequest("tcp", r)
		attrs = append(attrs, semconv.HTTPServerAttributesFromHTTPRequest("webserver", path, r)...)
		attrs = append(attrs, attribute.String("http.request.header.User-Agent", r.Header.Get("User-Agent")))

		body := &countingBody{ReadCloser: r.Body}
		if r.Body != nil {
			r.Body = body
		}

		w.Header().Set("X-Trace-Id", traceID)

		ctx = logger.NewContext(ctx, log)
		srw := newStatefulRespWriter(w)

		next.ServeHTTP(srw, r.WithContext(ctx))

		status := srw.status
		if status == 0 {
			status = http.StatusOK
		}
		attrs = append(attrs, attribute.Int("http.response.status", status))
		span.SetAttributes(attrs...)

		requestsCount.Add(ctx, 1, metric.WithAttributes(append(metricLabels,
			attribute.Int("http.response.code", status))...))
		requestTimeHist.Record(ctx, time.Since(reqTime).Milliseconds(), metric.WithAttributes(metricLabels...))
		requestBodyLenHist.Record(ctx, body.n, metric.WithAttributes(metricLabels...))
		responseBodyLenHist.Record(ctx, srw.written, metric.WithAttributes(metricLabels...))
		if status >= 500 {
			span.SetStatus(codes.Error, "")
			return
		}

		span.SetStatus(codes.Ok, "")
	})
}

type countingBody struct {
	io.ReadCloser
	n int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

// statefulRespWriter keeps sent status and body size after WriterHeader/Write calls
type statefulRespWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatefulRespWriter(w http.ResponseWriter) *statefulRespWriter {
	return &statefulRespWriter{ResponseWriter: w}
}

func (w *statefulRespWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statefulRespWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *statefulRespWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statefulRespWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
