// Package metrics exposes otel instruments (dispatch counters, HTTP timings,
// Go runtime stats) on a Prometheus /metrics endpoint.
package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/pure-golang/velocity-mailer/httpserver"
)

type Config struct {
	Enabled     bool          `envconfig:"METRICS_ENABLED" default:"false"`
	Host        string        `envconfig:"METRICS_HOST"`
	Port        int           `envconfig:"METRICS_PORT" default:"9090"`
	ReadTimeout time.Duration `envconfig:"METRICS_READ_TIMEOUT" default:"30s"`
}

type Metrics struct {
	config   Config
	server   *http.Server
	provider *metric.MeterProvider
	listener net.Listener
}

var (
	_ io.Closer            = (*Metrics)(nil)
	_ httpserver.Addresser = (*Metrics)(nil)
)

// InitDefault installs the Prometheus meter provider and serves /metrics.
// A disabled config yields a closer that does nothing.
func InitDefault(config Config) (io.Closer, error) {
	if !config.Enabled {
		return io.NopCloser(nil), nil
	}

	provider := New(config)
	if err := provider.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}

	return provider, nil
}

func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		server: NewHttpServer(config),
	}
}

// Start binds the listener synchronously so a busy port is reported to the caller.
func (s *Metrics) Start() error {
	provider, err := InitPrometheus()
	if err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}
	s.provider = provider

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

// Addr reports the bound address once started.
func (s *Metrics) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

func (s *Metrics) Close() error {
	err := errors.Wrap(s.server.Close(), "failed to close metrics")
	if s.provider != nil {
		if shutdownErr := s.provider.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = errors.Wrap(shutdownErr, "failed to shutdown meter provider")
		}
	}

	return err
}

func NewHttpServer(conf Config) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           r,
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
