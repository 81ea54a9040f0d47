// Command mailer serves the Velocity transactional email API.
package main

import (
	"context"
	stdErr "errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/pure-golang/velocity-mailer/api"
	"github.com/pure-golang/velocity-mailer/apikey"
	"github.com/pure-golang/velocity-mailer/env"
	"github.com/pure-golang/velocity-mailer/httpserver"
	"github.com/pure-golang/velocity-mailer/httpserver/std"
	"github.com/pure-golang/velocity-mailer/logger"
	"github.com/pure-golang/velocity-mailer/mail"
	"github.com/pure-golang/velocity-mailer/mail/noop"
	"github.com/pure-golang/velocity-mailer/mail/ses"
	"github.com/pure-golang/velocity-mailer/mail/smtp"
	"github.com/pure-golang/velocity-mailer/metrics"
	"github.com/pure-golang/velocity-mailer/resume"
	"github.com/pure-golang/velocity-mailer/templates"
	"github.com/pure-golang/velocity-mailer/tracing"
	"github.com/pure-golang/velocity-mailer/tracing/jaeger"
)

const (
	ProviderSMTP = "smtp"
	ProviderSES  = "ses"
	ProviderNoop = "noop"
)

type Config struct {
	Provider    string `envconfig:"EMAIL_PROVIDER" default:"smtp"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"velocity-email-service"`

	Logger  logger.Config
	Server  std.Config
	SMTP    smtp.Config
	SES     ses.Config
	APIKey  apikey.Config
	Resume  resume.Config
	Metrics metrics.Config
	Tracing jaeger.Config
}

func main() {
	if err := run(); err != nil {
		slog.Default().Error("mailer stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := env.InitConfig(&cfg); err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	logger.InitDefault(cfg.Logger)
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer

	if cfg.Tracing.Enabled {
		provider, err := tracing.Init(jaeger.NewProviderBuilder(cfg.Tracing))
		if err != nil {
			log.Warn("tracing disabled", "error", err.Error())
		}
		closers = append(closers, provider)
	}

	m, err := metrics.InitDefault(cfg.Metrics)
	if err != nil {
		return errors.Wrap(err, "failed to init metrics")
	}
	closers = append(closers, m)
	if a, ok := m.(httpserver.Addresser); ok {
		log.Info("metrics listening", "addr", a.Addr())
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		return err
	}

	handler, err := newHandler(cfg, sender)
	if err != nil {
		return err
	}

	var server httpserver.RunableProvider = std.NewDefault(cfg.Server, handler.Routes())
	server.Run()

	log.Info("mailer started",
		"addr", server.Addr(),
		"provider", cfg.Provider,
		"api_key_configured", cfg.APIKey.Key != "",
	)

	<-ctx.Done()
	log.Info("shutting down")

	// server first so in-flight requests finish before their sender goes away
	closers = append([]io.Closer{server, sender}, closers...)

	return shutdown(closers)
}

func newSender(ctx context.Context, cfg Config) (mail.Sender, error) {
	switch cfg.Provider {
	case ProviderSMTP, "":
		return smtp.NewSender(cfg.SMTP, nil), nil
	case ProviderSES:
		if cfg.SES.From == "" {
			cfg.SES.From = cfg.SMTP.Account()
		}
		s, err := ses.New(ctx, cfg.SES)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create SES sender")
		}
		return s, nil
	case ProviderNoop:
		return noop.NewSender(), nil
	default:
		return nil, errors.Errorf("unknown EMAIL_PROVIDER %q", cfg.Provider)
	}
}

func newHandler(cfg Config, sender mail.Sender) (*api.Handler, error) {
	renderer, err := templates.New(templates.Options{FrontendURL: cfg.FrontendURL})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init templates")
	}

	return api.New(api.Options{
		Sender:      sender,
		Renderer:    renderer,
		Resumes:     resume.NewFetcher(cfg.Resume, nil),
		Gate:        apikey.New(cfg.APIKey),
		ServiceName: cfg.ServiceName,
	}), nil
}

func shutdown(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return stdErr.Join(errs...)
}
