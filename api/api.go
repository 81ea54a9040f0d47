// Package api exposes the transactional email endpoints over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pure-golang/velocity-mailer/apikey"
	"github.com/pure-golang/velocity-mailer/httpserver/middleware"
	"github.com/pure-golang/velocity-mailer/mail"
	"github.com/pure-golang/velocity-mailer/resume"
	"github.com/pure-golang/velocity-mailer/templates"
)

const (
	HealthRoute           = "/api/health"
	JobAlertRoute         = "/api/send-job-alert"
	JobApplicationRoute   = "/api/send-job-application"
	MatchingJobRoute      = "/api/send-matching-job"
	ProposalApprovalRoute = "/api/send-proposal-approval"
	VerificationCodeRoute = "/api/send-verification"

	DefaultServiceName = "velocity-email-service"
	MaxBodyBytes       = 1 << 20
)

// SendRoutes lists every endpoint that dispatches mail, in the order reported by the health check.
var SendRoutes = []string{
	JobAlertRoute,
	JobApplicationRoute,
	MatchingJobRoute,
	ProposalApprovalRoute,
	VerificationCodeRoute,
}

type Options struct {
	Sender   mail.Sender
	Renderer *templates.Renderer
	Resumes  resume.Fetcher
	Gate     *apikey.Gate

	// ServiceName is reported by the health check.
	ServiceName string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler serves the send endpoints. It holds no per-request state.
type Handler struct {
	sender   mail.Sender
	renderer *templates.Renderer
	resumes  resume.Fetcher
	gate     *apikey.Gate
	validate *validator.Validate
	service  string
	now      func() time.Time
}

func New(o Options) *Handler {
	h := &Handler{
		sender:   o.Sender,
		renderer: o.Renderer,
		resumes:  o.Resumes,
		gate:     o.Gate,
		validate: newValidator(),
		service:  o.ServiceName,
		now:      o.Now,
	}
	if h.service == "" {
		h.service = DefaultServiceName
	}
	if h.now == nil {
		h.now = time.Now
	}

	return h
}

// Routes mounts every endpoint on a chi router wrapped in monitoring and panic recovery.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Monitoring, middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	r.With(middleware.CORS(http.MethodGet)).HandleFunc(HealthRoute, h.health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(http.MethodPost))

		r.HandleFunc(JobAlertRoute, handle(h, "job_alert", h.composeJobAlert))
		r.HandleFunc(JobApplicationRoute, handle(h, "job_application", h.composeJobApplication))
		r.HandleFunc(MatchingJobRoute, handle(h, "matching_job", h.composeMatchingJob))
		r.HandleFunc(ProposalApprovalRoute, handle(h, "proposal_approval", h.composeProposalApproval))
		r.HandleFunc(VerificationCodeRoute, handle(h, "verification", h.composeVerificationCode))
	})

	return r
}
