package api

import (
	"context"

	"github.com/pure-golang/velocity-mailer/logger"
	"github.com/pure-golang/velocity-mailer/mail"
	"github.com/pure-golang/velocity-mailer/resume"
	"github.com/pure-golang/velocity-mailer/templates"
)

func message(r templates.Rendered, to string, attachments ...mail.Attachment) mail.Email {
	return mail.Email{
		From:        mail.Address{Name: r.FromName},
		To:          []mail.Address{{Address: to}},
		Subject:     r.Subject,
		Body:        r.Text,
		HTML:        r.HTML,
		Attachments: attachments,
	}
}

func (h *Handler) composeJobAlert(_ context.Context, p *templates.JobAlert) (mail.Email, error) {
	r, err := h.renderer.JobAlert(*p)
	if err != nil {
		return mail.Email{}, err
	}
	return message(r, p.UserEmail), nil
}

// composeJobApplication attaches the resume when it can be fetched. A failed
// fetch is logged and the application is sent without it.
func (h *Handler) composeJobApplication(ctx context.Context, p *templates.JobApplication) (mail.Email, error) {
	var attachments []mail.Attachment
	if p.ResumeURL != "" && h.resumes != nil {
		data, err := h.resumes.Fetch(ctx, p.ResumeURL)
		if err != nil {
			logger.FromContextWithErr(ctx, err).Warn("could not fetch resume, sending without attachment")
		} else {
			attachments = append(attachments, resume.Attachment(p.ApplicantName, data))
			p.ResumeAttached = true
		}
	}

	r, err := h.renderer.JobApplication(*p)
	if err != nil {
		return mail.Email{}, err
	}
	return message(r, p.RecruiterEmail, attachments...), nil
}

func (h *Handler) composeMatchingJob(_ context.Context, p *templates.MatchingJob) (mail.Email, error) {
	r, err := h.renderer.MatchingJob(*p)
	if err != nil {
		return mail.Email{}, err
	}
	return message(r, p.UserEmail), nil
}

func (h *Handler) composeProposalApproval(_ context.Context, p *templates.ProposalApproval) (mail.Email, error) {
	r, err := h.renderer.ProposalApproval(*p)
	if err != nil {
		return mail.Email{}, err
	}
	return message(r, p.StudentEmail), nil
}

func (h *Handler) composeVerificationCode(_ context.Context, p *templates.VerificationCode) (mail.Email, error) {
	r, err := h.renderer.VerificationCode(*p)
	if err != nil {
		return mail.Email{}, err
	}
	return message(r, p.Email), nil
}
