package templates

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

const (
	JobsFromName        = "Velocity Jobs"
	FellowshipsFromName = "Velocity Fellowships"

	DefaultFrontendURL = "http://localhost:5173"

	// VerificationTTL is announced in verification emails; the code itself is issued elsewhere.
	VerificationTTL = 10 * time.Minute

	defaultGreeting  = "there"
	defaultRecruiter = "Hiring Manager"
	rupee            = "₹"
)

//go:embed html/*.html text/*.txt
var files embed.FS

// Rendered is a composed email ready for dispatch.
type Rendered struct {
	FromName string
	Subject  string
	HTML     string
	Text     string
}

type Options struct {
	// FrontendURL is the fallback base for links into the web app.
	FrontendURL string
	// Now supplies the copyright year. Defaults to time.Now.
	Now func() time.Time
}

// Renderer turns payloads into emails. It is safe for concurrent use.
type Renderer struct {
	html        *htmltemplate.Template
	text        *texttemplate.Template
	policy      *bluemonday.Policy
	frontendURL string
	now         func() time.Time
}

func New(o Options) (*Renderer, error) {
	html, err := htmltemplate.New("").ParseFS(files, "html/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse html templates")
	}

	text, err := texttemplate.New("").ParseFS(files, "text/*.txt")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse text templates")
	}

	r := &Renderer{
		html:        html,
		text:        text,
		policy:      newPolicy(),
		frontendURL: strings.TrimRight(o.FrontendURL, "/"),
		now:         o.Now,
	}
	if r.frontendURL == "" {
		r.frontendURL = DefaultFrontendURL
	}
	if r.now == nil {
		r.now = time.Now
	}

	return r, nil
}

func (r *Renderer) render(name string, data any, rendered *Rendered) error {
	var buf bytes.Buffer
	if err := r.html.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return errors.Wrapf(err, "failed to render %s html", name)
	}
	rendered.HTML = buf.String()

	buf.Reset()
	if err := r.text.ExecuteTemplate(&buf, name+".txt", data); err != nil {
		return errors.Wrapf(err, "failed to render %s text", name)
	}
	rendered.Text = buf.String()

	return nil
}

func (r *Renderer) year() int {
	return r.now().Year()
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

type alertJobView struct {
	Index     int
	Title     string
	Company   string
	Details   string
	Summary   string
	ApplyLink string
}

type jobAlertView struct {
	UserName   string
	AlertTitle string
	Count      int
	JobsWord   string
	Jobs       []alertJobView
	Year       int
}

func (r *Renderer) JobAlert(p JobAlert) (Rendered, error) {
	v := jobAlertView{
		UserName:   orDefault(p.UserName, defaultGreeting),
		AlertTitle: p.AlertTitle,
		Count:      len(p.Jobs),
		JobsWord:   Plural(len(p.Jobs), "job"),
		Jobs:       make([]alertJobView, 0, len(p.Jobs)),
		Year:       r.year(),
	}

	for i, job := range p.Jobs {
		salary, _ := FormatSalary(job.Salary)
		remote := ""
		if job.IsRemote {
			remote = "Remote"
		}

		summary := ""
		if d := strings.TrimSpace(job.Description); d != "" {
			summary = Truncate(d, SummaryLength)
		}

		v.Jobs = append(v.Jobs, alertJobView{
			Index:     i + 1,
			Title:     job.Title,
			Company:   job.Company,
			Details:   joinDetails(job.Location, job.EmploymentType, salary, remote),
			Summary:   summary,
			ApplyLink: job.ApplyLink,
		})
	}

	out := Rendered{
		FromName: JobsFromName,
		Subject:  "🎯 " + strconv.Itoa(v.Count) + " New " + Plural(v.Count, "Job") + ` Matching "` + p.AlertTitle + `"`,
	}
	if err := r.render("job_alert", v, &out); err != nil {
		return Rendered{}, err
	}

	return out, nil
}

type jobApplicationView struct {
	RecruiterName  string
	JobTitle       string
	CompanyName    string
	ApplicantName  string
	ApplicantEmail string
	ApplicantPhone string
	Message        htmltemplate.HTML
	MessageText    string
	ResumeAttached bool
	Year           int
}

func (r *Renderer) JobApplication(p JobApplication) (Rendered, error) {
	v := jobApplicationView{
		RecruiterName:  orDefault(p.RecruiterName, defaultRecruiter),
		JobTitle:       p.JobTitle,
		CompanyName:    strings.TrimSpace(p.CompanyName),
		ApplicantName:  p.ApplicantName,
		ApplicantEmail: p.ApplicantEmail,
		ApplicantPhone: strings.TrimSpace(p.ApplicantPhone),
		Message:        richText(r.policy, p.Message),
		MessageText:    strings.TrimSpace(p.Message),
		ResumeAttached: p.ResumeAttached,
		Year:           r.year(),
	}

	// sent from the bare account mailbox, no display name
	out := Rendered{
		Subject: "Job Application for " + p.JobTitle + " - " + p.ApplicantName,
	}
	if err := r.render("job_application", v, &out); err != nil {
		return Rendered{}, err
	}

	return out, nil
}

type matchingJobView struct {
	UserName    string
	JobTitle    string
	CompanyName string
	Details     string
	Summary     string
	Posted      string
	ApplyLink   string
	Year        int
}

func (r *Renderer) MatchingJob(p MatchingJob) (Rendered, error) {
	salary, _ := FormatSalary(p.Salary)

	v := matchingJobView{
		UserName:    orDefault(p.UserName, defaultGreeting),
		JobTitle:    p.JobTitle,
		CompanyName: p.CompanyName,
		Details:     joinDetails(p.JobLocation, p.JobType, salary),
		ApplyLink:   p.ApplyLink,
		Year:        r.year(),
	}
	if d := strings.TrimSpace(p.JobDescription); d != "" {
		v.Summary = Truncate(d, SummaryLength)
	}
	if d := strings.TrimSpace(p.PostedDate); d != "" {
		v.Posted = FormatPostedDate(d)
	}

	out := Rendered{
		FromName: JobsFromName,
		Subject:  "🎯 New Job Match: " + p.JobTitle + " at " + p.CompanyName,
	}
	if err := r.render("matching_job", v, &out); err != nil {
		return Rendered{}, err
	}

	return out, nil
}

type proposalView struct {
	StudentName     string
	ChallengeTitle  string
	CompanyName     string
	CorporateName   string
	Price           string
	Timeline        string
	Feedback        htmltemplate.HTML
	FeedbackText    string
	ConversationURL string
	Year            int
}

func (r *Renderer) ProposalApproval(p ProposalApproval) (Rendered, error) {
	v := proposalView{
		StudentName:     orDefault(p.StudentName, defaultGreeting),
		ChallengeTitle:  p.ChallengeTitle,
		CompanyName:     p.CompanyName,
		CorporateName:   orDefault(p.CorporateName, p.CompanyName),
		Price:           FormatPrice(rupee, p.ProposedPrice),
		Timeline:        FormatDays(p.EstimatedDays),
		Feedback:        richText(r.policy, p.Feedback),
		FeedbackText:    strings.TrimSpace(p.Feedback),
		ConversationURL: r.conversationURL(p),
		Year:            r.year(),
	}

	out := Rendered{
		FromName: FellowshipsFromName,
		Subject:  "🎉 Congratulations! Your Proposal Has Been Accepted",
	}
	if err := r.render("proposal_approval", v, &out); err != nil {
		return Rendered{}, err
	}

	return out, nil
}

func (r *Renderer) conversationURL(p ProposalApproval) string {
	base := strings.TrimRight(strings.TrimSpace(p.FrontendURL), "/")
	if base == "" {
		base = r.frontendURL
	}
	return base + "/fellowship/messages/" + url.PathEscape(p.ChatRoomID.String())
}

type verificationView struct {
	Code    string
	Minutes int
	Year    int
}

func (r *Renderer) VerificationCode(p VerificationCode) (Rendered, error) {
	v := verificationView{
		Code:    p.Code.String(),
		Minutes: int(VerificationTTL / time.Minute),
		Year:    r.year(),
	}

	out := Rendered{
		FromName: FellowshipsFromName,
		Subject:  "Verify Your Fellowship Account",
	}
	if err := r.render("verification", v, &out); err != nil {
		return Rendered{}, err
	}

	return out, nil
}
