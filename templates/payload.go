package templates

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// JobAlert lists new jobs matching a saved alert.
type JobAlert struct {
	UserEmail  string     `json:"userEmail" validate:"required"`
	UserName   string     `json:"userName"`
	AlertTitle string     `json:"alertTitle" validate:"required"`
	Jobs       []AlertJob `json:"jobs" validate:"required,min=1,dive"`
}

type AlertJob struct {
	Title          string  `json:"title" validate:"required"`
	Company        string  `json:"company" validate:"required"`
	ApplyLink      string  `json:"applyLink" validate:"required"`
	Location       string  `json:"location"`
	EmploymentType string  `json:"employmentType"`
	Salary         *Salary `json:"salary"`
	IsRemote       bool    `json:"isRemote"`
	Description    string  `json:"description"`
}

// JobApplication forwards an applicant to a recruiter.
type JobApplication struct {
	RecruiterEmail string `json:"recruiterEmail" validate:"required"`
	RecruiterName  string `json:"recruiterName"`
	JobTitle       string `json:"jobTitle" validate:"required"`
	CompanyName    string `json:"companyName"`
	ApplicantName  string `json:"applicantName" validate:"required"`
	ApplicantEmail string `json:"applicantEmail" validate:"required"`
	ApplicantPhone string `json:"applicantPhone"`
	ResumeURL      string `json:"resumeUrl"`
	Message        string `json:"message"`

	// ResumeAttached is set by the caller once the resume was fetched.
	ResumeAttached bool `json:"-"`
}

// MatchingJob announces a single job matching a user's profile.
type MatchingJob struct {
	UserEmail      string  `json:"userEmail" validate:"required"`
	UserName       string  `json:"userName"`
	JobTitle       string  `json:"jobTitle" validate:"required"`
	CompanyName    string  `json:"companyName" validate:"required"`
	ApplyLink      string  `json:"applyLink" validate:"required"`
	JobDescription string  `json:"jobDescription"`
	JobLocation    string  `json:"jobLocation"`
	JobType        string  `json:"jobType"`
	Salary         *Salary `json:"salary"`
	PostedDate     string  `json:"postedDate"`
}

// ProposalApproval tells a student their challenge proposal was accepted.
type ProposalApproval struct {
	StudentEmail   string     `json:"studentEmail" validate:"required"`
	StudentName    string     `json:"studentName"`
	ChallengeTitle string     `json:"challengeTitle" validate:"required"`
	CompanyName    string     `json:"companyName" validate:"required"`
	CorporateName  string     `json:"corporateName"`
	ProposedPrice  FlexNumber `json:"proposedPrice" validate:"required"`
	EstimatedDays  FlexNumber `json:"estimatedDays" validate:"required"`
	Feedback       string     `json:"feedback"`
	ChatRoomID     FlexString `json:"chatRoomId"`
	FrontendURL    string     `json:"frontendUrl"`
}

// VerificationCode delivers a one-time account verification code.
type VerificationCode struct {
	Email string     `json:"email" validate:"required"`
	Code  FlexString `json:"code" validate:"required"`
}

// Salary is either a numeric range or a free-form string such as "Competitive".
type Salary struct {
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Text     string  `json:"-"`
}

func (s *Salary) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		return errors.Wrap(json.Unmarshal(b, &s.Text), "invalid salary")
	}

	type plain Salary
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return errors.Wrap(err, "invalid salary")
	}
	*s = Salary(p)

	return nil
}

// FlexString accepts a JSON string or number, e.g. numeric codes and room IDs.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "invalid string")
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "expected string or number")
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return errors.Wrap(err, "expected string or number")
	}
	*f = FlexString(n.String())

	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexNumber accepts a JSON number or string, e.g. 5000 or "5000".
// A numeric zero decodes as empty so that `required` rejects it; strings are
// kept as sent and rendered verbatim when they are not numeric.
type FlexNumber string

func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "invalid string")
		}
		*f = FlexNumber(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "expected number or string")
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return errors.Wrap(err, "expected number or string")
	}
	if v == 0 {
		*f = ""
		return nil
	}
	*f = FlexNumber(n.String())

	return nil
}

// Float reports the numeric value, false when f is not a finite number.
func (f FlexNumber) Float() (float64, bool) {
	v, err := strconv.ParseFloat(string(bytes.TrimSpace([]byte(f))), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (f FlexNumber) String() string { return string(f) }
