package mail

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestEmail_Validate(t *testing.T) {
	valid := Email{
		To:      []Address{{Address: "user@example.com"}},
		Subject: "Verify Your Fellowship Account",
		Body:    "code",
	}

	tests := []struct {
		name    string
		mutate  func(e *Email)
		wantErr error
	}{
		{name: "valid", mutate: func(e *Email) {}},
		{name: "html only", mutate: func(e *Email) { e.Body, e.HTML = "", "<p>code</p>" }},
		{name: "no recipients", mutate: func(e *Email) { e.To = nil }, wantErr: ErrNoRecipients},
		{name: "empty recipient", mutate: func(e *Email) { e.To = []Address{{Name: "x"}} }, wantErr: ErrNoRecipients},
		{name: "no subject", mutate: func(e *Email) { e.Subject = "" }, wantErr: ErrNoSubject},
		{name: "no body", mutate: func(e *Email) { e.Body = "" }, wantErr: ErrNoBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)

			err := e.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindInvalidMessage, KindOf(err))
		})
	}
}

func TestDeliveryError(t *testing.T) {
	cause := errors.New("535 5.7.8 Username and Password not accepted")
	err := errors.Wrap(&DeliveryError{Kind: KindUnauthenticated, Err: cause}, "verify failed")

	assert.Equal(t, KindUnauthenticated, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Username and Password not accepted")

	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, "rejected", (&DeliveryError{Kind: KindRejected}).Error())
}
