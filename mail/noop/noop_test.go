package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/velocity-mailer/mail"
)

func testEmail() mail.Email {
	return mail.Email{
		To:      []mail.Address{{Address: "to@example.com"}},
		Subject: "Test",
		Body:    "Test body",
	}
}

func TestSender_Send(t *testing.T) {
	sender := NewSender()

	res, err := sender.Send(context.Background(), testEmail())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Regexp(t, `^<[0-9a-f-]{36}@noop>$`, res.MessageID)
	require.Len(t, sender.Sent(), 1)
	assert.Equal(t, "Test", sender.Sent()[0].Subject)
}

func TestSender_Send_Invalid(t *testing.T) {
	sender := NewSender()

	email := testEmail()
	email.To = nil
	_, err := sender.Send(context.Background(), email)

	assert.ErrorIs(t, err, mail.ErrNoRecipients)
	assert.Empty(t, sender.Sent())
}

func TestSender_Close(t *testing.T) {
	sender := NewSender()

	assert.NoError(t, sender.Close())
	assert.NoError(t, sender.Close())

	_, err := sender.Send(context.Background(), testEmail())
	assert.Error(t, err)
}
