package smtp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/velocity-mailer/logger"
	"github.com/pure-golang/velocity-mailer/mail"
)

func init() {
	logger.InitDefault(logger.Config{
		Provider: logger.ProviderNoop,
		Level:    logger.INFO,
	})
}

func verificationEmail() mail.Email {
	return mail.Email{
		From:    mail.Address{Name: "Velocity Fellowships", Address: "spoofed@evil.example"},
		To:      []mail.Address{{Address: "student@example.com"}},
		Subject: "Verify Your Fellowship Account",
		Body:    "Your Velocity verification code is: 482913",
		HTML:    "<span>482913</span>",
	}
}

func TestSender_Send_Success(t *testing.T) {
	server := startTestServer(t)
	sender := NewSender(server.config(), nil)
	defer sender.Close()

	res, err := sender.Send(context.Background(), verificationEmail())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Regexp(t, `^<[0-9a-f-]{36}@velocity\.dev>$`, res.MessageID)

	require.Eventually(t, func() bool { return len(server.sent()) == 1 }, time.Second, 10*time.Millisecond)
	msg := server.sent()[0]
	assert.Contains(t, msg, `From: "Velocity Fellowships" <jobs@velocity.dev>`)
	assert.Contains(t, msg, "Message-ID: "+res.MessageID)
	assert.NotContains(t, msg, "spoofed@evil.example")

	assert.True(t, server.sawCommand("MAIL FROM:<JOBS@VELOCITY.DEV>"))
	assert.True(t, server.sawCommand("RCPT TO:<STUDENT@EXAMPLE.COM>"))
	assert.False(t, server.sawCommand("AUTH"), "no credentials configured")
}

func TestSender_Send_EnvelopeUsesUsernameWithoutFrom(t *testing.T) {
	server := startTestServer(t, withAuth(true))
	cfg := server.config()
	cfg.From = ""
	cfg.Username = "account@velocity.dev"
	cfg.Password = "secret"

	res, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.MessageID, "@velocity.dev>"))
	assert.True(t, server.sawCommand("AUTH PLAIN"))
	assert.Equal(t, "account@velocity.dev", server.authenticatedAs())
	assert.True(t, server.sawCommand("MAIL FROM:<ACCOUNT@VELOCITY.DEV>"))
}

func TestSender_Send_WithAttachment(t *testing.T) {
	server := startTestServer(t)
	sender := NewSender(server.config(), nil)

	email := verificationEmail()
	email.Attachments = []mail.Attachment{
		{Filename: "Jane_Doe_Resume.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
	}

	_, err := sender.Send(context.Background(), email)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(server.sent()) == 1 }, time.Second, 10*time.Millisecond)
	msg := server.sent()[0]
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, `filename=Jane_Doe_Resume.pdf`)
}

func TestSender_Send_LoginOnlyRelay(t *testing.T) {
	server := startTestServer(t, withAuthMechanisms("LOGIN"))
	cfg := server.config()
	cfg.Username = "jobs@velocity.dev"
	cfg.Password = "app-password"

	res, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, server.sawCommand("AUTH LOGIN"))
	assert.False(t, server.sawCommand("AUTH PLAIN"))
	assert.Equal(t, "jobs@velocity.dev", server.authenticatedAs())
	require.Eventually(t, func() bool { return len(server.sent()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSender_Send_NoCommonAuthMechanism(t *testing.T) {
	server := startTestServer(t, withAuthMechanisms("CRAM-MD5"))
	cfg := server.config()
	cfg.Username = "jobs@velocity.dev"
	cfg.Password = "app-password"

	_, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Equal(t, mail.KindUnauthenticated, mail.KindOf(err))
	assert.Contains(t, err.Error(), "no supported AUTH mechanism")
	assert.False(t, server.sawCommand("AUTH"))
	assert.False(t, server.sawCommand("MAIL FROM"))
}

func TestSender_Send_AuthenticationRejected(t *testing.T) {
	server := startTestServer(t, withAuth(false))
	cfg := server.config()
	cfg.Username = "jobs@velocity.dev"
	cfg.Password = "wrong"

	_, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Equal(t, mail.KindUnauthenticated, mail.KindOf(err))
	assert.Contains(t, err.Error(), "Username and Password not accepted")
	assert.False(t, server.sawCommand("MAIL FROM"), "send must not be attempted after a failed verify")
	assert.Empty(t, server.sent())
}

func TestSender_Send_AuthNotOffered(t *testing.T) {
	server := startTestServer(t)
	cfg := server.config()
	cfg.Username = "jobs@velocity.dev"

	_, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Equal(t, mail.KindUnauthenticated, mail.KindOf(err))
	assert.False(t, server.sawCommand("MAIL FROM"))
}

func TestSender_Send_RecipientRejected(t *testing.T) {
	server := startTestServer(t, withRejectedRecipients())

	_, err := NewSender(server.config(), nil).Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Equal(t, mail.KindRejected, mail.KindOf(err))
	assert.Contains(t, err.Error(), "550")
	assert.Empty(t, server.sent())
}

func TestSender_Send_Unreachable(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: closedPort(t), From: "jobs@velocity.dev"}

	_, err := NewSender(cfg, nil).Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Equal(t, mail.KindUnreachable, mail.KindOf(err))
}

func TestSender_Send_MalformedRecipient(t *testing.T) {
	server := startTestServer(t)
	email := verificationEmail()
	email.To = []mail.Address{{Address: "not-an-email"}}

	_, err := NewSender(server.config(), nil).Send(context.Background(), email)

	require.Error(t, err)
	assert.Equal(t, mail.KindInvalidMessage, mail.KindOf(err))
	assert.Contains(t, err.Error(), "not-an-email")
	assert.Zero(t, server.connections(), "no network attempt for an invalid message")
}

func TestSender_Send_IncompleteMessage(t *testing.T) {
	server := startTestServer(t)
	sender := NewSender(server.config(), nil)

	email := verificationEmail()
	email.Subject = ""
	_, err := sender.Send(context.Background(), email)
	assert.ErrorIs(t, err, mail.ErrNoSubject)

	email = verificationEmail()
	email.To = nil
	_, err = sender.Send(context.Background(), email)
	assert.ErrorIs(t, err, mail.ErrNoRecipients)

	assert.Zero(t, server.connections())
}

func TestSender_Send_NoAccount(t *testing.T) {
	_, err := NewSender(Config{Host: "127.0.0.1", Port: 2525}, nil).Send(context.Background(), verificationEmail())

	assert.ErrorIs(t, err, mail.ErrNoFrom)
}

func TestSender_Send_WhenClosed(t *testing.T) {
	sender := NewSender(Config{Host: "127.0.0.1", Port: 2525, From: "jobs@velocity.dev"}, nil)
	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())

	_, err := sender.Send(context.Background(), verificationEmail())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestSender_Send_ConcurrentDispatchesAreIndependent(t *testing.T) {
	server := startTestServer(t)
	sender := NewSender(server.config(), nil)

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			email := verificationEmail()
			email.To = []mail.Address{{Address: fmt.Sprintf("student%d@example.com", i)}}
			res, err := sender.Send(context.Background(), email)
			ids[i], errs[i] = res.MessageID, err
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range n {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate message id")
		seen[ids[i]] = true
	}
	assert.Equal(t, n, server.connections(), "one session per dispatch")
}
