package smtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_Defaults(t *testing.T) {
	tc := Build(Config{Username: "jobs@velocity.dev", Password: "app-password"})

	assert.Equal(t, "smtp.gmail.com", tc.Host)
	assert.Equal(t, 587, tc.Port)
	assert.False(t, tc.ImplicitTLS)
	assert.Equal(t, "smtp.gmail.com:587", tc.Addr())
	assert.Equal(t, "jobs@velocity.dev", tc.Username)
	assert.Equal(t, "app-password", tc.Password)
}

func TestBuild_ImplicitTLSOnlyOn465(t *testing.T) {
	for port, implicit := range map[int]bool{465: true, 587: false, 25: false, 2525: false} {
		tc := Build(Config{Host: "mail.example.com", Port: port})
		assert.Equal(t, implicit, tc.ImplicitTLS, "port %d", port)
	}
}

func TestBuild_FixedTimeouts(t *testing.T) {
	tc := Build(Config{Host: "mail.example.com", Port: 465})

	assert.Equal(t, ConnectTimeout, tc.ConnectTimeout)
	assert.Equal(t, GreetingTimeout, tc.GreetingTimeout)
	assert.Equal(t, SocketTimeout, tc.SocketTimeout)
	assert.Equal(t, "30s", tc.ConnectTimeout.String())
	assert.Equal(t, "15s", tc.GreetingTimeout.String())
	assert.Equal(t, "30s", tc.SocketTimeout.String())
}

func TestBuild_RelaxedCertificatesByDefault(t *testing.T) {
	relaxed := Build(Config{Host: "mail.example.com"})
	assert.True(t, relaxed.TLS.InsecureSkipVerify)
	assert.Equal(t, "mail.example.com", relaxed.TLS.ServerName)
	assert.False(t, relaxed.RequireTLSAuth)

	strict := Build(Config{Host: "mail.example.com", Strict: true})
	assert.False(t, strict.TLS.InsecureSkipVerify)
	assert.True(t, strict.RequireTLSAuth)
}

func TestBuild_FreshTLSConfigPerCall(t *testing.T) {
	cfg := Config{Host: "mail.example.com"}
	assert.NotSame(t, Build(cfg).TLS, Build(cfg).TLS)
}

func TestConfig_Account(t *testing.T) {
	assert.Equal(t, "user@example.com", Config{Username: "user@example.com"}.Account())
	assert.Equal(t, "noreply@example.com", Config{Username: "user@example.com", From: "noreply@example.com"}.Account())
	assert.Empty(t, Config{}.Account())
}
