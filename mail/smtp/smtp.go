package smtp

import (
	"crypto/tls"
	"fmt"
	"time"
)

const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587

	// ImplicitTLSPort is the only port dialled with TLS from the first byte.
	ImplicitTLSPort = 465

	ConnectTimeout  = 30 * time.Second
	GreetingTimeout = 15 * time.Second
	SocketTimeout   = 30 * time.Second
)

// Config contains SMTP connection parameters.
type Config struct {
	Host     string `envconfig:"EMAIL_HOST" default:"smtp.gmail.com"`      // smtp.gmail.com
	Port     int    `envconfig:"EMAIL_PORT" default:"587"`                 // 587 for STARTTLS, 465 for implicit TLS
	Username string `envconfig:"EMAIL_USER"`                               // account used for AUTH and as envelope sender
	Password string `envconfig:"EMAIL_PASS"`                               // password or app password
	From     string `envconfig:"EMAIL_FROM"`                               // mailbox override, defaults to Username
	Strict   bool   `envconfig:"EMAIL_TLS_STRICT" default:"false"`         // verify server certificates
}

// Account returns the mailbox used as envelope sender and From address.
func (c Config) Account() string {
	if c.From != "" {
		return c.From
	}

	return c.Username
}

// TransportConfig is a fully resolved description of one SMTP session.
type TransportConfig struct {
	Host        string
	Port        int
	ImplicitTLS bool
	Username    string
	Password    string

	// RequireTLSAuth refuses AUTH over an unencrypted session to a remote host.
	RequireTLSAuth bool

	ConnectTimeout  time.Duration
	GreetingTimeout time.Duration
	SocketTimeout   time.Duration

	TLS *tls.Config
}

// Build resolves c into a TransportConfig.
//
// Certificate verification is disabled unless c.Strict is set, so relays with
// self-signed or mismatched chains are accepted. This is a known weakness kept
// for compatibility with existing relay setups.
func Build(c Config) TransportConfig {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	return TransportConfig{
		Host:            host,
		Port:            port,
		ImplicitTLS:     port == ImplicitTLSPort,
		Username:        c.Username,
		Password:        c.Password,
		RequireTLSAuth:  c.Strict,
		ConnectTimeout:  ConnectTimeout,
		GreetingTimeout: GreetingTimeout,
		SocketTimeout:   SocketTimeout,
		TLS: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: !c.Strict, // #nosec G402 -- relaxed unless EMAIL_TLS_STRICT
			MinVersion:         tls.VersionTLS12,
		},
	}
}

func (c TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
