package smtp

import (
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

// negotiateAuth picks a mechanism from the relay's AUTH parameters.
// PLAIN wins when offered, LOGIN is the fallback.
func (c TransportConfig) negotiateAuth(params string) (smtp.Auth, error) {
	offered := make(map[string]bool)
	for _, m := range strings.Fields(strings.ToUpper(params)) {
		offered[m] = true
	}

	switch {
	case offered["PLAIN"]:
		return &plainAuth{username: c.Username, password: c.Password, host: c.Host, requireTLS: c.RequireTLSAuth}, nil
	case offered["LOGIN"]:
		return &loginAuth{username: c.Username, password: c.Password, host: c.Host, requireTLS: c.RequireTLSAuth}, nil
	default:
		return nil, errors.Errorf("no supported AUTH mechanism in %q", params)
	}
}

// plainAuth implements PLAIN. Unlike smtp.PlainAuth it sends credentials
// over an unencrypted session unless requireTLS is set.
type plainAuth struct {
	username   string
	password   string
	host       string
	requireTLS bool
}

func (a *plainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if err := checkServer(server, a.host, a.requireTLS); err != nil {
		return "", nil, err
	}

	return "PLAIN", []byte("\x00" + a.username + "\x00" + a.password), nil
}

func (a *plainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.Errorf("unexpected PLAIN challenge: %s", fromServer)
	}

	return nil, nil
}

// loginAuth implements LOGIN.
type loginAuth struct {
	username   string
	password   string
	host       string
	requireTLS bool
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if err := checkServer(server, a.host, a.requireTLS); err != nil {
		return "", nil, err
	}

	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
	case "username:", "user:", "user name":
		return []byte(a.username), nil
	case "password:", "pass:", "password":
		return []byte(a.password), nil
	default:
		return nil, errors.Errorf("unexpected LOGIN challenge: %s", fromServer)
	}
}

func checkServer(server *smtp.ServerInfo, host string, requireTLS bool) error {
	if server.Name != host {
		return errors.Errorf("unexpected server name %s", server.Name)
	}
	if requireTLS && !server.TLS && !isLocalhost(server.Name) {
		return errors.New("refusing to send credentials over an unencrypted connection")
	}

	return nil
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}
