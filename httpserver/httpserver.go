// Package httpserver defines the lifecycle contract shared by the API and
// metrics listeners.
package httpserver

import "io"

// Provider blocks in Start until the server stops; Close drains in-flight requests.
type Provider interface {
	Start() error
	io.Closer
}

// Runner starts serving in the background.
type Runner interface {
	Run()
}

// Addresser reports the bound address once listening, the configured one before.
type Addresser interface {
	Addr() string
}

// RunableProvider is what cmd/mailer drives: start in the background,
// report where it listens, close on shutdown.
type RunableProvider interface {
	Provider
	Runner
	Addresser
}
