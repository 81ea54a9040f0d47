// Package apikey guards send endpoints with a shared secret header.
package apikey

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
)

// Header carries the shared secret on every send request.
const Header = "X-API-KEY"

type Config struct {
	Key string `envconfig:"EMAIL_API_KEY"`
}

// Verify reports whether presented matches expected.
// An empty expected key never authorizes anything.
func Verify(presented, expected string) bool {
	if expected == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// Gate checks requests against the configured key.
type Gate struct {
	key    string
	logger *slog.Logger
	warn   sync.Once
}

func New(c Config) *Gate {
	return &Gate{
		key:    c.Key,
		logger: slog.Default().WithGroup("apikey"),
	}
}

// Allow reports whether r presents the configured key.
func (g *Gate) Allow(r *http.Request) bool {
	if g.key == "" {
		g.warn.Do(func() {
			g.logger.Error("EMAIL_API_KEY not configured, rejecting all requests")
		})
		return false
	}

	return Verify(r.Header.Get(Header), g.key)
}
