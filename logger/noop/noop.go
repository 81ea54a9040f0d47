// Package noop provides a logger that drops every record, for tests.
package noop

import (
	"log/slog"
)

func NewNoop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
