// Package devslog renders colourised, human-oriented logs for local development.
package devslog

import (
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
)

func NewDefault(level slog.Level) *slog.Logger {
	return New(os.Stdout, level)
}

// New writes pretty records to w. Request bodies never reach the logger, so
// slice and map previews stay short.
func New(w io.Writer, level slog.Level) *slog.Logger {
	opts := &devslog.Options{
		HandlerOptions: &slog.HandlerOptions{
			AddSource: level <= slog.LevelDebug,
			Level:     level,
		},
		NewLineAfterLog:    true,
		MaxErrorStackTrace: 20,
		MaxSlicePrintSize:  10,
		SortKeys:           true,
		TimeFormat:         "[15:04:05.000]",
		DebugColor:         devslog.Magenta,
		StringerFormatter:  true,
	}

	return slog.New(devslog.NewHandler(w, opts))
}
