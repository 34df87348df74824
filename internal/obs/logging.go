// Package obs contains observability utilities such as logging.
package obs

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the global structured logger used by the service.
//
// Logger is usable before InitLogger is called so that packages logging from
// tests do not need to initialise it.
var Logger = newLogger(os.Stdout)

// InitLogger initializes the global Logger with JSON handler at info level.
func InitLogger() {
	Logger = newLogger(os.Stdout)
}

// SetOutput redirects the global Logger to w and returns a function restoring
// the previous logger.
func SetOutput(w io.Writer) (restore func()) {
	prev := Logger
	Logger = newLogger(w)
	return func() { Logger = prev }
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
