package book

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger replaces the package logger, e.g. to attach the host's handler.
func SetLogger(l *slog.Logger) {
	logger = l
}
