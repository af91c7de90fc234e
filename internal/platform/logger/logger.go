package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive it via options and
// attach their own attrs; nothing logs through the global default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
