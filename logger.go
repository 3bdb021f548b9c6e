package wire

import "log/slog"

// Logger is the structured logging interface used by connections and the
// server. *slog.Logger satisfies it directly; applications with a different
// logging stack can supply a thin adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.Default()
}
