package sip

import "log/slog"

var (
	defLogger *slog.Logger
)

// SetDefaultLogger sets default logger that will be used withing sip package
// Must be called before any usage of library
func SetDefaultLogger(l *slog.Logger) {
	defLogger = l
}

func DefaultLogger() *slog.Logger {
	if defLogger != nil {
		return defLogger
	}
	return slog.Default()
}

// ComponentLogger tags a logger with the component emitting through it,
// so log lines from multiple layers (or multiple named stacks) stay
// attributable once interleaved.
func ComponentLogger(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = DefaultLogger()
	}
	return l.With("caller", component)
}
