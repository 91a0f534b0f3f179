package types

import "log/slog"

// slogAdapter wraps *slog.Logger to implement Logger.
type slogAdapter struct {
	logger *slog.Logger
}

// NewSlogLogger adapts l to the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogAdapter{logger: l}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ Logger = (*slogAdapter)(nil)
