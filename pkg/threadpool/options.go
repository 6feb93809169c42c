package threadpool

import (
	"context"
	"log/slog"
)

type config struct {
	logger  *slog.Logger
	onPanic func(any)
}

func defaultConfig() config {
	return config{
		logger: slog.New(disabledSlogHandler{}),
	}
}

// Option configures a Pool.
type Option func(*config)

// WithLogger sets the logger for lifecycle events. Logging is off by default
// and a nil logger keeps it off.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPanicHandler recovers task panics and passes the value to fn.
// Without it a panicking task crashes the process.
func WithPanicHandler(fn func(any)) Option {
	return func(c *config) { c.onPanic = fn }
}

type disabledSlogHandler struct{}

func (d disabledSlogHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (d disabledSlogHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (d disabledSlogHandler) WithAttrs(_ []slog.Attr) slog.Handler          { return disabledSlogHandler{} }
func (d disabledSlogHandler) WithGroup(_ string) slog.Handler               { return disabledSlogHandler{} }
