// Package logctx builds the process logger and carries loggers through
// context.Context, so per-feed and per-file fields follow the call stack.
package logctx

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// New creates a logger writing to w. With human set, output goes through a
// console writer instead of JSON.
func New(w io.Writer, debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if human {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default is the logger used when a context carries none.
func Default() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger attached to ctx, or Default.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return Default()
}

// WithStr returns a context whose logger has the string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	l := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, l)
}
