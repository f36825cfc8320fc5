// Package observability provides structured logging for memmux.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/memmux/internal/config"
)

// LevelTrace is below debug and logs per-packet detail.
const LevelTrace = slog.Level(-8)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

var sensitiveFields = []string{"password", "secret", "token", "apikey", "api_key", "credential"}

// sensitiveParam matches a sensitive query parameter and its value.
var sensitiveParam = regexp.MustCompile(`(?i)([?&](?:` + strings.Join(sensitiveFields, "|") + `)=)[^&#\s]*`)

// NewLogger creates a logger writing to stdout.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger writing to w. Attributes named like
// credentials and credential query parameters inside URLs are redacted.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr(cfg.TimeFormat),
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func replaceAttr(timeFormat string) func([]string, slog.Attr) slog.Attr {
	var opts []masq.Option
	for _, f := range sensitiveFields {
		opts = append(opts,
			masq.WithFieldName(f),
			masq.WithFieldName(strings.ToUpper(f)),
			masq.WithFieldName(strings.ToUpper(f[:1])+f[1:]),
		)
	}
	opts = append(opts,
		masq.WithFieldName("ApiKey"),
		masq.WithFieldName("APIKey"),
		masq.WithRedactMessage(RedactedValue),
	)
	mask := masq.New(opts...)

	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok && timeFormat != "" {
					return slog.String(slog.TimeKey, t.Format(timeFormat))
				}
				return a
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					return slog.String(slog.LevelKey, "TRACE")
				}
				return a
			}
		}
		if a.Value.Kind() == slog.KindString {
			if s := a.Value.String(); strings.ContainsRune(s, '=') {
				a.Value = slog.StringValue(sensitiveParam.ReplaceAllString(s, "${1}"+RedactedValue))
			}
		}
		return mask(groups, a)
	}
}

// parseLevel converts a configured level name to a slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds a request ID to the logger.
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String("request_id", requestID))
}

// WithSession adds a conversion session ID to the logger.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String("session_id", sessionID))
}

// WithComponent adds a component name to the logger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithOperation adds an operation name to the logger.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String("operation", operation))
}

// WithError adds an error to the logger attributes.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// LoggerFromContext returns the logger stored in ctx, or slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// RequestIDFromContext extracts a request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// TimedOperation logs the start and end of an operation with its duration.
//
//	done := observability.TimedOperation(ctx, logger, "probe")
//	defer done()
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string) func() {
	var err error
	return TimedOperationWithError(ctx, logger, operation, &err)
}

// TimedOperationWithError is TimedOperation that logs a failure when *errPtr
// is non-nil at completion. The pointer is read when done runs, so it sees
// errors assigned after this call.
//
//nolint:gocritic // errPtr must be a pointer to capture errors set after this call
func TimedOperationWithError(ctx context.Context, logger *slog.Logger, operation string, errPtr *error) func() {
	start := time.Now()
	logger.InfoContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		attrs := []any{slog.String("operation", operation), slog.Duration("duration", time.Since(start))}
		if errPtr != nil && *errPtr != nil {
			logger.ErrorContext(ctx, "operation failed", append(attrs, slog.String("error", (*errPtr).Error()))...)
			return
		}
		logger.InfoContext(ctx, "operation completed", attrs...)
	}
}
