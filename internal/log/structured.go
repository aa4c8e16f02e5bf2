package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the recurring records of the app with a fixed
// field set. The component of each record comes from the record kind.
type StructuredLogger struct {
	base *slog.Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{base: logger.base}
}

// LogHTTPEnd records a finished request. 4xx is logged as a warning and 5xx
// as an error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.base.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionRecorded records a ledger mutation with the balance and
// revision it produced.
func (sl *StructuredLogger) LogTransactionRecorded(ctx context.Context, op string, id, amountCents int64, kind, category string, balanceCents int64, revision uint64) {
	fields := NewFields().
		WithTransaction(id, amountCents, kind, category).
		WithBalance(balanceCents, revision).
		WithOperation(op).
		WithComponent(ComponentLedger)
	sl.base.InfoContext(ctx, "Ledger updated", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.base.ErrorContext(ctx, msg, fields.ToSlice()...)
}
