// Package trace tags each request with an id and logs its completion.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "finboard/internal/log"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// Stats counts traced requests.
type Stats struct {
	Requests     int64
	InFlight     int64
	LastDuration time.Duration
}

// Middleware assigns request ids and installs the request logger.
type Middleware struct {
	logger    *applog.Logger
	extractIP func(*http.Request) string

	requests atomic.Int64
	inFlight atomic.Int64
	lastNs   atomic.Int64
}

// NewMiddleware returns a tracer logging through logger. extractIP may be
// nil, in which case no client address is logged.
func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.Default()
	}
	return &Middleware{logger: logger.WithComponent(applog.ComponentHTTP), extractIP: extractIP}
}

// Middleware wraps next. An incoming X-Request-ID is kept when it is a UUID
// and replaced otherwise. Handlers find the request logger with
// applog.FromContext.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requests.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		logger := m.logger.With(applog.FieldRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = applog.NewContext(ctx, logger)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.lastNs.Store(int64(elapsed))

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		applog.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rec.status, elapsed.Milliseconds(), clientIP)
	})
}

// Stats returns the counters since the middleware was created.
func (m *Middleware) Stats() Stats {
	return Stats{
		Requests:     m.requests.Load(),
		InFlight:     m.inFlight.Load(),
		LastDuration: time.Duration(m.lastNs.Load()),
	}
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
