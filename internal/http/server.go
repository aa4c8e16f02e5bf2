package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"finboard/internal/core"
	applog "finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
	appweb "finboard/web"
)

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// Options tunes the dashboard server. Zero values fall back to defaults.
type Options struct {
	LoginURL           string
	Currency           string
	Location           *time.Location
	RateLimitPerMinute int
	Logger             *applog.Logger
	ReadyChecks        map[string]ReadyCheck
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard *services.Dashboard

	loginURL    string
	currency    string
	loc         *time.Location
	readyChecks map[string]ReadyCheck

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, dash *services.Dashboard, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.Default()
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		templates:   t,
		dashboard:   dash,
		loginURL:    opts.LoginURL,
		currency:    opts.Currency,
		loc:         opts.Location,
		readyChecks: opts.ReadyChecks,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.CacheFor(time.Hour)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /{$}", security.NoStore(http.HandlerFunc(s.handleIndex)))
	mux.Handle("GET /login", security.NoStore(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /logout", security.NoStore(http.HandlerFunc(s.handleLogout)))

	// UI partials
	mux.Handle("GET /ui/dashboard", security.NoStore(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("POST /transactions", security.NoStore(http.HandlerFunc(s.handleCreateTransaction)))
	mux.Handle("POST /transactions/{id}/delete", security.NoStore(http.HandlerFunc(s.handleDeleteTransaction)))

	// JSON API
	mux.Handle("GET /api/ledger", security.NoStore(http.HandlerFunc(s.handleAPILedger)))
	mux.Handle("POST /api/transactions", security.NoStore(http.HandlerFunc(s.handleAPICreateTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", security.NoStore(http.HandlerFunc(s.handleAPIDeleteTransaction)))

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.handleRateLimited)(h)
	h = security.Headers(security.DashboardPolicy())(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)

	if strings.HasPrefix(r.URL.Path, "/api/") {
		JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	ErrorResponse(http.StatusTooManyRequests, "Too many changes, please wait a moment").Write(w)
}
