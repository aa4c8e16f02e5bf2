package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"finboard/internal/ledger"
	applog "finboard/internal/log"
	"finboard/internal/middleware/trace"
	"finboard/internal/session"
)

const readyTimeout = 5 * time.Second

// handleIndex serves the shell page. It carries no ledger data and loads
// the dashboard partial once the session has been resolved.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", nil, NewHTMXResponse())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	data := struct {
		LoggedOut bool
	}{LoggedOut: errors.Is(s.dashboard.Session().Err, session.ErrLoggedOut)}
	s.render(w, r, http.StatusOK, "login.html", data, NewHTMXResponse())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboard.Logout(r.Context()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Logout failed to discard token", applog.FieldError, err)
	}
	NewHTMXResponse().Redirect(r, s.loginURL).Write(w)
}

// handleDashboard resolves the session and renders the dashboard partial,
// or redirects to login when the session is rejected.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.dashboard.Activate(ctx)
	if errors.Is(err, session.ErrCanceled) {
		applog.FromContext(ctx).DebugContext(ctx, "Dashboard request abandoned")
		return
	}
	if sess.Next() != session.ToDashboard {
		applog.FromContext(ctx).InfoContext(ctx, "Redirecting to login", applog.FieldReason, session.Reason(err))
		NewHTMXResponse().Redirect(r, s.loginURL).Write(w)
		return
	}

	store, err := s.dashboard.Ledger()
	if err != nil {
		NewHTMXResponse().Redirect(r, s.loginURL).Write(w)
		return
	}
	s.renderDashboard(w, r, sess, store, NewHTMXResponse())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := s.admittedLedger(w, r)
	if !ok {
		return
	}

	in, err := ReadTransactionForm(r)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Parse form error", applog.FieldError, err)
		s.formError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	t, err := store.Add(in)
	if err != nil {
		s.formError(w, r, http.StatusUnprocessableEntity, inputErrorMessage(err))
		return
	}

	if !IsHTMX(r) {
		NewHTMXResponse().Redirect(r, "/").Write(w)
		return
	}
	b := NewHTMXResponse().
		TriggerFormReset().
		TriggerSuccessNotification("Saved " + t.Description)
	s.renderDashboard(w, r, s.dashboard.Session(), store, b)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	store, ok := s.admittedLedger(w, r)
	if !ok {
		return
	}
	id, err := ParseTransactionID(r)
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}

	store.Delete(id)

	if !IsHTMX(r) {
		NewHTMXResponse().Redirect(r, "/").Write(w)
		return
	}
	s.renderDashboard(w, r, s.dashboard.Session(), store, NewHTMXResponse())
}

// admittedLedger returns the session's ledger, redirecting to login when
// there is none.
func (s *Server) admittedLedger(w http.ResponseWriter, r *http.Request) (*ledger.Store, bool) {
	store, err := s.dashboard.Ledger()
	if err != nil {
		NewHTMXResponse().Redirect(r, s.loginURL).Write(w)
		return nil, false
	}
	return store, true
}

// formError answers a failed submission. htmx requests get the message
// swapped into the form's error slot.
func (s *Server) formError(w http.ResponseWriter, r *http.Request, status int, message string) {
	b := ErrorResponse(status, message)
	if IsHTMX(r) {
		b.Header("HX-Retarget", "#form-error").Header("HX-Reswap", "innerHTML")
	}
	b.Write(w)
}

// renderDashboard renders the dashboard partial from one consistent
// snapshot and announces its revision.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, sess session.Session, store *ledger.Store, b *HTMXResponseBuilder) {
	snap := store.Snapshot()
	b.TriggerLedgerChanged(snap.Revision, snap.Balance.Cents)
	s.render(w, r, http.StatusOK, "dashboard.html", s.newDashboardView(sess.Profile, snap), b)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Template execution failed", err, applog.ComponentTemplate, applog.OpRender,
			applog.LogFields{"template": name})
		InternalServerError("Rendering failed, request " + trace.RequestID(r.Context())).Write(w)
		return
	}
	b.Status(status).BodyHTML(buf.String()).Write(w)
}

// handleHealth reports liveness with the request counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	traced := s.tracer.Stats()
	JSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests": map[string]int64{
			"total":        traced.Requests,
			"in_flight":    traced.InFlight,
			"rate_limited": s.limiter.Stats().Limited,
			"suspicious":   s.detector.Stats().Suspicious,
		},
	})
}

// handleReady runs every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.readyChecks)+1)

	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	checks["rate_limiter"] = strconv.Itoa(s.limiter.Stats().Clients) + " active clients"

	JSONResponse(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
