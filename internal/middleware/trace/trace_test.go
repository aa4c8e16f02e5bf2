package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	applog "finboard/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(applog.NewText(&buf, slog.LevelInfo, "test"), nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a UUID", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if strings.Count(out, "request_id="+seen) != 2 {
		t.Fatalf("request id not on both log lines:\n%s", out)
	}
	if !strings.Contains(out, "status_code=418") {
		t.Fatalf("status not logged:\n%s", out)
	}
	if st := m.Stats(); st.Requests != 1 || st.InFlight != 0 {
		t.Fatalf("Stats() = %+v", st)
	}
}

func TestMiddlewareReusesValidIncomingID(t *testing.T) {
	m := NewMiddleware(applog.Discard(), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, incoming)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(HeaderRequestID) != incoming {
		t.Fatalf("incoming id not reused: %q", rr.Header().Get(HeaderRequestID))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(HeaderRequestID); got == "<script>" {
		t.Fatal("invalid incoming id was echoed")
	}
}
