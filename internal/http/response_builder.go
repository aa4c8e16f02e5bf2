package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// htmx client events raised through HX-Trigger.
const (
	eventLedgerChanged = "ledger:changed"
	eventFormReset     = "form:reset"
	eventNotification  = "show-notification"
)

type ledgerChanged struct {
	Revision     uint64 `json:"revision"`
	BalanceCents int64  `json:"balance_cents"`
}

type notification struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Duration int    `json:"duration"`
}

// HTMXResponseBuilder assembles a response with its htmx headers. Nothing is
// written until Write.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Trigger raises a client event. A later trigger of the same name wins.
func (b *HTMXResponseBuilder) Trigger(name string, detail any) *HTMXResponseBuilder {
	b.triggers[name] = detail
	return b
}

// TriggerLedgerChanged announces the revision and balance now on screen.
func (b *HTMXResponseBuilder) TriggerLedgerChanged(revision uint64, balanceCents int64) *HTMXResponseBuilder {
	return b.Trigger(eventLedgerChanged, ledgerChanged{Revision: revision, BalanceCents: balanceCents})
}

// TriggerFormReset clears the entry form.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(eventFormReset, struct{}{})
}

// TriggerSuccessNotification shows a toast for three seconds.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, notification{Type: "success", Message: message, Duration: 3000})
}

// Redirect sends htmx requests elsewhere with HX-Redirect and answers plain
// requests with 303 See Other.
func (b *HTMXResponseBuilder) Redirect(r *http.Request, location string) *HTMXResponseBuilder {
	if IsHTMX(r) {
		b.header.Set("HX-Redirect", location)
		b.status = http.StatusOK
	} else {
		b.header.Set("Location", location)
		b.status = http.StatusSeeOther
	}
	return b
}

// BodyHTML sets an HTML body and its content type.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = html
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		if raw, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if b.body != "" {
		_, _ = w.Write([]byte(b.body))
	}
}

// ErrorResponse renders message, escaped, as an error fragment.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// JSONResponse writes v as JSON with the given status.
func JSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSONResponse(w, status, map[string]string{"error": message})
}
