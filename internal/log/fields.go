package log

import (
	"maps"
	"slices"
)

// Attribute keys shared by every record.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldReason        = "reason"
	FieldEmail         = "email"
	FieldTransactionID = "transaction_id"
	FieldAmountCents   = "amount_cents"
	FieldBalanceCents  = "balance_cents"
	FieldKind          = "kind"
	FieldCategory      = "category"
	FieldRevision      = "revision"
	FieldBackend       = "backend"
)

// Values of FieldComponent.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSession   = "session"
	ComponentLedger    = "ledger"
	ComponentAMQP      = "amqp"
	ComponentCache     = "cache"
	ComponentStorage   = "storage"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
)

// Values of FieldOperation.
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpResolve  = "resolve"
	OpLogout   = "logout"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields collects attributes for one record. Setters overwrite earlier
// values of the same key and return f for chaining.
type LogFields map[string]any

func NewFields() LogFields { return LogFields{} }

func (f LogFields) set(kv ...any) LogFields {
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i].(string)] = kv[i+1]
	}
	return f
}

func (f LogFields) WithComponent(component string) LogFields {
	return f.set(FieldComponent, component)
}

func (f LogFields) WithClientIP(ip string) LogFields { return f.set(FieldClientIP, ip) }

func (f LogFields) WithOperation(op string) LogFields { return f.set(FieldOperation, op) }

// WithError records err as text. A nil err leaves f unchanged.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.set(FieldError, err.Error())
}

func (f LogFields) WithTransaction(id, amountCents int64, kind, category string) LogFields {
	return f.set(FieldTransactionID, id, FieldAmountCents, amountCents, FieldKind, kind, FieldCategory, category)
}

// WithBalance records the ledger state a mutation left behind.
func (f LogFields) WithBalance(balanceCents int64, revision uint64) LogFields {
	return f.set(FieldBalanceCents, balanceCents, FieldRevision, revision)
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	return f.set(FieldMethod, method, FieldPath, path, FieldQuery, query, FieldUserAgent, userAgent)
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	return f.set(FieldStatusCode, statusCode, FieldDuration, durationMs, FieldSuccess, success)
}

// ToSlice flattens f into slog key/value arguments, sorted by key.
func (f LogFields) ToSlice() []any {
	keys := slices.Sorted(maps.Keys(f))
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}
