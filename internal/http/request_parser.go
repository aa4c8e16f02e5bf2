package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"finboard/internal/core"
)

// maxBodyBytes caps request bodies for transaction endpoints.
const maxBodyBytes = 64 << 10

var errBadID = errors.New("invalid transaction id")

// ReadTransactionForm reads a transaction from an htmx form post. The body
// may be urlencoded or a JSON object; htmx json-enc sends the latter. The
// kind is read from "type" with "kind" as an alias. An empty body yields an
// empty input, which the ledger then rejects.
func ReadTransactionForm(r *http.Request) (core.TransactionInput, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("read body: %w", err)
	}
	values, err := bodyValues(bytes.TrimSpace(raw))
	if err != nil {
		return core.TransactionInput{}, err
	}

	get := func(key string) string { return sanitizeInput(values.Get(key)) }
	kind := get("type")
	if kind == "" {
		kind = get("kind")
	}
	return core.TransactionInput{
		Amount:      core.AmountInput(get("amount")),
		Description: get("description"),
		Kind:        kind,
		Category:    get("category"),
	}, nil
}

// bodyValues flattens a urlencoded or JSON object body into url.Values.
// JSON numbers keep their literal digits.
func bodyValues(body []byte) (url.Values, error) {
	if len(body) == 0 || body[0] != '{' {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return values, nil
	}

	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("parse json form: %w", err)
	}
	values := make(url.Values, len(obj))
	for k, v := range obj {
		switch v := v.(type) {
		case string:
			values.Set(k, v)
		case json.Number:
			values.Set(k, v.String())
		case bool:
			values.Set(k, strconv.FormatBool(v))
		}
	}
	return values, nil
}

// DecodeTransactionJSON reads a JSON transaction body. Amounts may be JSON
// numbers or strings.
func DecodeTransactionJSON(r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		return core.TransactionInput{}, fmt.Errorf("decode transaction: %w", err)
	}
	in.Description = sanitizeInput(in.Description)
	in.Category = sanitizeInput(in.Category)
	return in, nil
}

// ParseTransactionID reads the {id} path value. Ids start at 1.
func ParseTransactionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id < 1 {
		return 0, errBadID
	}
	return id, nil
}

func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput trims s and drops control characters other than tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
