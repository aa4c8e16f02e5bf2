package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// DefaultCategory is assigned to transactions submitted without a category.
const DefaultCategory = "general"

// maxDescriptionLen bounds free-text descriptions, in characters.
const maxDescriptionLen = 200

type (
	// Kind tells whether a transaction adds to or subtracts from the balance.
	Kind string

	// UserProfile is the identity returned by the profile endpoint.
	UserProfile struct {
		FullName string `json:"fullname"`
		Email    string `json:"email"`
	}

	Transaction struct {
		ID          int64     `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Kind        Kind      `json:"type"`
		Category    string    `json:"category"`
		CreatedAt   time.Time `json:"date"`
	}

	// TransactionInput is the unvalidated form of a transaction as submitted by a user.
	TransactionInput struct {
		Amount      AmountInput `json:"amount"`
		Description string      `json:"description"`
		Kind        string      `json:"type"`
		Category    string      `json:"category,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDescription = errors.New("invalid description")
	ErrInvalidKind        = errors.New("invalid transaction kind")
)

// ParseKind accepts "income" or "expense" in any case. An empty value
// defaults to income, matching the entry form default.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Income):
		return Income, nil
	case string(Expense):
		return Expense, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// Signed returns the contribution of an amount of this kind to the balance.
func (k Kind) Signed(m Money) Money {
	if k == Expense {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Normalize validates the input and returns its canonical parts.
// Nothing is allocated for the caller's ledger until all checks pass.
func (in TransactionInput) Normalize() (Money, string, Kind, string, error) {
	amount, err := in.Amount.Parse()
	if err != nil {
		return Money{}, "", "", "", err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" || utf8.RuneCountInString(desc) > maxDescriptionLen {
		return Money{}, "", "", "", ErrInvalidDescription
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Money{}, "", "", "", err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}
	return amount, desc, kind, category, nil
}

// Validate checks a built transaction. The ledger runs it before storing
// an entry.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if d := strings.TrimSpace(t.Description); d == "" || utf8.RuneCountInString(d) > maxDescriptionLen {
		return ErrInvalidDescription
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
