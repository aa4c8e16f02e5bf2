package http

import (
	"errors"
	"html/template"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
)

var templateFuncs = template.FuncMap{
	"isExpense": func(k core.Kind) bool { return k == core.Expense },
}

type transactionRow struct {
	ID          int64
	Description string
	Category    string
	Kind        core.Kind
	Amount      string
	Date        string
}

type categoryRow struct {
	Name   string
	Amount string
	Width  int
}

type monthRow struct {
	Label        string
	Income       string
	Expense      string
	Net          string
	IncomeWidth  int
	ExpenseWidth int
}

type dashboardView struct {
	Name            string
	Email           string
	Balance         string
	BalanceNegative bool
	Revision        uint64
	Transactions    []transactionRow
	Categories      []categoryRow
	MaxCategory     string
	Months          []monthRow
}

// newDashboardView renders a ledger snapshot in the configured currency
// and timezone.
func (s *Server) newDashboardView(profile core.UserProfile, snap ledger.Snapshot) dashboardView {
	v := dashboardView{
		Name:            profile.FullName,
		Email:           profile.Email,
		Balance:         snap.Balance.Format(s.currency),
		BalanceNegative: snap.Balance.IsNegative(),
		Revision:        snap.Revision,
	}
	if v.Name == "" {
		v.Name = profile.Email
	}

	for _, t := range snap.Transactions {
		v.Transactions = append(v.Transactions, transactionRow{
			ID:          t.ID,
			Description: t.Description,
			Category:    t.Category,
			Kind:        t.Kind,
			Amount:      t.Amount.Format(s.currency),
			Date:        t.CreatedAt.In(s.loc).Format("2006-01-02 15:04"),
		})
	}

	var maxCents int64
	for _, c := range snap.Aggregates.Categories {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
			v.MaxCategory = c.Name
		}
	}
	for _, c := range snap.Aggregates.Categories {
		v.Categories = append(v.Categories, categoryRow{
			Name:   c.Name,
			Amount: c.Amount.Format(s.currency),
			Width:  barWidth(c.Amount.Cents, maxCents),
		})
	}

	var maxMonth int64
	for _, m := range snap.Aggregates.Months {
		maxMonth = max(maxMonth, m.Income.Cents, m.Expense.Cents)
	}
	for _, m := range snap.Aggregates.Months {
		v.Months = append(v.Months, monthRow{
			Label:        time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006"),
			Income:       m.Income.Format(s.currency),
			Expense:      m.Expense.Format(s.currency),
			Net:          m.Net().Format(s.currency),
			IncomeWidth:  barWidth(m.Income.Cents, maxMonth),
			ExpenseWidth: barWidth(m.Expense.Cents, maxMonth),
		})
	}
	return v
}

// barWidth scales cents to a rounded percentage of maxCents. Non-zero
// values stay visible at 2%.
func barWidth(cents, maxCents int64) int {
	if maxCents <= 0 || cents <= 0 {
		return 0
	}
	width := int((cents*100 + maxCents/2) / maxCents)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// inputErrorMessage turns a ledger validation error into user-facing text.
func inputErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number of zero or more"
	case errors.Is(err, core.ErrInvalidDescription):
		return "Description is required (up to 200 characters)"
	case errors.Is(err, core.ErrInvalidKind):
		return "Type must be income or expense"
	default:
		return "Invalid transaction"
	}
}
