package core

import "fmt"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"value"`
}

// MonthTotal is the income and expense total of one calendar month.
type MonthTotal struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"` // 1-12
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Net is income minus expense for the month.
func (m MonthTotal) Net() Money {
	return Money{Cents: m.Income.Cents - m.Expense.Cents}
}

// Key returns the bucket key in YYYY-MM form.
func (m MonthTotal) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Aggregates are the read-only projections fed to the charts.
// Categories only cover expense entries.
type Aggregates struct {
	Categories []CategoryAmount `json:"categories"`
	Months     []MonthTotal     `json:"months"`
}

// Clone returns a deep copy so callers cannot alter cached projections.
func (a Aggregates) Clone() Aggregates {
	out := Aggregates{
		Categories: make([]CategoryAmount, len(a.Categories)),
		Months:     make([]MonthTotal, len(a.Months)),
	}
	copy(out.Categories, a.Categories)
	copy(out.Months, a.Months)
	return out
}
