package ledger

import (
	"sort"
	"time"

	"finboard/internal/core"
)

// Project computes the chart projections of a transaction list.
//
// Category totals cover expense entries only. Month buckets carry both
// income and expense.
func Project(items []core.Transaction, loc *time.Location) core.Aggregates {
	if loc == nil {
		loc = time.UTC
	}

	byCategory := make(map[string]int64)
	type monthKey struct{ year, month int }
	byMonth := make(map[monthKey]*core.MonthTotal)

	for _, t := range items {
		if t.Kind == core.Expense {
			byCategory[t.Category] += t.Amount.Cents
		}

		at := t.CreatedAt.In(loc)
		k := monthKey{at.Year(), int(at.Month())}
		m, ok := byMonth[k]
		if !ok {
			m = &core.MonthTotal{Year: k.year, Month: k.month}
			byMonth[k] = m
		}
		switch t.Kind {
		case core.Income:
			m.Income.Cents += t.Amount.Cents
		case core.Expense:
			m.Expense.Cents += t.Amount.Cents
		}
	}

	agg := core.Aggregates{
		Categories: make([]core.CategoryAmount, 0, len(byCategory)),
		Months:     make([]core.MonthTotal, 0, len(byMonth)),
	}
	for name, cents := range byCategory {
		agg.Categories = append(agg.Categories, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(agg.Categories, func(i, j int) bool {
		a, b := agg.Categories[i], agg.Categories[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})

	for _, m := range byMonth {
		agg.Months = append(agg.Months, *m)
	}
	sort.Slice(agg.Months, func(i, j int) bool {
		a, b := agg.Months[i], agg.Months[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	return agg
}
