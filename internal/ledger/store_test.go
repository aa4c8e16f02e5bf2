package ledger

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"finboard/internal/core"
)

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func mustAdd(t *testing.T, s *Store, in core.TransactionInput) core.Transaction {
	t.Helper()
	tr, err := s.Add(in)
	if err != nil {
		t.Fatalf("add %+v: %v", in, err)
	}
	return tr
}

// foldBalance recomputes the balance independently of the store.
func foldBalance(items []core.Transaction) int64 {
	var income, expense int64
	for _, t := range items {
		if t.Kind == core.Income {
			income += t.Amount.Cents
		} else {
			expense += t.Amount.Cents
		}
	}
	return income - expense
}

func TestSalaryAndGroceries(t *testing.T) {
	s := New()
	mustAdd(t, s, core.TransactionInput{Amount: "500", Kind: "income", Description: "Salary"})
	mustAdd(t, s, core.TransactionInput{Amount: "200", Kind: "expense", Description: "Groceries", Category: "Food"})

	if got := s.Balance().Cents; got != 30000 {
		t.Fatalf("balance = %d, want 30000", got)
	}
	agg := s.Aggregates()
	if len(agg.Categories) != 1 || agg.Categories[0].Name != "Food" || agg.Categories[0].Amount.Cents != 20000 {
		t.Fatalf("categories = %+v", agg.Categories)
	}
}

func TestAddThenDeleteRestoresState(t *testing.T) {
	s := New()
	mustAdd(t, s, core.TransactionInput{Amount: "10", Description: "seed"})
	before, beforeLen := s.Balance(), s.Len()

	tr := mustAdd(t, s, core.TransactionInput{Amount: "42.42", Kind: "expense", Description: "Taxi", Category: "Transport"})
	if !s.Delete(tr.ID) {
		t.Fatal("delete reported nothing removed")
	}
	if s.Balance() != before || s.Len() != beforeLen {
		t.Fatalf("state not restored: balance=%v len=%d", s.Balance(), s.Len())
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s := New()
	mustAdd(t, s, core.TransactionInput{Amount: "5", Description: "seed"})
	rev := s.Revision()

	cases := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"empty amount", core.TransactionInput{Amount: "", Description: "x"}, core.ErrInvalidAmount},
		{"non numeric amount", core.TransactionInput{Amount: "ten", Description: "x"}, core.ErrInvalidAmount},
		{"negative amount", core.TransactionInput{Amount: "-3", Description: "x"}, core.ErrInvalidAmount},
		{"empty description", core.TransactionInput{Amount: "3", Description: ""}, core.ErrInvalidDescription},
		{"blank description", core.TransactionInput{Amount: "3", Description: " \t "}, core.ErrInvalidDescription},
		{"unknown kind", core.TransactionInput{Amount: "3", Description: "x", Kind: "loan"}, core.ErrInvalidKind},
		{"huge exponent", core.TransactionInput{Amount: "1e99999999", Description: "x"}, core.ErrInvalidAmount},
		{"long description", core.TransactionInput{Amount: "3", Description: strings.Repeat("d", 201)}, core.ErrInvalidDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Add(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if s.Len() != 1 || s.Balance().Cents != 500 || s.Revision() != rev {
				t.Fatalf("store changed: len=%d balance=%d rev=%d", s.Len(), s.Balance().Cents, s.Revision())
			}
		})
	}
}

func TestAddAcceptsMultibyteDescription(t *testing.T) {
	s := New()
	desc := strings.Repeat("食費", 70)
	tr := mustAdd(t, s, core.TransactionInput{Amount: "4", Description: desc, Kind: "expense"})
	if tr.Description != desc || s.Balance().Cents != -400 {
		t.Fatalf("added %+v, balance %d", tr, s.Balance().Cents)
	}
}

func TestAddDefaultsAndOrdering(t *testing.T) {
	start := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	s := New(WithClock(fixedClock(start)))

	first := mustAdd(t, s, core.TransactionInput{Amount: "1", Description: "first"})
	second := mustAdd(t, s, core.TransactionInput{Amount: "2", Description: "second", Kind: "expense"})

	if first.Category != core.DefaultCategory {
		t.Fatalf("category = %q, want default", first.Category)
	}
	if first.Kind != core.Income {
		t.Fatalf("kind = %q, want income default", first.Kind)
	}
	if second.ID <= first.ID {
		t.Fatalf("ids not increasing: %d then %d", first.ID, second.ID)
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatalf("timestamps not increasing")
	}

	items := s.Transactions()
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("newest transaction is not first: %+v", items)
	}

	items[0].Description = "mutated"
	if got, _ := s.Get(second.ID); got.Description != "second" {
		t.Fatalf("Transactions() exposed internal state")
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	s := New()
	mustAdd(t, s, core.TransactionInput{Amount: "7", Description: "x"})
	rev := s.Revision()

	var events int
	s.Subscribe(func(Event) { events++ })

	if s.Delete(999) {
		t.Fatal("delete of unknown id reported success")
	}
	if s.Len() != 1 || s.Balance().Cents != 700 || s.Revision() != rev || events != 0 {
		t.Fatalf("no-op delete changed the store")
	}
}

func TestBalanceMatchesFold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New()
	var ids []int64

	for i := 0; i < 500; i++ {
		if len(ids) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(ids))
			s.Delete(ids[j])
			ids = append(ids[:j], ids[j+1:]...)
		} else {
			kind := "income"
			if rng.Intn(2) == 0 {
				kind = "expense"
			}
			amount := strconv.Itoa(rng.Intn(100000)) + "." + strconv.Itoa(rng.Intn(100))
			tr := mustAdd(t, s, core.TransactionInput{Amount: core.AmountInput(amount), Kind: kind, Description: "r"})
			ids = append(ids, tr.ID)
		}

		snap := s.Snapshot()
		if want := foldBalance(snap.Transactions); snap.Balance.Cents != want {
			t.Fatalf("step %d: balance %d != fold %d", i, snap.Balance.Cents, want)
		}
		if len(snap.Transactions) != len(ids) {
			t.Fatalf("step %d: len %d != %d", i, len(snap.Transactions), len(ids))
		}
	}
}

func TestDecimalAmountsDoNotDrift(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		mustAdd(t, s, core.TransactionInput{Amount: "0.1", Description: "dime"})
	}
	mustAdd(t, s, core.TransactionInput{Amount: "0.3", Kind: "expense", Description: "x"})
	if got := s.Balance().Cents; got != 70 {
		t.Fatalf("balance = %d, want 70", got)
	}
}

func TestEventsFollowMutations(t *testing.T) {
	s := New()
	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) { got = append(got, ev) })

	a := mustAdd(t, s, core.TransactionInput{Amount: "3", Description: "a"})
	s.Delete(a.ID)

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].Type != EventAdded || got[0].Balance.Cents != 300 || got[0].Revision != 1 {
		t.Fatalf("unexpected add event %+v", got[0])
	}
	if got[1].Type != EventDeleted || got[1].Transaction.ID != a.ID || got[1].Balance.Cents != 0 {
		t.Fatalf("unexpected delete event %+v", got[1])
	}

	unsubscribe()
	mustAdd(t, s, core.TransactionInput{Amount: "3", Description: "b"})
	if len(got) != 2 {
		t.Fatalf("listener called after unsubscribe")
	}
}

func TestConcurrentMutationsKeepBalanceConsistent(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				kind := "income"
				if (w+i)%2 == 0 {
					kind = "expense"
				}
				tr, err := s.Add(core.TransactionInput{Amount: "1.25", Kind: kind, Description: "c"})
				if err != nil {
					t.Error(err)
					return
				}
				if i%5 == 0 {
					s.Delete(tr.ID)
				}
				_ = s.Aggregates()
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Balance.Cents != foldBalance(snap.Transactions) {
		t.Fatalf("balance %d does not match fold", snap.Balance.Cents)
	}
	seen := map[int64]bool{}
	for _, tr := range snap.Transactions {
		if seen[tr.ID] {
			t.Fatalf("duplicate id %d", tr.ID)
		}
		seen[tr.ID] = true
	}
}
