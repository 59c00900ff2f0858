// Package ledger holds the ledger state and the rules that keep it consistent.
//
// Every action is a pure transition from one State to the next. Transitions
// never modify the slices of the state they start from, so a State value
// handed out by the Engine stays valid while later actions are applied.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// State is the full ledger. Treat it as read-only.
type State struct {
	Version           int64
	Accounts          []core.Account
	Transactions      []core.Transaction
	Categories        []core.Category
	Budgets           []core.Budget
	Goals             []core.Goal
	RecurringPayments []core.RecurringPayment
}

// FromSnapshot builds a state from its serialized form. Derived fields are
// taken as they are.
func FromSnapshot(s core.Snapshot) State {
	return State{
		Version:           s.Version,
		Accounts:          clone(s.Accounts),
		Transactions:      clone(s.Transactions),
		Categories:        clone(s.Categories),
		Budgets:           cloneBudgets(s.Budgets),
		Goals:             clone(s.Goals),
		RecurringPayments: clone(s.RecurringPayments),
	}
}

// Snapshot returns an independent serializable copy of the state.
func (s State) Snapshot(at time.Time) core.Snapshot {
	return core.Snapshot{
		Version:           s.Version,
		TakenAt:           at,
		Accounts:          clone(s.Accounts),
		Transactions:      clone(s.Transactions),
		Categories:        clone(s.Categories),
		Budgets:           cloneBudgets(s.Budgets),
		Goals:             clone(s.Goals),
		RecurringPayments: clone(s.RecurringPayments),
	}
}

func (s State) account(id string) (int, bool) {
	return indexOf(s.Accounts, id, func(a core.Account) string { return a.ID })
}

func (s State) transaction(id string) (int, bool) {
	return indexOf(s.Transactions, id, func(t core.Transaction) string { return t.ID })
}

func (s State) budget(id string) (int, bool) {
	return indexOf(s.Budgets, id, func(b core.Budget) string { return b.ID })
}

func (s State) goal(id string) (int, bool) {
	return indexOf(s.Goals, id, func(g core.Goal) string { return g.ID })
}

func (s State) recurringPayment(id string) (int, bool) {
	return indexOf(s.RecurringPayments, id, func(p core.RecurringPayment) string { return p.ID })
}

func (s State) category(id string) (int, bool) {
	return indexOf(s.Categories, id, func(c core.Category) string { return c.ID })
}

// adjustAccount adds delta to an account balance. An empty or unknown id is
// skipped.
func (s State) adjustAccount(id string, delta decimal.Decimal, at time.Time) State {
	if id == "" || delta.IsZero() {
		return s
	}
	i, ok := s.account(id)
	if !ok {
		return s
	}
	acc := s.Accounts[i]
	acc.Balance = acc.Balance.Add(delta)
	acc.UpdatedAt = at
	s.Accounts = replaceAt(s.Accounts, i, acc)
	return s
}

// adjustBudgets adds amount to the spent value of every budget counting t.
func (s State) adjustBudgets(t core.Transaction, amount decimal.Decimal, at time.Time) State {
	if amount.IsZero() {
		return s
	}
	var budgets []core.Budget
	for i, b := range s.Budgets {
		if !b.Counts(t) {
			continue
		}
		if budgets == nil {
			budgets = clone(s.Budgets)
		}
		b.Spent = b.Spent.Add(amount)
		b.UpdatedAt = at
		budgets[i] = b
	}
	if budgets != nil {
		s.Budgets = budgets
	}
	return s
}

func indexOf[T any](items []T, id string, key func(T) string) (int, bool) {
	for i, item := range items {
		if key(item) == id {
			return i, true
		}
	}
	return -1, false
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func cloneBudgets(items []core.Budget) []core.Budget {
	out := clone(items)
	for i := range out {
		out[i].CategoryIDs = clone(out[i].CategoryIDs)
	}
	return out
}

func replaceAt[T any](items []T, i int, v T) []T {
	out := clone(items)
	out[i] = v
	return out
}

func appendTo[T any](items []T, v ...T) []T {
	out := make([]T, len(items), len(items)+len(v))
	copy(out, items)
	return append(out, v...)
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
