package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/currency"
)

func (e *Engine) Transaction(id string) (core.Transaction, bool) {
	s := e.State()
	if i, ok := s.transaction(id); ok {
		return s.Transactions[i], true
	}
	return core.Transaction{}, false
}

func (e *Engine) Account(id string) (core.Account, bool) {
	s := e.State()
	if i, ok := s.account(id); ok {
		return s.Accounts[i], true
	}
	return core.Account{}, false
}

func (e *Engine) Budget(id string) (core.Budget, bool) {
	s := e.State()
	if i, ok := s.budget(id); ok {
		b := s.Budgets[i]
		b.CategoryIDs = clone(b.CategoryIDs)
		return b, true
	}
	return core.Budget{}, false
}

func (e *Engine) Goal(id string) (core.Goal, bool) {
	s := e.State()
	if i, ok := s.goal(id); ok {
		return s.Goals[i], true
	}
	return core.Goal{}, false
}

func (e *Engine) RecurringPayment(id string) (core.RecurringPayment, bool) {
	s := e.State()
	if i, ok := s.recurringPayment(id); ok {
		return s.RecurringPayments[i], true
	}
	return core.RecurringPayment{}, false
}

func (e *Engine) Category(id string) (core.Category, bool) {
	s := e.State()
	if i, ok := s.category(id); ok {
		return s.Categories[i], true
	}
	return core.Category{}, false
}

func (e *Engine) Accounts() []core.Account { return clone(e.State().Accounts) }

func (e *Engine) Transactions() []core.Transaction { return clone(e.State().Transactions) }

func (e *Engine) Budgets() []core.Budget { return cloneBudgets(e.State().Budgets) }

func (e *Engine) Goals() []core.Goal { return clone(e.State().Goals) }

func (e *Engine) RecurringPayments() []core.RecurringPayment {
	return clone(e.State().RecurringPayments)
}

func (e *Engine) Categories() []core.Category { return clone(e.State().Categories) }

// TransactionsBetween returns the transactions dated inside [from, to],
// oldest first. Empty bounds are open.
func (e *Engine) TransactionsBetween(from, to core.Date) []core.Transaction {
	var out []core.Transaction
	for _, t := range e.State().Transactions {
		if t.Date.Within(from, to) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// SpendingByCategory sums expenses per category inside [from, to].
// Transfers are left out.
func (e *Engine) SpendingByCategory(from, to core.Date) []core.CategoryAmount {
	totals := map[string]decimal.Decimal{}
	for _, t := range e.TransactionsBetween(from, to) {
		if t.Type != core.Expense || t.IsTransfer() {
			continue
		}
		totals[t.CategoryID] = totals[t.CategoryID].Add(t.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(totals))
	for id, amount := range totals {
		out = append(out, core.CategoryAmount{CategoryID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// BudgetProgress reports the cached consumption of a budget.
func (e *Engine) BudgetProgress(id string) (core.BudgetProgress, bool) {
	b, ok := e.Budget(id)
	if !ok {
		return core.BudgetProgress{}, false
	}
	return Progress(b), true
}

// TotalBalance sums the balances of accounts included in totals that are not
// archived, converted into target with the given rates.
func (e *Engine) TotalBalance(target string, rates currency.Rates) core.Totals {
	return TotalBalance(e.State().Accounts, target, rates)
}

// TotalBalance is the pure form of Engine.TotalBalance.
func TotalBalance(accounts []core.Account, target string, rates currency.Rates) core.Totals {
	perCurrency := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, a := range accounts {
		if !a.IncludeInTotal || a.Archived {
			continue
		}
		perCurrency[a.Currency] = perCurrency[a.Currency].Add(a.Balance)
		total = total.Add(currency.Convert(a.Balance, a.Currency, target, rates))
	}

	out := core.Totals{Currency: target, Total: total.Round(core.AmountPlaces)}
	for code, amount := range perCurrency {
		out.ByCurrency = append(out.ByCurrency, core.CurrencyTotal{Currency: code, Amount: amount})
	}
	sort.Slice(out.ByCurrency, func(i, j int) bool {
		return out.ByCurrency[i].Currency < out.ByCurrency[j].Currency
	})
	return out
}
