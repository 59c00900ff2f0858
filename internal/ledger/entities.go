package ledger

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// AccountPatch changes account fields. Setting Balance overrides the derived
// balance directly.
type AccountPatch struct {
	Title          *string
	Kind           core.AccountKind
	Currency       *string
	Balance        *decimal.Decimal
	IncludeInTotal *bool
	Archived       *bool
}

func (p AccountPatch) Apply(a core.Account) core.Account {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Kind != nil {
		a.Kind = p.Kind
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.IncludeInTotal != nil {
		a.IncludeInTotal = *p.IncludeInTotal
	}
	if p.Archived != nil {
		a.Archived = *p.Archived
	}
	return a
}

type BudgetPatch struct {
	Name        *string
	CategoryIDs []string // nil keeps the current set
	Limit       *decimal.Decimal
	Period      *core.BudgetPeriod
	StartDate   *core.Date
	EndDate     *core.Date
}

func (p BudgetPatch) Apply(b core.Budget) core.Budget {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.CategoryIDs != nil {
		b.CategoryIDs = slices.Clone(p.CategoryIDs)
	}
	if p.Limit != nil {
		b.Limit = *p.Limit
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		b.EndDate = *p.EndDate
	}
	return b
}

type GoalPatch struct {
	Name       *string
	Target     *decimal.Decimal
	Current    *decimal.Decimal
	TargetDate *core.Date
	Currency   *string
}

func (p GoalPatch) Apply(g core.Goal) core.Goal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Target != nil {
		g.Target = *p.Target
	}
	if p.Current != nil {
		g.Current = *p.Current
	}
	if p.TargetDate != nil {
		g.TargetDate = *p.TargetDate
	}
	if p.Currency != nil {
		g.Currency = *p.Currency
	}
	return g
}

type RecurringPaymentPatch struct {
	Name       *string
	Type       *core.TransactionType
	Amount     *decimal.Decimal
	CategoryID *string
	AccountID  *string
	Currency   *string
	Frequency  *core.Frequency
	NextDate   *core.Date
	Active     *bool
	Paid       *bool
	Reminder   *core.Reminder
}

func (p RecurringPaymentPatch) Apply(r core.RecurringPayment) core.RecurringPayment {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		r.CategoryID = *p.CategoryID
	}
	if p.AccountID != nil {
		r.AccountID = *p.AccountID
	}
	if p.Currency != nil {
		r.Currency = *p.Currency
	}
	if p.Frequency != nil {
		r.Frequency = *p.Frequency
	}
	if p.NextDate != nil {
		r.NextDate = *p.NextDate
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	if p.Paid != nil {
		r.Paid = *p.Paid
	}
	if p.Reminder != nil {
		r.Reminder = *p.Reminder
	}
	return r
}

type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
	Type  *core.TransactionType
}

func (p CategoryPatch) Apply(c core.Category) core.Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	return c
}

// Accounts

func (s State) updateAccount(id string, p AccountPatch, at time.Time) (State, core.Account, bool) {
	i, ok := s.account(id)
	if !ok {
		return s, core.Account{}, false
	}
	acc := p.Apply(s.Accounts[i])
	acc.UpdatedAt = at
	s.Accounts = replaceAt(s.Accounts, i, acc)
	return s, acc, true
}

// deleteAccount removes the account only. Transactions that referenced it
// keep the id and their later cascades skip it.
func (s State) deleteAccount(id string) (State, bool) {
	i, ok := s.account(id)
	if !ok {
		return s, false
	}
	s.Accounts = removeAt(s.Accounts, i)
	return s, true
}

// Budgets

func (s State) updateBudget(id string, p BudgetPatch, at time.Time) (State, core.Budget, bool) {
	i, ok := s.budget(id)
	if !ok {
		return s, core.Budget{}, false
	}
	old := s.Budgets[i]
	b := p.Apply(old)
	if windowChanged(old, b) {
		b.Spent = BudgetSpent(b, s.Transactions)
	}
	b.UpdatedAt = at
	s.Budgets = replaceAt(s.Budgets, i, b)
	return s, b, true
}

func windowChanged(old, next core.Budget) bool {
	return !old.StartDate.Equal(next.StartDate.Time) ||
		!old.EndDate.Equal(next.EndDate.Time) ||
		!slices.Equal(old.CategoryIDs, next.CategoryIDs)
}

func (s State) deleteBudget(id string) (State, bool) {
	i, ok := s.budget(id)
	if !ok {
		return s, false
	}
	s.Budgets = removeAt(s.Budgets, i)
	return s, true
}

// Goals

func (s State) updateGoal(id string, p GoalPatch, at time.Time) (State, core.Goal, bool) {
	i, ok := s.goal(id)
	if !ok {
		return s, core.Goal{}, false
	}
	g := p.Apply(s.Goals[i])
	g.UpdatedAt = at
	s.Goals = replaceAt(s.Goals, i, g)
	return s, g, true
}

func (s State) addToGoal(id string, amount decimal.Decimal, at time.Time) (State, core.Goal, bool) {
	i, ok := s.goal(id)
	if !ok {
		return s, core.Goal{}, false
	}
	g := s.Goals[i]
	g.Current = g.Current.Add(amount)
	g.UpdatedAt = at
	s.Goals = replaceAt(s.Goals, i, g)
	return s, g, true
}

func (s State) deleteGoal(id string) (State, bool) {
	i, ok := s.goal(id)
	if !ok {
		return s, false
	}
	s.Goals = removeAt(s.Goals, i)
	return s, true
}

// Recurring payments

func (s State) updateRecurringPayment(id string, p RecurringPaymentPatch, at time.Time) (State, core.RecurringPayment, bool) {
	i, ok := s.recurringPayment(id)
	if !ok {
		return s, core.RecurringPayment{}, false
	}
	r := p.Apply(s.RecurringPayments[i])
	r.UpdatedAt = at
	s.RecurringPayments = replaceAt(s.RecurringPayments, i, r)
	return s, r, true
}

func (s State) deleteRecurringPayment(id string) (State, bool) {
	i, ok := s.recurringPayment(id)
	if !ok {
		return s, false
	}
	s.RecurringPayments = removeAt(s.RecurringPayments, i)
	return s, true
}

// Categories

func (s State) updateCategory(id string, p CategoryPatch) (State, core.Category, bool) {
	i, ok := s.category(id)
	if !ok {
		return s, core.Category{}, false
	}
	c := p.Apply(s.Categories[i])
	s.Categories = replaceAt(s.Categories, i, c)
	return s, c, true
}

// deleteCategory refuses default categories. Transactions and budgets keep
// referencing the id.
func (s State) deleteCategory(id string) (State, bool) {
	i, ok := s.category(id)
	if !ok || s.Categories[i].IsDefault {
		return s, false
	}
	s.Categories = removeAt(s.Categories, i)
	return s, true
}
