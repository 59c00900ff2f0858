package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Engine owns the current ledger state. Each action computes the next state
// from the current one and swaps it in a single assignment, so readers never
// observe a half-applied action. Actions never fail: a missing account or
// budget only skips that part of the cascade.
type Engine struct {
	mu    sync.RWMutex
	state State
	newID func() string
	now   func() time.Time
}

type Option func(*Engine)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock replaces time.Now for timestamps.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithState starts the engine from an existing state.
func WithState(s State) Option {
	return func(e *Engine) { e.state = s }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// commit runs fn against the current state and installs the result when fn
// reports a change.
func (e *Engine) commit(fn func(s State, at time.Time) (State, bool)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, changed := fn(e.state, e.now().UTC())
	if !changed {
		return false
	}
	next.Version = e.state.Version + 1
	e.state = next
	return true
}

// State returns the current state. Its slices are shared and must not be modified.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Version counts the actions applied since the state was created or restored.
func (e *Engine) Version() int64 {
	return e.State().Version
}

// Snapshot returns an independent serializable copy of the ledger.
func (e *Engine) Snapshot() core.Snapshot {
	return e.State().Snapshot(e.now().UTC())
}

// Restore replaces the whole state with a snapshot. Derived fields are kept
// as given; call RecalculateBudgetsSpent to re-derive them.
func (e *Engine) Restore(snap core.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := FromSnapshot(snap)
	if next.Version <= e.state.Version {
		next.Version = e.state.Version + 1
	}
	e.state = next
}

// Transactions

func (e *Engine) AddTransaction(in TransactionInput) core.Transaction {
	var t core.Transaction
	e.commit(func(s State, at time.Time) (State, bool) {
		t = core.Transaction{
			ID:          e.newID(),
			Type:        in.Type,
			Amount:      in.Amount,
			CategoryID:  in.CategoryID,
			AccountID:   in.AccountID,
			Description: in.Description,
			Date:        in.Date,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		if t.Date.IsZero() {
			t.Date = core.DateOf(at)
		}
		return s.addTransaction(t), true
	})
	return t
}

func (e *Engine) UpdateTransaction(id string, p TransactionPatch) (core.Transaction, bool) {
	var t core.Transaction
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, t, found = s.updateTransaction(id, p, at)
		return s, found
	})
	return t, ok
}

func (e *Engine) DeleteTransaction(id string) bool {
	return e.commit(func(s State, at time.Time) (State, bool) {
		s, _, found := s.deleteTransaction(id, at)
		return s, found
	})
}

// TransferMoney returns the expense and income legs, or false when either
// account is missing, they are the same account, or the amount is not positive.
func (e *Engine) TransferMoney(in TransferInput) ([]core.Transaction, bool) {
	var legs []core.Transaction
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		out, income := transferLegs(in, e.newID, at)
		next, done := s.transfer(in, out, income)
		if done {
			legs = []core.Transaction{out, income}
		}
		return next, done
	})
	return legs, ok
}

// Accounts

func (e *Engine) AddAccount(a core.Account) core.Account {
	e.commit(func(s State, at time.Time) (State, bool) {
		a.ID = e.newID()
		if a.Kind == nil {
			a.Kind = core.NormalAccount{}
		}
		a.CreatedAt, a.UpdatedAt = at, at
		s.Accounts = appendTo(s.Accounts, a)
		return s, true
	})
	return a
}

func (e *Engine) UpdateAccount(id string, p AccountPatch) (core.Account, bool) {
	var a core.Account
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, a, found = s.updateAccount(id, p, at)
		return s, found
	})
	return a, ok
}

func (e *Engine) DeleteAccount(id string) bool {
	return e.commit(func(s State, _ time.Time) (State, bool) {
		return s.deleteAccount(id)
	})
}

// Budgets

// AddBudget starts the budget with spent at zero regardless of existing
// transactions. Call RecalculateBudgetsSpent for backdated budgets.
func (e *Engine) AddBudget(b core.Budget) core.Budget {
	e.commit(func(s State, at time.Time) (State, bool) {
		b.ID = e.newID()
		b.CategoryIDs = clone(b.CategoryIDs)
		b.Spent = decimal.Zero
		b.CreatedAt, b.UpdatedAt = at, at
		s.Budgets = appendTo(s.Budgets, b)
		return s, true
	})
	return b
}

// UpdateBudget recomputes spent from the full log when the window or the
// category set changes.
func (e *Engine) UpdateBudget(id string, p BudgetPatch) (core.Budget, bool) {
	var b core.Budget
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, b, found = s.updateBudget(id, p, at)
		return s, found
	})
	return b, ok
}

func (e *Engine) DeleteBudget(id string) bool {
	return e.commit(func(s State, _ time.Time) (State, bool) {
		return s.deleteBudget(id)
	})
}

// RecalculateBudgetsSpent recomputes every budget from the transaction log and
// returns how many cached values were wrong. Running it twice changes nothing
// the second time.
func (e *Engine) RecalculateBudgetsSpent() int {
	var changed int
	e.commit(func(s State, at time.Time) (State, bool) {
		s, changed = s.recalculate(at)
		return s, changed > 0
	})
	return changed
}

// Goals

func (e *Engine) AddGoal(g core.Goal) core.Goal {
	e.commit(func(s State, at time.Time) (State, bool) {
		g.ID = e.newID()
		g.CreatedAt, g.UpdatedAt = at, at
		s.Goals = appendTo(s.Goals, g)
		return s, true
	})
	return g
}

func (e *Engine) UpdateGoal(id string, p GoalPatch) (core.Goal, bool) {
	var g core.Goal
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, g, found = s.updateGoal(id, p, at)
		return s, found
	})
	return g, ok
}

// AddToGoal adds a contribution to the goal's current amount.
func (e *Engine) AddToGoal(id string, amount decimal.Decimal) (core.Goal, bool) {
	var g core.Goal
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, g, found = s.addToGoal(id, amount, at)
		return s, found
	})
	return g, ok
}

func (e *Engine) DeleteGoal(id string) bool {
	return e.commit(func(s State, _ time.Time) (State, bool) {
		return s.deleteGoal(id)
	})
}

// Recurring payments

func (e *Engine) AddRecurringPayment(p core.RecurringPayment) core.RecurringPayment {
	e.commit(func(s State, at time.Time) (State, bool) {
		p.ID = e.newID()
		p.CreatedAt, p.UpdatedAt = at, at
		s.RecurringPayments = appendTo(s.RecurringPayments, p)
		return s, true
	})
	return p
}

func (e *Engine) UpdateRecurringPayment(id string, p RecurringPaymentPatch) (core.RecurringPayment, bool) {
	var r core.RecurringPayment
	ok := e.commit(func(s State, at time.Time) (State, bool) {
		var found bool
		s, r, found = s.updateRecurringPayment(id, p, at)
		return s, found
	})
	return r, ok
}

func (e *Engine) DeleteRecurringPayment(id string) bool {
	return e.commit(func(s State, _ time.Time) (State, bool) {
		return s.deleteRecurringPayment(id)
	})
}

// Categories

// AddCategory keeps a caller supplied id unless it is taken or reserved.
func (e *Engine) AddCategory(c core.Category) core.Category {
	e.commit(func(s State, _ time.Time) (State, bool) {
		if _, taken := s.category(c.ID); c.ID == "" || taken || c.ID == core.TransferCategoryID {
			c.ID = e.newID()
		}
		s.Categories = appendTo(s.Categories, c)
		return s, true
	})
	return c
}

func (e *Engine) UpdateCategory(id string, p CategoryPatch) (core.Category, bool) {
	var c core.Category
	ok := e.commit(func(s State, _ time.Time) (State, bool) {
		var found bool
		s, c, found = s.updateCategory(id, p)
		return s, found
	})
	return c, ok
}

// DeleteCategory is a no-op for default categories.
func (e *Engine) DeleteCategory(id string) bool {
	return e.commit(func(s State, _ time.Time) (State, bool) {
		return s.deleteCategory(id)
	})
}
