package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// SpentFor sums the expenses in the category set dated inside [start, end].
// Transfers never count. This is the authoritative value of a budget's spent.
func SpentFor(transactions []core.Transaction, categoryIDs []string, start, end core.Date) decimal.Decimal {
	probe := core.Budget{CategoryIDs: categoryIDs, StartDate: start, EndDate: end}
	total := decimal.Zero
	for _, t := range transactions {
		if probe.Counts(t) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// BudgetSpent recomputes the spent value of one budget.
func BudgetSpent(b core.Budget, transactions []core.Transaction) decimal.Decimal {
	return SpentFor(transactions, b.CategoryIDs, b.StartDate, b.EndDate)
}

// recalculate recomputes every budget and reports how many values changed.
func (s State) recalculate(at time.Time) (State, int) {
	changed := 0
	var budgets []core.Budget
	for i, b := range s.Budgets {
		spent := BudgetSpent(b, s.Transactions)
		if spent.Equal(b.Spent) {
			continue
		}
		if budgets == nil {
			budgets = clone(s.Budgets)
		}
		b.Spent = spent
		b.UpdatedAt = at
		budgets[i] = b
		changed++
	}
	if budgets != nil {
		s.Budgets = budgets
	}
	return s, changed
}

// Progress describes the consumption of a budget.
func Progress(b core.Budget) core.BudgetProgress {
	p := core.BudgetProgress{
		BudgetID:  b.ID,
		Limit:     b.Limit,
		Spent:     b.Spent,
		Remaining: b.Limit.Sub(b.Spent),
		Exceeded:  b.Spent.GreaterThan(b.Limit),
	}
	if b.Limit.IsPositive() {
		p.Percent = b.Spent.Div(b.Limit).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return p
}
