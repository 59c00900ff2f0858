package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// TransactionInput is the caller supplied part of a new transaction.
type TransactionInput struct {
	Type        core.TransactionType
	Amount      decimal.Decimal
	CategoryID  string
	AccountID   string
	Description string
	Date        core.Date
}

// TransactionPatch lists the fields to change. Nil fields are kept.
// An empty AccountID detaches the transaction from its account.
type TransactionPatch struct {
	Type        *core.TransactionType
	Amount      *decimal.Decimal
	CategoryID  *string
	AccountID   *string
	Description *string
	Date        *core.Date
}

// Apply returns t with the patch applied.
func (p TransactionPatch) Apply(t core.Transaction) core.Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// TransferInput moves money between two accounts. ReceivedAmount is what the
// destination is credited with when the accounts use different currencies;
// zero means the same as Amount.
type TransferInput struct {
	SourceID       string
	DestinationID  string
	Amount         decimal.Decimal
	ReceivedAmount decimal.Decimal
	Description    string
	Date           core.Date
}

func (s State) addTransaction(t core.Transaction) State {
	s.Transactions = appendTo(s.Transactions, t)
	s = s.adjustAccount(t.AccountID, t.Signed(), t.UpdatedAt)
	return s.adjustBudgets(t, t.Amount, t.UpdatedAt)
}

// updateTransaction reverses the stored transaction and applies the patched
// one. Account and budget steps are independent and both reverse from the
// stored version.
func (s State) updateTransaction(id string, p TransactionPatch, at time.Time) (State, core.Transaction, bool) {
	i, ok := s.transaction(id)
	if !ok {
		return s, core.Transaction{}, false
	}
	old := s.Transactions[i]
	next := p.Apply(old)
	next.UpdatedAt = at
	s.Transactions = replaceAt(s.Transactions, i, next)

	if accountEffectChanged(old, next) {
		s = s.adjustAccount(old.AccountID, old.Signed().Neg(), at)
		s = s.adjustAccount(next.AccountID, next.Signed(), at)
	}
	if budgetEffectChanged(old, next) && (old.Type == core.Expense || next.Type == core.Expense) {
		s = s.adjustBudgets(old, old.Amount.Neg(), at)
		s = s.adjustBudgets(next, next.Amount, at)
	}
	return s, next, true
}

func accountEffectChanged(old, next core.Transaction) bool {
	return old.AccountID != next.AccountID || old.Type != next.Type || !old.Amount.Equal(next.Amount)
}

// budgetEffectChanged includes the date because budgets only count
// transactions inside their window.
func budgetEffectChanged(old, next core.Transaction) bool {
	return old.CategoryID != next.CategoryID ||
		old.Type != next.Type ||
		!old.Amount.Equal(next.Amount) ||
		!old.Date.Equal(next.Date.Time)
}

func (s State) deleteTransaction(id string, at time.Time) (State, core.Transaction, bool) {
	i, ok := s.transaction(id)
	if !ok {
		return s, core.Transaction{}, false
	}
	old := s.Transactions[i]
	s = s.adjustAccount(old.AccountID, old.Signed().Neg(), at)
	s = s.adjustBudgets(old, old.Amount.Neg(), at)
	s.Transactions = removeAt(s.Transactions, i)
	return s, old, true
}

// transfer debits the source, credits the destination and records one leg on
// each side under the transfer category.
func (s State) transfer(in TransferInput, out, income core.Transaction) (State, bool) {
	if in.SourceID == in.DestinationID || !in.Amount.IsPositive() {
		return s, false
	}
	if _, ok := s.account(in.SourceID); !ok {
		return s, false
	}
	if _, ok := s.account(in.DestinationID); !ok {
		return s, false
	}
	at := out.UpdatedAt
	s = s.adjustAccount(in.SourceID, out.Signed(), at)
	s = s.adjustAccount(in.DestinationID, income.Signed(), at)
	s.Transactions = appendTo(s.Transactions, out, income)
	return s, true
}

func transferLegs(in TransferInput, newID func() string, at time.Time) (core.Transaction, core.Transaction) {
	received := in.ReceivedAmount
	if !received.IsPositive() {
		received = in.Amount
	}
	date := in.Date
	if date.IsZero() {
		date = core.DateOf(at)
	}
	leg := func(typ core.TransactionType, amount decimal.Decimal, account string) core.Transaction {
		return core.Transaction{
			ID:          newID(),
			Type:        typ,
			Amount:      amount,
			CategoryID:  core.TransferCategoryID,
			AccountID:   account,
			Description: in.Description,
			Date:        date,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
	}
	return leg(core.Expense, in.Amount, in.SourceID), leg(core.Income, received, in.DestinationID)
}
