package core

import (
	"fmt"
	"time"
)

// Snapshot is the plain serializable form of the whole ledger.
// Derived fields (budget spent, account balances) are carried as they were
// when the snapshot was taken and may be stale.
type Snapshot struct {
	Version           int64              `json:"version" yaml:"version"`
	TakenAt           time.Time          `json:"taken_at" yaml:"taken_at"`
	Accounts          []Account          `json:"accounts" yaml:"accounts"`
	Transactions      []Transaction      `json:"transactions" yaml:"transactions"`
	Categories        []Category         `json:"categories" yaml:"categories"`
	Budgets           []Budget           `json:"budgets" yaml:"budgets"`
	Goals             []Goal             `json:"goals" yaml:"goals"`
	RecurringPayments []RecurringPayment `json:"recurring_payments" yaml:"recurring_payments"`
}

// Transaction returns the transaction with the given id.
func (s Snapshot) Transaction(id string) (Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// RecurringPayment returns the recurring payment with the given id.
func (s Snapshot) RecurringPayment(id string) (RecurringPayment, bool) {
	for _, p := range s.RecurringPayments {
		if p.ID == id {
			return p, true
		}
	}
	return RecurringPayment{}, false
}

// Validate checks every entity of the snapshot and rejects missing or
// duplicated ids within a collection.
func (s Snapshot) Validate() error {
	if s.Version < 0 {
		return fmt.Errorf("negative version %d", s.Version)
	}
	checks := []struct {
		kind string
		ids  []string
		errs []error
	}{
		{kind: "account"},
		{kind: "transaction"},
		{kind: "category"},
		{kind: "budget"},
		{kind: "goal"},
		{kind: "recurring payment"},
	}
	for _, a := range s.Accounts {
		checks[0].ids = append(checks[0].ids, a.ID)
		checks[0].errs = append(checks[0].errs, a.Validate())
	}
	for _, t := range s.Transactions {
		checks[1].ids = append(checks[1].ids, t.ID)
		checks[1].errs = append(checks[1].errs, t.Validate())
	}
	for _, c := range s.Categories {
		checks[2].ids = append(checks[2].ids, c.ID)
		checks[2].errs = append(checks[2].errs, c.Validate())
	}
	for _, b := range s.Budgets {
		checks[3].ids = append(checks[3].ids, b.ID)
		checks[3].errs = append(checks[3].errs, b.Validate())
	}
	for _, g := range s.Goals {
		checks[4].ids = append(checks[4].ids, g.ID)
		checks[4].errs = append(checks[4].errs, g.Validate())
	}
	for _, p := range s.RecurringPayments {
		checks[5].ids = append(checks[5].ids, p.ID)
		checks[5].errs = append(checks[5].errs, p.Validate())
	}

	for _, c := range checks {
		seen := make(map[string]bool, len(c.ids))
		for i, id := range c.ids {
			if id == "" {
				return fmt.Errorf("%s #%d: missing id", c.kind, i+1)
			}
			if seen[id] {
				return fmt.Errorf("%s %q: duplicate id", c.kind, id)
			}
			seen[id] = true
			if err := c.errs[i]; err != nil {
				return fmt.Errorf("%s %q: %w", c.kind, id, err)
			}
		}
	}
	return nil
}
