package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:       Expense,
		Amount:     decimal.RequireFromString("12.50"),
		CategoryID: "food",
		Date:       NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tooLong := good
	tooLong.Description = string(make([]byte, 201))

	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"bad type", Transaction{Type: "gift", Amount: decimal.NewFromInt(1), CategoryID: "c", Date: NewDate(2025, 1, 1)}, ErrInvalidType},
		{"zero amount", Transaction{Type: Income, Amount: decimal.Zero, CategoryID: "c", Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{"negative amount", Transaction{Type: Income, Amount: decimal.NewFromInt(-3), CategoryID: "c", Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{"no category", Transaction{Type: Income, Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1)}, ErrEmptyCategory},
		{"description", tooLong, ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		Name:        "Groceries",
		CategoryIDs: []string{"food"},
		Limit:       decimal.NewFromInt(300),
		Period:      PeriodMonthly,
		StartDate:   NewDate(2025, 3, 1),
		EndDate:     NewDate(2025, 3, 31),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	reserved := good
	reserved.CategoryIDs = []string{"food", TransferCategoryID}
	if err := reserved.Validate(); !errors.Is(err, ErrReservedCategory) {
		t.Errorf("Validate() = %v, want %v", err, ErrReservedCategory)
	}

	inverted := good
	inverted.EndDate = NewDate(2025, 2, 1)
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidWindow)
	}
}

func TestBudgetCounts(t *testing.T) {
	b := Budget{
		CategoryIDs: []string{"food", "transport"},
		StartDate:   NewDate(2025, 3, 1),
		EndDate:     NewDate(2025, 3, 31),
	}
	amount := decimal.NewFromInt(10)
	cases := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"expense in window", Transaction{Type: Expense, Amount: amount, CategoryID: "food", Date: NewDate(2025, 3, 15)}, true},
		{"first day", Transaction{Type: Expense, Amount: amount, CategoryID: "food", Date: NewDate(2025, 3, 1)}, true},
		{"last day", Transaction{Type: Expense, Amount: amount, CategoryID: "transport", Date: NewDate(2025, 3, 31)}, true},
		{"before window", Transaction{Type: Expense, Amount: amount, CategoryID: "food", Date: NewDate(2025, 2, 28)}, false},
		{"income", Transaction{Type: Income, Amount: amount, CategoryID: "food", Date: NewDate(2025, 3, 15)}, false},
		{"other category", Transaction{Type: Expense, Amount: amount, CategoryID: "rent", Date: NewDate(2025, 3, 15)}, false},
		{"transfer", Transaction{Type: Expense, Amount: amount, CategoryID: TransferCategoryID, Date: NewDate(2025, 3, 15)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.Counts(tc.tx); got != tc.want {
				t.Errorf("Counts() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGoalCompleted(t *testing.T) {
	g := Goal{Target: decimal.NewFromInt(100), Current: decimal.NewFromInt(99)}
	if g.Completed() {
		t.Fatalf("goal at 99/100 should not be completed")
	}
	if got := g.Remaining(); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Remaining() = %v, want 1", got)
	}
	g.Current = decimal.NewFromInt(150)
	if !g.Completed() {
		t.Fatalf("goal at 150/100 should be completed")
	}
	if got := g.Remaining(); !got.IsZero() {
		t.Errorf("Remaining() = %v, want 0", got)
	}
}

func TestTransactionSigned(t *testing.T) {
	in := Transaction{Type: Income, Amount: decimal.NewFromInt(5)}
	out := Transaction{Type: Expense, Amount: decimal.NewFromInt(5)}
	if !in.Signed().Equal(decimal.NewFromInt(5)) {
		t.Errorf("income Signed() = %v, want 5", in.Signed())
	}
	if !out.Signed().Equal(decimal.NewFromInt(-5)) {
		t.Errorf("expense Signed() = %v, want -5", out.Signed())
	}
}

func TestValidateCurrency(t *testing.T) {
	cases := map[string]bool{
		"EUR":  true,
		"USD":  true,
		"eur":  false,
		"EU":   false,
		"EURO": false,
		"E1R":  false,
		"":     false,
	}
	for code, ok := range cases {
		err := ValidateCurrency(code)
		if ok && err != nil {
			t.Errorf("ValidateCurrency(%q) = %v, want nil", code, err)
		}
		if !ok && err == nil {
			t.Errorf("ValidateCurrency(%q) = nil, want error", code)
		}
	}
}

func TestRecurringPaymentValidate(t *testing.T) {
	p := RecurringPayment{
		Name:       "Rent",
		Type:       Expense,
		Amount:     decimal.NewFromInt(800),
		CategoryID: "housing",
		Currency:   "EUR",
		Frequency:  Monthly,
		NextDate:   NewDate(2025, 1, 31),
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	p.Frequency = "fortnightly"
	if err := p.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidFrequency)
	}
}
