package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferCategoryID tags both legs of a transfer. It is not a user category
// and never matches a budget.
const TransferCategoryID = "transfer"

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
	PeriodCustom  BudgetPeriod = "custom"
)

type (
	TransactionType string
	Frequency       string
	BudgetPeriod    string

	Transaction struct {
		ID          string          `json:"id" yaml:"id"`
		Type        TransactionType `json:"type" yaml:"type"`
		Amount      decimal.Decimal `json:"amount" yaml:"amount"`
		CategoryID  string          `json:"category_id" yaml:"category_id"`
		AccountID   string          `json:"account_id,omitempty" yaml:"account_id,omitempty"` // empty when not tied to an account
		Description string          `json:"description" yaml:"description"`
		Date        Date            `json:"date" yaml:"date"`
		CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
	}

	Category struct {
		ID        string          `json:"id" yaml:"id"`
		Name      string          `json:"name" yaml:"name"`
		Icon      string          `json:"icon,omitempty" yaml:"icon,omitempty"`
		Color     string          `json:"color,omitempty" yaml:"color,omitempty"`
		Type      TransactionType `json:"type" yaml:"type"`
		IsDefault bool            `json:"is_default" yaml:"is_default"`
	}

	Budget struct {
		ID          string          `json:"id" yaml:"id"`
		Name        string          `json:"name" yaml:"name"`
		CategoryIDs []string        `json:"category_ids" yaml:"category_ids"`
		Limit       decimal.Decimal `json:"limit" yaml:"limit"`
		Period      BudgetPeriod    `json:"period" yaml:"period"`
		StartDate   Date            `json:"start_date" yaml:"start_date"`
		EndDate     Date            `json:"end_date" yaml:"end_date"`
		Spent       decimal.Decimal `json:"spent" yaml:"spent"` // cached, see ledger.SpentFor
		CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
	}

	Goal struct {
		ID         string          `json:"id" yaml:"id"`
		Name       string          `json:"name" yaml:"name"`
		Target     decimal.Decimal `json:"target" yaml:"target"`
		Current    decimal.Decimal `json:"current" yaml:"current"`
		TargetDate Date            `json:"target_date" yaml:"target_date"`
		Currency   string          `json:"currency" yaml:"currency"`
		CreatedAt  time.Time       `json:"created_at" yaml:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at" yaml:"updated_at"`
	}

	Reminder struct {
		Enabled    bool `json:"enabled" yaml:"enabled"`
		DaysBefore int  `json:"days_before" yaml:"days_before"`
	}

	RecurringPayment struct {
		ID         string          `json:"id" yaml:"id"`
		Name       string          `json:"name" yaml:"name"`
		Type       TransactionType `json:"type" yaml:"type"`
		Amount     decimal.Decimal `json:"amount" yaml:"amount"`
		CategoryID string          `json:"category_id" yaml:"category_id"`
		AccountID  string          `json:"account_id,omitempty" yaml:"account_id,omitempty"`
		Currency   string          `json:"currency" yaml:"currency"`
		Frequency  Frequency       `json:"frequency" yaml:"frequency"`
		NextDate   Date            `json:"next_date" yaml:"next_date"` // anchor for projection
		Active     bool            `json:"active" yaml:"active"`
		Paid       bool            `json:"paid" yaml:"paid"`
		Reminder   Reminder        `json:"reminder" yaml:"reminder"`
		CreatedAt  time.Time       `json:"created_at" yaml:"created_at"`
		UpdatedAt  time.Time       `json:"updated_at" yaml:"updated_at"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidPeriod      = errors.New("invalid budget period")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyCategory      = errors.New("empty category")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrReservedCategory   = errors.New("category id is reserved")
	ErrInvalidWindow      = errors.New("end date must not be before start date")
)

// Signed returns the effect of the transaction on an account balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsTransfer reports whether the transaction is one leg of a transfer.
func (t Transaction) IsTransfer() bool {
	return t.CategoryID == TransferCategoryID
}

func (tt TransactionType) Valid() bool {
	return tt == Income || tt == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// Completed reports whether the goal reached its target.
func (g Goal) Completed() bool {
	return g.Current.GreaterThanOrEqual(g.Target)
}

// Remaining is the amount still missing to reach the target, never negative.
func (g Goal) Remaining() decimal.Decimal {
	rest := g.Target.Sub(g.Current)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Covers reports whether the budget counts expenses in the given category.
func (b Budget) Covers(categoryID string) bool {
	if categoryID == TransferCategoryID {
		return false
	}
	for _, id := range b.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Counts reports whether a transaction belongs to the budget's aggregate.
func (b Budget) Counts(t Transaction) bool {
	return t.Type == Expense && b.Covers(t.CategoryID) && t.Date.Within(b.StartDate, b.EndDate)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCurrency accepts three letter upper case codes.
func ValidateCurrency(code string) error {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return t.Date.Validate()
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if c.ID == TransferCategoryID {
		return ErrReservedCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.CategoryIDs) == 0 {
		return ErrEmptyCategory
	}
	for _, id := range b.CategoryIDs {
		if id == TransferCategoryID {
			return ErrReservedCategory
		}
	}
	if err := ValidateAmount(b.Limit); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if err := b.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if err := b.EndDate.Validate(); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return ErrInvalidWindow
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateAmount(g.Target); err != nil {
		return err
	}
	if g.Current.IsNegative() {
		return ErrInvalidAmount
	}
	return ValidateCurrency(g.Currency)
}

func (p RecurringPayment) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(p.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if err := ValidateCurrency(p.Currency); err != nil {
		return err
	}
	if !p.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if p.Reminder.DaysBefore < 0 {
		return errors.New("reminder days must not be negative")
	}
	if err := p.NextDate.Validate(); err != nil {
		return fmt.Errorf("invalid next date: %w", err)
	}
	return nil
}
