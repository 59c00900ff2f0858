package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category id.
type CategoryAmount struct {
	CategoryID string          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// CurrencyTotal is the sum of the balances held in one currency.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Totals is a cross-currency summary of the accounts included in totals.
type Totals struct {
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	ByCurrency []CurrencyTotal `json:"by_currency"`
}

// BudgetProgress describes how much of a budget has been consumed.
type BudgetProgress struct {
	BudgetID  string          `json:"budget_id"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Exceeded  bool            `json:"exceeded"`
}
