// Package currency converts amounts between currencies and keeps the
// exchange rate table fresh.
//
// A rate table maps a currency code to the number of units of that currency
// worth one unit of the reference currency. The reference currency itself
// has rate 1.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rates maps currency codes to units per one unit of the reference currency.
type Rates map[string]decimal.Decimal

// Rate returns the rate for code. Unknown codes and non-positive rates count as 1.
func (r Rates) Rate(code string) decimal.Decimal {
	rate, ok := r[strings.ToUpper(code)]
	if !ok || !rate.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return rate
}

// Clone returns an independent copy of the table.
func (r Rates) Clone() Rates {
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Convert converts amount from one currency to another through the reference
// currency. When the codes match the amount is returned untouched.
func Convert(amount decimal.Decimal, from, to string, rates Rates) decimal.Decimal {
	if strings.EqualFold(from, to) {
		return amount
	}
	return amount.Div(rates.Rate(from)).Mul(rates.Rate(to))
}
