package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	AccountNormal  AccountType = "normal"
	AccountSavings AccountType = "savings"
	AccountCredit  AccountType = "credit"
)

type AccountType string

// AccountKind is the variant part of an account. Only credit accounts carry
// extra data.
type AccountKind interface {
	Type() AccountType
	isAccountKind()
}

type (
	NormalAccount  struct{}
	SavingsAccount struct{}
	CreditAccount  struct {
		Limit decimal.Decimal
	}
)

func (NormalAccount) Type() AccountType  { return AccountNormal }
func (SavingsAccount) Type() AccountType { return AccountSavings }
func (CreditAccount) Type() AccountType  { return AccountCredit }

func (NormalAccount) isAccountKind()  {}
func (SavingsAccount) isAccountKind() {}
func (CreditAccount) isAccountKind()  {}

// KindOf builds the variant for an account type. The limit is ignored unless
// the type is credit.
func KindOf(t AccountType, limit decimal.Decimal) (AccountKind, error) {
	switch t {
	case AccountNormal, "":
		return NormalAccount{}, nil
	case AccountSavings:
		return SavingsAccount{}, nil
	case AccountCredit:
		return CreditAccount{Limit: limit}, nil
	}
	return nil, fmt.Errorf("unknown account type %q", t)
}

type Account struct {
	ID             string
	Title          string
	Kind           AccountKind
	Currency       string
	Balance        decimal.Decimal // in Currency
	IncludeInTotal bool
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Type returns the account type, normal when no kind is set.
func (a Account) Type() AccountType {
	if a.Kind == nil {
		return AccountNormal
	}
	return a.Kind.Type()
}

// CreditLimit returns the limit of a credit account.
func (a Account) CreditLimit() (decimal.Decimal, bool) {
	if c, ok := a.Kind.(CreditAccount); ok {
		return c.Limit, true
	}
	return decimal.Zero, false
}

// Available is the spendable amount: the balance plus the limit on credit accounts.
func (a Account) Available() decimal.Decimal {
	if limit, ok := a.CreditLimit(); ok {
		return a.Balance.Add(limit)
	}
	return a.Balance
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyName
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	if limit, ok := a.CreditLimit(); ok && limit.IsNegative() {
		return errors.New("credit limit must not be negative")
	}
	return nil
}

// accountWire is the flat serialized form of an Account.
type accountWire struct {
	ID             string           `json:"id" yaml:"id"`
	Title          string           `json:"title" yaml:"title"`
	Type           AccountType      `json:"type" yaml:"type"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty" yaml:"credit_limit,omitempty"`
	Currency       string           `json:"currency" yaml:"currency"`
	Balance        decimal.Decimal  `json:"balance" yaml:"balance"`
	IncludeInTotal bool             `json:"include_in_total" yaml:"include_in_total"`
	Archived       bool             `json:"archived" yaml:"archived"`
	CreatedAt      time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" yaml:"updated_at"`
}

func (a Account) toWire() accountWire {
	w := accountWire{
		ID:             a.ID,
		Title:          a.Title,
		Type:           a.Type(),
		Currency:       a.Currency,
		Balance:        a.Balance,
		IncludeInTotal: a.IncludeInTotal,
		Archived:       a.Archived,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if limit, ok := a.CreditLimit(); ok {
		w.CreditLimit = &limit
	}
	return w
}

func (w accountWire) toAccount() (Account, error) {
	limit := decimal.Zero
	if w.CreditLimit != nil {
		limit = *w.CreditLimit
	}
	kind, err := KindOf(w.Type, limit)
	if err != nil {
		return Account{}, err
	}
	return Account{
		ID:             w.ID,
		Title:          w.Title,
		Kind:           kind,
		Currency:       w.Currency,
		Balance:        w.Balance,
		IncludeInTotal: w.IncludeInTotal,
		Archived:       w.Archived,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}, nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toWire())
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var w accountWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	acc, err := w.toAccount()
	if err != nil {
		return err
	}
	*a = acc
	return nil
}

func (a Account) MarshalYAML() (interface{}, error) {
	return a.toWire(), nil
}

func (a *Account) UnmarshalYAML(value *yaml.Node) error {
	var w accountWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	acc, err := w.toAccount()
	if err != nil {
		return err
	}
	*a = acc
	return nil
}
