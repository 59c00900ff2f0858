// Package sheets mirrors ledger transactions into an external spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Header is the first row of an exported transaction sheet.
var Header = []string{"ID", "Date", "Type", "Amount", "Currency", "Category", "Account", "Description"}

var ErrShortRow = errors.New("row has fewer columns than the header")

// Ports for outbound adapters.
type (
	// TransactionExporter keeps one row per transaction. Exporting an id that
	// is already present overwrites its row.
	TransactionExporter interface {
		Export(ctx context.Context, rows ...Row) error
		Remove(ctx context.Context, transactionID string) error
	}

	// TransactionLister reads the exported rows back.
	TransactionLister interface {
		Rows(ctx context.Context) ([]Row, error)
	}
)

// Row is a transaction flattened with the names a spreadsheet reader needs.
type Row struct {
	ID          string
	Date        core.Date
	Type        core.TransactionType
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Account     string
	Description string
}

// RowFor resolves the category and account names of t in snap. Ids are used
// when a name cannot be found.
func RowFor(t core.Transaction, snap core.Snapshot) Row {
	row := Row{
		ID:          t.ID,
		Date:        t.Date,
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.CategoryID,
		Account:     t.AccountID,
		Description: t.Description,
	}
	for _, c := range snap.Categories {
		if c.ID == t.CategoryID {
			row.Category = c.Name
			break
		}
	}
	for _, a := range snap.Accounts {
		if a.ID == t.AccountID {
			row.Account = a.Title
			row.Currency = a.Currency
			break
		}
	}
	return row
}

// Values renders the row in Header order.
func (r Row) Values() []any {
	return []any{
		r.ID,
		r.Date.String(),
		string(r.Type),
		r.Amount.StringFixed(core.AmountPlaces),
		r.Currency,
		r.Category,
		r.Account,
		r.Description,
	}
}

// ParseRow is the inverse of Values. Cells may come back as any type.
func ParseRow(cells []any) (Row, error) {
	if len(cells) < 4 {
		return Row{}, ErrShortRow
	}
	cols := make([]string, len(Header))
	for i := range cols {
		if i < len(cells) {
			cols[i] = strings.TrimSpace(fmt.Sprint(cells[i]))
		}
	}

	date, err := core.ParseDate(cols[1])
	if err != nil {
		return Row{}, fmt.Errorf("parse date %q: %w", cols[1], err)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(cols[3], ",", "."))
	if err != nil {
		return Row{}, fmt.Errorf("parse amount %q: %w", cols[3], err)
	}
	return Row{
		ID:          cols[0],
		Date:        date,
		Type:        core.TransactionType(cols[2]),
		Amount:      amount,
		Currency:    cols[4],
		Category:    cols[5],
		Account:     cols[6],
		Description: cols[7],
	}, nil
}
