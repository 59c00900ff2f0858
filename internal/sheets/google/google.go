package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"saldo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors transactions into one sheet of a spreadsheet, one row per
// transaction with the transaction id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// serializes the read-locate-write sequences so two exports never pick the same row
	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var (
	_ sheets.TransactionExporter = (*Client)(nil)
	_ sheets.TransactionLister   = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	credentials, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheetName)
	return NewWithService(svc, cfg.SpreadsheetID, sheetName), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// a1 builds an A1 range on the client's sheet.
func (c *Client) a1(cells string) string {
	name := c.sheetName
	if strings.ContainsAny(name, " '!") {
		name = "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name + "!" + cells
}

// rowsByID maps transaction ids to their 1-based row numbers and reports
// whether the sheet holds anything at all.
func (c *Client) rowsByID(ctx context.Context) (map[string]int, bool, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A:A")).Context(ctx).Do()
	if err != nil {
		return nil, false, fmt.Errorf("read ids: %w", err)
	}
	out := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id != "" {
			out[id] = i + 1
		}
	}
	return out, len(resp.Values) > 0, nil
}

// Export overwrites the rows of known ids and appends the rest.
func (c *Client) Export(ctx context.Context, rows ...sheets.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, hasHeader, err := c.rowsByID(ctx)
	if err != nil {
		return err
	}
	if !hasHeader {
		if err := c.writeHeader(ctx); err != nil {
			return err
		}
	}

	var updates []*gsheet.ValueRange
	var appends [][]any
	for _, r := range rows {
		if n, ok := existing[r.ID]; ok {
			updates = append(updates, &gsheet.ValueRange{
				Range:  c.a1(fmt.Sprintf("A%d:H%d", n, n)),
				Values: [][]any{r.Values()},
			})
			continue
		}
		appends = append(appends, r.Values())
	}

	if len(updates) > 0 {
		_, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             updates,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %d rows in %s: %w", len(updates), c.sheetName, err)
		}
	}
	if len(appends) > 0 {
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:H"), &gsheet.ValueRange{Values: appends}).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append %d rows to %s: %w", len(appends), c.sheetName, err)
		}
	}

	slog.DebugContext(ctx, "Exported transactions to sheet",
		"sheet", c.sheetName,
		"updated", len(updates),
		"appended", len(appends))
	return nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.a1("A1:H1"), &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheetName, err)
	}
	return nil
}

// Remove deletes the row of a transaction. Unknown ids are ignored.
func (c *Client) Remove(ctx context.Context, transactionID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, _, err := c.rowsByID(ctx)
	if err != nil {
		return err
	}
	n, ok := existing[transactionID]
	if !ok {
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(n - 1),
					EndIndex:        int64(n),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete row %d from %s: %w", n, c.sheetName, err)
	}
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

// Rows reads every exported row. Rows that do not parse are skipped.
func (c *Client) Rows(ctx context.Context) ([]sheets.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A:H")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheetName, err)
	}
	var out []sheets.Row
	for i, cells := range resp.Values {
		if i == 0 {
			continue
		}
		row, err := sheets.ParseRow(cells)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable sheet row", "row", i+1, "error", err)
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
