package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets API calls the client makes against
// an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	grid    [][]any
	deletes int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/values/Tx!A:A"):
		var col [][]any
		for _, row := range f.grid {
			col = append(col, row[:1])
		}
		writeJSON(w, map[string]any{"values": col})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/values/Tx!A:H"):
		writeJSON(w, map[string]any{"values": f.grid})
	case r.Method == http.MethodPut && strings.HasSuffix(path, "/values/Tx!A1:H1"):
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		if len(f.grid) == 0 {
			f.grid = append(f.grid, nil)
		}
		f.grid[0] = vr.Values[0]
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/values:batchUpdate"):
		var req gsheet.BatchUpdateValuesRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, vr := range req.Data {
			var n int
			fmt.Sscanf(strings.TrimPrefix(vr.Range, "Tx!A"), "%d", &n)
			f.grid[n-1] = vr.Values[0]
		}
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.grid = append(f.grid, vr.Values...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			d := rq.DeleteDimension.Range
			f.grid = append(f.grid[:d.StartIndex], f.grid[d.EndIndex:]...)
			f.deletes++
		}
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sid"):
		writeJSON(w, map[string]any{"sheets": []any{
			map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Other"}},
			map[string]any{"properties": map[string]any{"sheetId": 42, "title": "Tx"}},
		}})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sid", "Tx"), fake
}

func row(id string, day int, amount string) sheets.Row {
	return sheets.Row{
		ID: id, Date: core.NewDate(2025, 3, day), Type: core.Expense,
		Amount: decimal.RequireFromString(amount), Currency: "EUR", Category: "Food", Account: "Main",
		Description: "row " + id,
	}
}

func TestClient_ExportAppendsAndUpdates(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := c.Export(ctx, row("t1", 1, "10"), row("t2", 2, "20")); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(fake.grid) != 3 {
		t.Fatalf("grid rows = %d, want header + 2", len(fake.grid))
	}
	if fake.grid[0][0] != "ID" {
		t.Errorf("header = %v, want ID first", fake.grid[0])
	}

	if err := c.Export(ctx, row("t1", 1, "11"), row("t3", 3, "30")); err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	rows, err := c.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(Rows()) = %d, want 3", len(rows))
	}
	if rows[0].ID != "t1" || !rows[0].Amount.Equal(decimal.RequireFromString("11")) {
		t.Errorf("Rows()[0] = %+v, want t1 updated to 11", rows[0])
	}
}

func TestClient_Remove(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := c.Export(ctx, row("t1", 1, "10"), row("t2", 2, "20")); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if err := c.Remove(ctx, "t1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := c.Remove(ctx, "unknown"); err != nil {
		t.Errorf("Remove(unknown) error = %v, want nil", err)
	}
	if fake.deletes != 1 {
		t.Errorf("row deletions = %d, want 1", fake.deletes)
	}
	rows, _ := c.Rows(ctx)
	if len(rows) != 1 || rows[0].ID != "t2" {
		t.Errorf("Rows() = %+v, want only t2", rows)
	}
	if c.sheetID == nil || *c.sheetID != 42 {
		t.Errorf("cached sheet id = %v, want 42", c.sheetID)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetName: "Tx"}
	if err := c.Export(context.Background(), row("t1", 1, "1")); err == nil {
		t.Error("Export() error = nil, want error")
	}
	if err := c.Remove(context.Background(), "t1"); err == nil {
		t.Error("Remove() error = nil, want error")
	}
	if _, err := c.Rows(context.Background()); err == nil {
		t.Error("Rows() error = nil, want error")
	}
}

func TestNew_MissingSettings(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Errorf("New() without spreadsheet = %v, want spreadsheet id error", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sid"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("New() without credentials = %v, want credentials error", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "sid", CredentialsFile: "/non/existent.json"}); err == nil {
		t.Error("New() with missing credentials file error = nil, want error")
	}
}

func TestA1Quoting(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{"Tx", "Tx!A:A"},
		{"2025 Ledger", "'2025 Ledger'!A:A"},
		{"Bob's", "'Bob''s'!A:A"},
	}
	for _, tt := range tests {
		c := &Client{sheetName: tt.sheet}
		if got := c.a1("A:A"); got != tt.want {
			t.Errorf("a1(%q) = %q, want %q", tt.sheet, got, tt.want)
		}
	}
}
