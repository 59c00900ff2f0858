package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/currency"
	"saldo/internal/ledger"
	"saldo/internal/services"
)

var testNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

type fakeRefresher struct {
	table currency.Table
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) (currency.Table, error) {
	f.calls++
	return f.table, f.err
}

func newTestServer(t *testing.T, configure ...func(*Deps)) (*Server, *services.LedgerService) {
	t.Helper()
	n := 0
	engine := ledger.New(
		ledger.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		ledger.WithClock(func() time.Time { return testNow }),
	)
	rates := currency.NewCache("EUR")
	rates.Store(currency.Table{
		Base:      "EUR",
		Rates:     currency.Rates{"USD": decimal.RequireFromString("1.1")},
		FetchedAt: testNow,
	})
	svc := services.NewLedgerService(engine, nil, nil, rates)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	deps := Deps{Ledger: svc}
	for _, fn := range configure {
		fn(&deps)
	}
	srv := NewServer(":0", deps)
	srv.now = func() time.Time { return testNow }
	t.Cleanup(srv.limiter.Stop)
	return srv, svc
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createAccount(t *testing.T, srv *Server, body string) core.Account {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/accounts", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/accounts = %d %s, want 201", w.Code, w.Body.String())
	}
	return decode[core.Account](t, w)
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) {
		d.Checks = []ReadinessCheck{{Name: "store", Check: func(context.Context) error { return errors.New("down") }}}
	})

	if w := do(t, srv, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", w.Code)
	}

	w := do(t, srv, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz = %d, want 503", w.Code)
	}
	body := decode[map[string]any](t, w)
	checks, _ := body["checks"].(map[string]any)
	if checks["ledger"] != "ok" || checks["store"] != "failed: down" {
		t.Errorf("checks = %v", checks)
	}
}

func TestRoutingFallbacks(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("GET /api/nope = %d %q, want JSON 404", w.Code, w.Body.String())
	}
	w = do(t, srv, http.MethodPut, "/api/transactions/", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/transactions/ = %d, want 405", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv, svc := newTestServer(t)
	acc := createAccount(t, srv, `{"title":"Checking","currency":"eur","balance":"100","include_in_total":true}`)
	if acc.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", acc.Currency)
	}

	w := do(t, srv, http.MethodPost, "/api/transactions/",
		fmt.Sprintf(`{"type":"expense","amount":"30","category_id":"food","account_id":%q,"description":" lunch "}`, acc.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/transactions/ = %d %s, want 201", w.Code, w.Body.String())
	}
	tx := decode[core.Transaction](t, w)
	if tx.Description != "lunch" {
		t.Errorf("Description = %q, want lunch", tx.Description)
	}
	if !tx.Date.Equal(core.NewDate(2025, 3, 15).Time) {
		t.Errorf("Date = %s, want 2025-03-15", tx.Date)
	}
	if a, _ := svc.Ledger().Account(acc.ID); !a.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Balance = %s, want 70", a.Balance)
	}

	w = do(t, srv, http.MethodPatch, "/api/transactions/"+tx.ID, `{"amount":"45"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH = %d %s, want 200", w.Code, w.Body.String())
	}
	if a, _ := svc.Ledger().Account(acc.ID); !a.Balance.Equal(decimal.NewFromInt(55)) {
		t.Errorf("Balance after patch = %s, want 55", a.Balance)
	}

	w = do(t, srv, http.MethodGet, "/api/transactions?from=2025-03-01&to=2025-03-31", "")
	if got := decode[[]core.Transaction](t, w); len(got) != 1 {
		t.Errorf("GET /api/transactions = %d items, want 1", len(got))
	}

	if w := do(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/transactions/"+tx.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET deleted = %d, want 404", w.Code)
	}
	if a, _ := svc.Ledger().Account(acc.ID); !a.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Balance after delete = %s, want 100", a.Balance)
	}

	w = do(t, srv, http.MethodGet, "/api/transactions", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list = %q, want []", w.Body.String())
	}
}

func TestCreateTransactionRejects(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"type":`, http.StatusBadRequest},
		{"unknown field", `{"type":"expense","amount":"1","category_id":"food","colour":"red"}`, http.StatusBadRequest},
		{"zero amount", `{"type":"expense","amount":"0","category_id":"food"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"type":"gift","amount":"1","category_id":"food"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"type":"expense","amount":"1","category_id":"travel"}`, http.StatusUnprocessableEntity},
		{"transfer category", `{"type":"expense","amount":"1","category_id":"transfer"}`, http.StatusUnprocessableEntity},
		{"unknown account", `{"type":"expense","amount":"1","category_id":"food","account_id":"ghost"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/transactions/", tt.body)
			if w.Code != tt.want {
				t.Errorf("POST = %d %s, want %d", w.Code, w.Body.String(), tt.want)
			}
		})
	}
}

func TestTransfer(t *testing.T) {
	srv, svc := newTestServer(t)
	src := createAccount(t, srv, `{"title":"Checking","currency":"EUR","balance":"100"}`)
	dst := createAccount(t, srv, `{"title":"Savings","type":"savings","currency":"EUR"}`)

	w := do(t, srv, http.MethodPost, "/api/transfers",
		fmt.Sprintf(`{"source_id":%q,"destination_id":%q,"amount":"40"}`, src.ID, dst.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/transfers = %d %s, want 201", w.Code, w.Body.String())
	}
	legs := decode[[]core.Transaction](t, w)
	if len(legs) != 2 {
		t.Fatalf("legs = %d, want 2", len(legs))
	}
	if a, _ := svc.Ledger().Account(src.ID); !a.Balance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("source balance = %s, want 60", a.Balance)
	}
	if a, _ := svc.Ledger().Account(dst.ID); !a.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("destination balance = %s, want 40", a.Balance)
	}

	if w := do(t, srv, http.MethodPatch, "/api/transactions/"+legs[0].ID, `{"amount":"1"}`); w.Code != http.StatusConflict {
		t.Errorf("PATCH transfer leg = %d, want 409", w.Code)
	}

	tests := []struct {
		name string
		body string
	}{
		{"same account", fmt.Sprintf(`{"source_id":%q,"destination_id":%q,"amount":"1"}`, src.ID, src.ID)},
		{"unknown account", fmt.Sprintf(`{"source_id":%q,"destination_id":"ghost","amount":"1"}`, src.ID)},
		{"negative amount", fmt.Sprintf(`{"source_id":%q,"destination_id":%q,"amount":"-1"}`, src.ID, dst.ID)},
	}
	for _, tt := range tests {
		if w := do(t, srv, http.MethodPost, "/api/transfers", tt.body); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: POST /api/transfers = %d, want 422", tt.name, w.Code)
		}
	}
}

func TestCategories(t *testing.T) {
	srv, _ := newTestServer(t)

	if w := do(t, srv, http.MethodDelete, "/api/categories/food", ""); w.Code != http.StatusConflict {
		t.Errorf("DELETE default category = %d, want 409", w.Code)
	}

	w := do(t, srv, http.MethodPost, "/api/categories/", `{"name":"Pets","type":"expense"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/categories/ = %d %s, want 201", w.Code, w.Body.String())
	}
	pets := decode[core.Category](t, w)

	w = do(t, srv, http.MethodPost, "/api/transactions/", fmt.Sprintf(`{"type":"expense","amount":"5","category_id":%q}`, pets.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/transactions/ = %d, want 201", w.Code)
	}
	tx := decode[core.Transaction](t, w)
	if w := do(t, srv, http.MethodDelete, "/api/categories/"+pets.ID, ""); w.Code != http.StatusConflict {
		t.Errorf("DELETE used category = %d, want 409", w.Code)
	}

	do(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, "")
	if w := do(t, srv, http.MethodDelete, "/api/categories/"+pets.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE unused category = %d, want 204", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/categories?type=income", "")
	for _, c := range decode[[]core.Category](t, w) {
		if c.Type != core.Income {
			t.Errorf("category %s has type %s, want income", c.ID, c.Type)
		}
	}
}

func TestBudgetsAndGoals(t *testing.T) {
	srv, _ := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/transactions/", `{"type":"expense","amount":"25","category_id":"food","date":"2025-03-02"}`)

	w := do(t, srv, http.MethodPost, "/api/budgets/", `{"name":"Groceries","category_ids":["food"],"limit":"100","period":"monthly"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/budgets/ = %d %s, want 201", w.Code, w.Body.String())
	}
	b := decode[core.Budget](t, w)
	if !b.StartDate.Equal(core.NewDate(2025, 3, 1).Time) || !b.EndDate.Equal(core.NewDate(2025, 3, 31).Time) {
		t.Errorf("window = %s..%s, want March 2025", b.StartDate, b.EndDate)
	}
	if !b.Spent.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Spent = %s, want 25", b.Spent)
	}

	if w := do(t, srv, http.MethodGet, "/api/budgets/"+b.ID+"/progress", ""); w.Code != http.StatusOK {
		t.Errorf("GET progress = %d, want 200", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/api/budgets/", `{"name":"X","category_ids":["nope"],"limit":"1","period":"monthly"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST budget with unknown category = %d, want 422", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/goals/", `{"name":"Trip","target":"500","currency":"eur"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/goals/ = %d %s, want 201", w.Code, w.Body.String())
	}
	g := decode[core.Goal](t, w)

	w = do(t, srv, http.MethodPost, "/api/goals/"+g.ID+"/contributions", `{"amount":"50"}`)
	if got := decode[core.Goal](t, w); !got.Current.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Current = %s, want 50", got.Current)
	}
	if w := do(t, srv, http.MethodPost, "/api/goals/"+g.ID+"/contributions", `{"amount":"-60"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("overdrawn contribution = %d, want 422", w.Code)
	}
}

func TestRecurringPayments(t *testing.T) {
	srv, _ := newTestServer(t)
	acc := createAccount(t, srv, `{"title":"Checking","currency":"EUR","balance":"1000"}`)

	w := do(t, srv, http.MethodPost, "/api/recurring-payments/", fmt.Sprintf(
		`{"name":"Rent","type":"expense","amount":"800","category_id":"housing","account_id":%q,"frequency":"monthly","next_date":"2025-03-20"}`, acc.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/recurring-payments/ = %d %s, want 201", w.Code, w.Body.String())
	}
	p := decode[core.RecurringPayment](t, w)
	if !p.Active || p.Currency != "EUR" {
		t.Errorf("payment = active %v currency %q, want active EUR", p.Active, p.Currency)
	}

	w = do(t, srv, http.MethodGet, "/api/occurrences?to=2025-05-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/occurrences = %d, want 200", w.Code)
	}
	var occ []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &occ); err != nil {
		t.Fatal(err)
	}
	if len(occ) != 3 {
		t.Errorf("occurrences = %d, want 3", len(occ))
	}

	w = do(t, srv, http.MethodPost, "/api/recurring-payments/"+p.ID+"/settle", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("settle = %d %s, want 201", w.Code, w.Body.String())
	}
	settled := decode[settlementResponse](t, w)
	if !settled.Transaction.Date.Equal(core.NewDate(2025, 3, 20).Time) {
		t.Errorf("transaction date = %s, want 2025-03-20", settled.Transaction.Date)
	}
	if !settled.Payment.NextDate.Equal(core.NewDate(2025, 4, 20).Time) {
		t.Errorf("next date = %s, want 2025-04-20", settled.Payment.NextDate)
	}

	if w := do(t, srv, http.MethodPatch, "/api/recurring-payments/"+p.ID, `{"active":false}`); w.Code != http.StatusOK {
		t.Fatalf("PATCH = %d, want 200", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/api/recurring-payments/"+p.ID+"/settle", ""); w.Code != http.StatusConflict {
		t.Errorf("settle inactive = %d, want 409", w.Code)
	}
	if w := do(t, srv, http.MethodPost, "/api/recurring-payments/ghost/settle", ""); w.Code != http.StatusNotFound {
		t.Errorf("settle unknown = %d, want 404", w.Code)
	}
}

func TestRatesAndConversion(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("upstream down")}
	srv, svc := newTestServer(t, func(d *Deps) { d.Rates = refresher })

	w := do(t, srv, http.MethodGet, "/api/convert?amount=10&from=eur&to=usd", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/convert = %d %s, want 200", w.Code, w.Body.String())
	}
	conv := decode[conversionResponse](t, w)
	if !conv.Converted.Equal(decimal.NewFromInt(11)) || conv.To != "USD" {
		t.Errorf("convert = %s %s, want 11 USD", conv.Converted, conv.To)
	}
	if w := do(t, srv, http.MethodGet, "/api/convert?amount=abc", ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad amount = %d, want 422", w.Code)
	}

	refresher.table = svc.Rates().Latest()
	w = do(t, srv, http.MethodPost, "/api/rates/refresh", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("failed refresh = %d, want 502", w.Code)
	}
	if resp := decode[ratesResponse](t, w); resp.Base != "EUR" || resp.Error == "" {
		t.Errorf("failed refresh body = %+v", resp)
	}

	noRefresher, _ := newTestServer(t)
	if w := do(t, noRefresher, http.MethodPost, "/api/rates/refresh", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("refresh without refresher = %d, want 503", w.Code)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	createAccount(t, srv, `{"title":"Checking","currency":"EUR","balance":"10"}`)

	r := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	r.Header.Set("Accept", "application/yaml")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "title: Checking") {
		t.Fatalf("GET /api/snapshot as YAML = %d %q", w.Code, w.Body.String())
	}
	exported := w.Body.String()

	target, _ := newTestServer(t)
	r = httptest.NewRequest(http.MethodPut, "/api/snapshot", strings.NewReader(exported))
	r.Header.Set("Content-Type", "application/yaml")
	w = httptest.NewRecorder()
	target.Handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/snapshot = %d %s, want 200", w.Code, w.Body.String())
	}
	if got := decode[[]core.Account](t, do(t, target, http.MethodGet, "/api/accounts/", "")); len(got) != 1 || got[0].Title != "Checking" {
		t.Errorf("accounts after import = %+v", got)
	}

	if w := do(t, target, http.MethodPut, "/api/snapshot", `{"accounts":[{"id":"a","title":"","currency":"EUR"}]}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid snapshot = %d, want 422", w.Code)
	}
}
