package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"saldo/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"rent"}`, ""},
		{"empty", ``, "request body is empty"},
		{"unknown field", `{"name":"rent","extra":1}`, "unknown field"},
		{"malformed", `{"name":`, "invalid JSON body"},
		{"trailing object", `{"name":"a"}{"name":"b"}`, "single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var p payload
			err := decodeJSON(w, r, &p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				if p.Name != "rent" {
					t.Errorf("Name = %q, want rent", p.Name)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("decodeJSON() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	var p struct {
		Name string `json:"name"`
	}
	err := decodeJSON(w, r, &p)
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		t.Errorf("decodeJSON() error = %v, want *http.MaxBytesError", err)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantVersion int64
		wantErr     bool
	}{
		{"json", "application/json", `{"version":4,"transactions":[]}`, 4, false},
		{"yaml", "application/yaml; charset=utf-8", "version: 9\ntransactions: []\n", 9, false},
		{"x-yaml", "application/x-yaml", "version: 2\n", 2, false},
		{"empty", "application/json", "", 0, true},
		{"bad yaml", "text/yaml", "version: [", 0, true},
		{"yaml sent as json", "application/json", "version: 2\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			snap, err := decodeSnapshot(httptest.NewRecorder(), r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeSnapshot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && snap.Version != tt.wantVersion {
				t.Errorf("Version = %d, want %d", snap.Version, tt.wantVersion)
			}
		})
	}
}

func TestWantsYAML(t *testing.T) {
	tests := []struct {
		target string
		accept string
		want   bool
	}{
		{"/", "", false},
		{"/?format=yaml", "", true},
		{"/?format=YML", "", true},
		{"/?format=json", "application/yaml", false},
		{"/", "application/json, application/yaml;q=0.9", true},
		{"/", "text/html", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.accept != "" {
			r.Header.Set("Accept", tt.accept)
		}
		if got := wantsYAML(r); got != tt.want {
			t.Errorf("wantsYAML(%q, Accept %q) = %v, want %v", tt.target, tt.accept, got, tt.want)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	defaults := DateRange{From: core.NewDate(2025, 3, 1), To: core.NewDate(2025, 3, 31)}
	tests := []struct {
		name     string
		query    string
		wantFrom core.Date
		wantTo   core.Date
		wantErr  bool
	}{
		{"defaults", "", defaults.From, defaults.To, false},
		{"both", "from=2025-01-05&to=2025-02-10", core.NewDate(2025, 1, 5), core.NewDate(2025, 2, 10), false},
		{"only to", "to=2025-04-30", defaults.From, core.NewDate(2025, 4, 30), false},
		{"same day", "from=2025-03-10&to=2025-03-10", core.NewDate(2025, 3, 10), core.NewDate(2025, 3, 10), false},
		{"inverted", "from=2025-03-10&to=2025-03-09", core.Date{}, core.Date{}, true},
		{"bad from", "from=10/03/2025", core.Date{}, core.Date{}, true},
		{"bad to", "to=2025-13-01", core.Date{}, core.Date{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseDateRange(q, defaults)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("ParseDateRange() error = %T, want *ValidationError", err)
				}
				return
			}
			if !got.From.Equal(tt.wantFrom.Time) || !got.To.Equal(tt.wantTo.Time) {
				t.Errorf("ParseDateRange() = %s..%s, want %s..%s", got.From, got.To, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		query    string
		fallback string
		want     string
		wantErr  bool
	}{
		{"currency=usd", "EUR", "USD", false},
		{"currency=%20gbp%20", "EUR", "GBP", false},
		{"", "EUR", "EUR", false},
		{"currency=euro", "EUR", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := ParseCurrency(q, "currency", tt.fallback)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCurrency(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestMonthOf(t *testing.T) {
	tests := []struct {
		d        core.Date
		from, to core.Date
	}{
		{core.NewDate(2025, 2, 14), core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28)},
		{core.NewDate(2024, 2, 29), core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29)},
		{core.NewDate(2025, 12, 31), core.NewDate(2025, 12, 1), core.NewDate(2025, 12, 31)},
	}
	for _, tt := range tests {
		got := monthOf(tt.d)
		if !got.From.Equal(tt.from.Time) || !got.To.Equal(tt.to.Time) {
			t.Errorf("monthOf(%s) = %s..%s, want %s..%s", tt.d, got.From, got.To, tt.from, tt.to)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  rent  ", "rent"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
