package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves the current rate table.
type Fetcher interface {
	Fetch(ctx context.Context) (Table, error)
}

var ErrEmptyTable = errors.New("rate table is empty")

// HTTPFetcher reads a JSON document of the form
// {"base": "USD", "rates": {"EUR": 0.92, "GBP": 0.79}}.
type HTTPFetcher struct {
	client *http.Client
	url    string
	now    func() time.Time
}

func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{client: client, url: url, now: time.Now}
}

type ratesResponse struct {
	Base  string `json:"base"`
	Rates Rates  `json:"rates"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Table{}, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Table{}, fmt.Errorf("decode rates: %w", err)
	}
	if body.Base == "" || len(body.Rates) == 0 {
		return Table{}, ErrEmptyTable
	}
	return Table{Base: body.Base, Rates: body.Rates, FetchedAt: f.now().UTC()}.Normalize(), nil
}
