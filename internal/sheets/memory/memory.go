package memory

import (
	"context"
	"sort"
	"sync"

	"saldo/internal/sheets"
)

// Store keeps exported rows in memory, keyed by transaction id.
type Store struct {
	mu   sync.Mutex
	rows map[string]sheets.Row
}

var (
	_ sheets.TransactionExporter = (*Store)(nil)
	_ sheets.TransactionLister   = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: map[string]sheets.Row{}}
}

// Export stores or replaces the rows.
func (s *Store) Export(_ context.Context, rows ...sheets.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return nil
}

// Remove drops a row. Unknown ids are ignored.
func (s *Store) Remove(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, transactionID)
	return nil
}

// Rows returns the stored rows ordered by date, then id.
func (s *Store) Rows(_ context.Context) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
