package currency

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Table is a rate table anchored to Base.
type Table struct {
	Base      string    `json:"base"`
	Rates     Rates     `json:"rates"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Normalize upper-cases codes, drops non-positive rates and pins the base to 1.
func (t Table) Normalize() Table {
	out := Table{Base: strings.ToUpper(t.Base), FetchedAt: t.FetchedAt, Rates: make(Rates, len(t.Rates)+1)}
	for code, rate := range t.Rates {
		if rate.IsPositive() {
			out.Rates[strings.ToUpper(code)] = rate
		}
	}
	if out.Base != "" {
		out.Rates[out.Base] = decimal.NewFromInt(1)
	}
	return out
}

// Convert converts using this table.
func (t Table) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return Convert(amount, from, to, t.Rates)
}

// Cache holds the last rate table that was fetched successfully.
// It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	table  Table
	loaded bool
}

// NewCache returns a cache holding an identity table for the reference currency.
func NewCache(reference string) *Cache {
	return &Cache{table: Table{Base: reference}.Normalize()}
}

// Latest returns a copy of the cached table.
func (c *Cache) Latest() Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.table
	t.Rates = t.Rates.Clone()
	return t
}

// Loaded reports whether a real table has ever been stored.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Store replaces the cached table.
func (c *Cache) Store(t Table) {
	t = t.Normalize()
	c.mu.Lock()
	c.table = t
	c.loaded = true
	c.mu.Unlock()
}
