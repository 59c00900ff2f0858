package http

import (
	"errors"
	"fmt"
	"strings"

	"saldo/internal/core"
)

var errSameAccount = errors.New("source and destination must differ")

func errUnknown(entity, id string) error {
	return fmt.Errorf("unknown %s %q", entity, id)
}

// sanitizeInput removes control characters except tab and newlines and trims
// whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

func upperPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*s))
	return &v
}

// monthOf returns the first and last day of d's month.
func monthOf(d core.Date) DateRange {
	first := core.NewDate(d.Year(), d.Month(), 1)
	return DateRange{From: first, To: first.AddMonthsClamped(1).AddDays(-1)}
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
