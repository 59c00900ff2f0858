package recurrence

import (
	"sort"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// MaxIterations bounds every projection loop. It only matters for malformed
// steppers; real windows finish far below it.
const MaxIterations = 10000

// Project returns the dates inside [start, end] on which a definition anchored
// at anchor with the given frequency falls, in ascending order.
//
// Occurrences before the anchor are never produced. When no stepped occurrence
// lands in the window but the anchor does, the anchor is returned.
func Project(anchor core.Date, freq core.Frequency, start, end core.Date) []core.Date {
	if end.Before(start.Time) {
		return nil
	}

	var out []core.Date
	if s, err := StepperFor(freq); err == nil {
		out = collect(s, anchor, start, end)
	}
	if len(out) == 0 && anchor.Within(start, end) {
		return []core.Date{anchor}
	}
	return out
}

func collect(s Stepper, anchor, start, end core.Date) []core.Date {
	n := 0
	if anchor.Before(start.Time) {
		n = s.Skip(anchor, start)
	}
	cur := s.Nth(anchor, n)

	var out []core.Date
	for i := 0; i < MaxIterations; i++ {
		if cur.After(end.Time) {
			break
		}
		if !cur.Before(start.Time) {
			out = append(out, cur)
		}
		n++
		next := s.Nth(anchor, n)
		if !next.After(cur.Time) {
			break
		}
		cur = next
	}
	return out
}

// Next returns the first occurrence strictly after the given date.
func Next(anchor core.Date, freq core.Frequency, after core.Date) (core.Date, bool) {
	s, err := StepperFor(freq)
	if err != nil {
		return core.Date{}, false
	}
	n := 0
	if anchor.Before(after.Time) {
		n = s.Skip(anchor, after)
	}
	cur := s.Nth(anchor, n)
	for i := 0; i < MaxIterations; i++ {
		if cur.After(after.Time) {
			return cur, true
		}
		n++
		next := s.Nth(anchor, n)
		if !next.After(cur.Time) {
			return core.Date{}, false
		}
		cur = next
	}
	return core.Date{}, false
}

// ProjectPayment projects a recurring payment. Inactive payments have no occurrences.
func ProjectPayment(p core.RecurringPayment, start, end core.Date) []core.Date {
	if !p.Active {
		return nil
	}
	return Project(p.NextDate, p.Frequency, start, end)
}

// Occurrence is one projected date of a recurring payment.
type Occurrence struct {
	PaymentID string               `json:"payment_id"`
	Name      string               `json:"name"`
	Type      core.TransactionType `json:"type"`
	Date      core.Date            `json:"date"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
}

// Upcoming projects every payment into the window and returns the occurrences
// ordered by date, then by payment id.
func Upcoming(payments []core.RecurringPayment, start, end core.Date) []Occurrence {
	var out []Occurrence
	for _, p := range payments {
		for _, date := range ProjectPayment(p, start, end) {
			out = append(out, Occurrence{
				PaymentID: p.ID,
				Name:      p.Name,
				Type:      p.Type,
				Date:      date,
				Amount:    p.Amount,
				Currency:  p.Currency,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].PaymentID < out[j].PaymentID
	})
	return out
}

// ReminderDue returns the occurrence a reminder should be sent for today, if any.
// Paid, inactive and reminder-less payments never remind.
func ReminderDue(p core.RecurringPayment, today core.Date) (core.Date, bool) {
	if !p.Active || p.Paid || !p.Reminder.Enabled {
		return core.Date{}, false
	}
	dates := Project(p.NextDate, p.Frequency, today, today.AddDays(p.Reminder.DaysBefore))
	if len(dates) == 0 {
		return core.Date{}, false
	}
	return dates[0], true
}
