// Package recurrence projects recurring payment definitions onto calendar dates.
//
// Each frequency has its own Stepper strategy. Occurrences are always computed
// from the anchor (anchor + n steps) so that month-end clamping never drifts:
// an anchor on the 31st yields Feb 28 and then Mar 31, not Mar 28.
package recurrence

import (
	"fmt"
	"sync"

	"saldo/internal/core"
)

// Stepper is the strategy interface for one frequency.
type Stepper interface {
	// Nth returns the occurrence n steps after anchor. Nth(anchor, 0) is the anchor.
	Nth(anchor core.Date, n int) core.Date
	// Skip returns a step count whose occurrence is not after target.
	// It lets the projector jump close to a distant window.
	Skip(anchor, target core.Date) int
}

// DayStepper advances a fixed number of days.
type DayStepper struct {
	Days int
}

func (s DayStepper) Nth(anchor core.Date, n int) core.Date {
	return anchor.AddDays(n * s.Days)
}

func (s DayStepper) Skip(anchor, target core.Date) int {
	if s.Days <= 0 {
		return 0
	}
	days := anchor.DaysUntil(target)
	if days <= 0 {
		return 0
	}
	return days / s.Days
}

// MonthStepper advances whole calendar months, clamping to the last day of
// shorter months.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Nth(anchor core.Date, n int) core.Date {
	return anchor.AddMonthsClamped(n * s.Months)
}

func (s MonthStepper) Skip(anchor, target core.Date) int {
	if s.Months <= 0 {
		return 0
	}
	months := (target.Year()-anchor.Year())*12 + target.Month() - anchor.Month()
	n := months/s.Months - 1
	if n < 0 {
		return 0
	}
	return n
}

var (
	steppersMu sync.RWMutex
	steppers   = map[core.Frequency]Stepper{
		core.Daily:    DayStepper{Days: 1},
		core.Weekly:   DayStepper{Days: 7},
		core.Biweekly: DayStepper{Days: 14},
		core.Monthly:  MonthStepper{Months: 1},
		core.Yearly:   MonthStepper{Months: 12},
	}
)

// StepperFor returns the stepper registered for a frequency.
func StepperFor(freq core.Frequency) (Stepper, error) {
	steppersMu.RLock()
	defer steppersMu.RUnlock()
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", freq)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for a frequency.
func RegisterStepper(freq core.Frequency, s Stepper) {
	steppersMu.Lock()
	steppers[freq] = s
	steppersMu.Unlock()
}
