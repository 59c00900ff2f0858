package recurrence

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func dates(ds ...core.Date) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}

func TestProject(t *testing.T) {
	tests := []struct {
		name       string
		anchor     core.Date
		freq       core.Frequency
		start, end core.Date
		want       []string
	}{
		{
			name:   "monthly clamp into february",
			anchor: core.NewDate(2025, 1, 31),
			freq:   core.Monthly,
			start:  core.NewDate(2025, 2, 1),
			end:    core.NewDate(2025, 2, 28),
			want:   []string{"2025-02-28"},
		},
		{
			name:   "monthly keeps anchor day after short month",
			anchor: core.NewDate(2025, 1, 31),
			freq:   core.Monthly,
			start:  core.NewDate(2025, 1, 1),
			end:    core.NewDate(2025, 4, 30),
			want:   []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"},
		},
		{
			name:   "monthly leap year",
			anchor: core.NewDate(2024, 1, 30),
			freq:   core.Monthly,
			start:  core.NewDate(2024, 2, 1),
			end:    core.NewDate(2024, 3, 31),
			want:   []string{"2024-02-29", "2024-03-30"},
		},
		{
			name:   "daily inclusive window",
			anchor: core.NewDate(2025, 3, 1),
			freq:   core.Daily,
			start:  core.NewDate(2025, 3, 5),
			end:    core.NewDate(2025, 3, 7),
			want:   []string{"2025-03-05", "2025-03-06", "2025-03-07"},
		},
		{
			name:   "weekly",
			anchor: core.NewDate(2025, 1, 6),
			freq:   core.Weekly,
			start:  core.NewDate(2025, 1, 10),
			end:    core.NewDate(2025, 1, 31),
			want:   []string{"2025-01-13", "2025-01-20", "2025-01-27"},
		},
		{
			name:   "biweekly",
			anchor: core.NewDate(2025, 1, 6),
			freq:   core.Biweekly,
			start:  core.NewDate(2025, 1, 1),
			end:    core.NewDate(2025, 2, 28),
			want:   []string{"2025-01-06", "2025-01-20", "2025-02-03", "2025-02-17"},
		},
		{
			name:   "yearly leap day clamps",
			anchor: core.NewDate(2024, 2, 29),
			freq:   core.Yearly,
			start:  core.NewDate(2025, 1, 1),
			end:    core.NewDate(2028, 12, 31),
			want:   []string{"2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
		},
		{
			name:   "anchor after window",
			anchor: core.NewDate(2025, 6, 1),
			freq:   core.Monthly,
			start:  core.NewDate(2025, 1, 1),
			end:    core.NewDate(2025, 5, 31),
			want:   []string{},
		},
		{
			name:   "no backward projection",
			anchor: core.NewDate(2025, 3, 15),
			freq:   core.Monthly,
			start:  core.NewDate(2025, 1, 1),
			end:    core.NewDate(2025, 3, 31),
			want:   []string{"2025-03-15"},
		},
		{
			name:   "narrow window between occurrences",
			anchor: core.NewDate(2025, 1, 1),
			freq:   core.Monthly,
			start:  core.NewDate(2025, 1, 10),
			end:    core.NewDate(2025, 1, 20),
			want:   []string{},
		},
		{
			name:   "distant window",
			anchor: core.NewDate(2000, 1, 1),
			freq:   core.Daily,
			start:  core.NewDate(2060, 1, 1),
			end:    core.NewDate(2060, 1, 2),
			want:   []string{"2060-01-01", "2060-01-02"},
		},
		{
			name:   "inverted window",
			anchor: core.NewDate(2025, 1, 1),
			freq:   core.Daily,
			start:  core.NewDate(2025, 2, 1),
			end:    core.NewDate(2025, 1, 1),
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dates(Project(tt.anchor, tt.freq, tt.start, tt.end)...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Project() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectUnknownFrequencyFallsBackToAnchor(t *testing.T) {
	anchor := core.NewDate(2025, 5, 10)
	got := dates(Project(anchor, "fortnightly", core.NewDate(2025, 5, 1), core.NewDate(2025, 5, 31))...)
	if !reflect.DeepEqual(got, []string{"2025-05-10"}) {
		t.Errorf("Project() = %v, want [2025-05-10]", got)
	}
}

type stuckStepper struct{}

func (stuckStepper) Nth(anchor core.Date, _ int) core.Date { return anchor }
func (stuckStepper) Skip(core.Date, core.Date) int        { return 0 }

func TestProjectZeroLengthStep(t *testing.T) {
	const stuck core.Frequency = "stuck"
	RegisterStepper(stuck, stuckStepper{})

	anchor := core.NewDate(2025, 5, 10)
	got := Project(anchor, stuck, core.NewDate(2025, 5, 1), core.NewDate(2025, 5, 31))
	if len(got) != 1 || !got[0].Equal(anchor.Time) {
		t.Errorf("Project() = %v, want only the anchor", dates(got...))
	}

	got = Project(anchor, stuck, core.NewDate(2025, 6, 1), core.NewDate(2025, 6, 30))
	if len(got) != 0 {
		t.Errorf("Project() = %v, want none", dates(got...))
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	anchor := core.NewDate(2025, 1, 31)
	start, end := core.NewDate(2025, 1, 1), core.NewDate(2026, 12, 31)
	first := dates(Project(anchor, core.Monthly, start, end)...)
	for i := 0; i < 3; i++ {
		if again := dates(Project(anchor, core.Monthly, start, end)...); !reflect.DeepEqual(first, again) {
			t.Fatalf("Project() changed between calls: %v vs %v", first, again)
		}
	}
	if len(first) != 24 {
		t.Errorf("len(Project()) = %d, want 24", len(first))
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		anchor core.Date
		freq   core.Frequency
		after  core.Date
		want   string
	}{
		{"monthly from anchor", core.NewDate(2025, 1, 31), core.Monthly, core.NewDate(2025, 1, 31), "2025-02-28"},
		{"monthly later", core.NewDate(2025, 1, 31), core.Monthly, core.NewDate(2025, 3, 1), "2025-03-31"},
		{"anchor in future", core.NewDate(2025, 6, 1), core.Weekly, core.NewDate(2025, 1, 1), "2025-06-01"},
		{"yearly", core.NewDate(2020, 7, 4), core.Yearly, core.NewDate(2025, 7, 4), "2026-07-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.anchor, tt.freq, tt.after)
			if !ok || got.String() != tt.want {
				t.Errorf("Next() = %s, %v, want %s", got, ok, tt.want)
			}
		})
	}

	if _, ok := Next(core.NewDate(2025, 1, 1), "unknown", core.NewDate(2025, 1, 1)); ok {
		t.Errorf("Next() with unknown frequency should fail")
	}
}

func TestUpcoming(t *testing.T) {
	payments := []core.RecurringPayment{
		{ID: "rent", Name: "Rent", Type: core.Expense, Amount: decimal.NewFromInt(800), Currency: "EUR", Frequency: core.Monthly, NextDate: core.NewDate(2025, 1, 1), Active: true},
		{ID: "gym", Name: "Gym", Type: core.Expense, Amount: decimal.NewFromInt(30), Currency: "EUR", Frequency: core.Biweekly, NextDate: core.NewDate(2025, 1, 1), Active: true},
		{ID: "old", Name: "Old", Type: core.Expense, Amount: decimal.NewFromInt(5), Currency: "EUR", Frequency: core.Daily, NextDate: core.NewDate(2025, 1, 1), Active: false},
	}
	got := Upcoming(payments, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))

	var ids []string
	for _, o := range got {
		ids = append(ids, o.Date.String()+"/"+o.PaymentID)
	}
	want := []string{"2025-01-01/gym", "2025-01-01/rent", "2025-01-15/gym", "2025-01-29/gym"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Upcoming() = %v, want %v", ids, want)
	}
}

func TestReminderDue(t *testing.T) {
	base := core.RecurringPayment{
		ID:        "rent",
		Frequency: core.Monthly,
		NextDate:  core.NewDate(2025, 1, 31),
		Active:    true,
		Reminder:  core.Reminder{Enabled: true, DaysBefore: 3},
	}
	today := core.NewDate(2025, 2, 26)

	occ, ok := ReminderDue(base, today)
	if !ok || occ.String() != "2025-02-28" {
		t.Errorf("ReminderDue() = %s, %v, want 2025-02-28, true", occ, ok)
	}

	paid := base
	paid.Paid = true
	if _, ok := ReminderDue(paid, today); ok {
		t.Errorf("paid payment should not remind")
	}

	early := today.AddDays(-5)
	if _, ok := ReminderDue(base, early); ok {
		t.Errorf("reminder should not be due on %s", early)
	}

	off := base
	off.Reminder.Enabled = false
	if _, ok := ReminderDue(off, today); ok {
		t.Errorf("disabled reminder should not be due")
	}
}
