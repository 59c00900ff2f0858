package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/metrics"
	"saldo/internal/recurrence"
)

// SnapshotSource gives the processor the latest stored ledger.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error)
}

// ReminderLog remembers which occurrences were already announced.
type ReminderLog interface {
	ReminderSent(ctx context.Context, paymentID string, occurrence core.Date) (bool, error)
	MarkReminderSent(ctx context.Context, paymentID string, occurrence core.Date) error
}

// ReminderPublisher delivers reminder messages.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// RecurringProcessor publishes one reminder per upcoming occurrence of every
// active, unpaid recurring payment whose reminder window has opened.
type RecurringProcessor struct {
	source    SnapshotSource
	log       ReminderLog
	publisher ReminderPublisher
}

func NewRecurringProcessor(source SnapshotSource, log ReminderLog, publisher ReminderPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		source:    source,
		log:       log,
		publisher: publisher,
	}
}

// ProcessReminders sends the reminders due on the day of now and returns how
// many were published. A failure for one payment does not stop the others.
func (p *RecurringProcessor) ProcessReminders(ctx context.Context, now time.Time) (int, error) {
	if p.source == nil || p.log == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	snap, ok, err := p.source.LoadSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		slog.InfoContext(ctx, "No ledger stored yet, nothing to remind")
		return 0, nil
	}

	today := core.DateOf(now)
	slog.InfoContext(ctx, "Processing recurring payment reminders",
		"payments", len(snap.RecurringPayments),
		"processing_date", today.String(),
		"version", snap.Version)

	published := 0
	for _, payment := range snap.RecurringPayments {
		occurrence, due := recurrence.ReminderDue(payment, today)
		if !due {
			continue
		}

		sent, err := p.log.ReminderSent(ctx, payment.ID, occurrence)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check reminder log",
				"payment_id", payment.ID,
				"error", err)
			continue
		}
		if sent {
			continue
		}

		msg := amqp.NewReminderMessage(payment, occurrence, today)
		if err := p.publisher.PublishReminder(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"payment_id", payment.ID,
				"occurrence", occurrence.String(),
				"error", err)
			continue
		}

		if err := p.log.MarkReminderSent(ctx, payment.ID, occurrence); err != nil {
			// The reminder went out; the worst case is a duplicate on the next run.
			slog.ErrorContext(ctx, "Failed to record sent reminder",
				"payment_id", payment.ID,
				"error", err)
		}

		published++
		metrics.RemindersPublished.Inc()
		slog.InfoContext(ctx, "Reminder published",
			"payment_id", payment.ID,
			"name", payment.Name,
			"occurrence", occurrence.String(),
			"days_left", msg.DaysLeft)
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"published", published,
		"total_checked", len(snap.RecurringPayments))
	return published, nil
}

// Run processes reminders immediately and then on every tick until ctx is done.
func (p *RecurringProcessor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessReminders(ctx, time.Now()); err != nil {
			slog.ErrorContext(ctx, "Reminder processing failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
