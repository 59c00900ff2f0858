package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/metrics"
	"saldo/internal/sheets"
)

// SnapshotSource gives the worker the latest stored ledger.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error)
}

// ExportLog records which transactions were mirrored and at which version.
type ExportLog interface {
	MarkExported(ctx context.Context, transactionID string, version int64) error
	UnmarkExported(ctx context.Context, transactionID string) error
	ExportedVersion(ctx context.Context, transactionID string) (int64, bool, error)
	Unexported(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
}

// ExportWorker mirrors ledger transactions into an export backend. Events
// carry ids only; the rows are built from the stored snapshot.
type ExportWorker struct {
	source    SnapshotSource
	log       ExportLog
	exporter  sheets.TransactionExporter
	batchSize int
}

func NewExportWorker(source SnapshotSource, log ExportLog, exporter sheets.TransactionExporter, batchSize int) *ExportWorker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &ExportWorker{
		source:    source,
		log:       log,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. Returning an
// error requeues the event.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"routing_key", ev.RoutingKey(),
		"ids", ev.IDs,
		"version", ev.Version)

	switch ev.Entity {
	case amqp.EntityTransaction, amqp.EntityRecurringPayment, amqp.EntityAccount, amqp.EntityCategory, amqp.EntityLedger:
	default:
		return nil
	}

	snap, ok, err := w.source.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "No snapshot stored yet, skipping event", "routing_key", ev.RoutingKey())
		return nil
	}
	if snap.Version < ev.Version {
		slog.WarnContext(ctx, "Stored snapshot is older than the event",
			"snapshot_version", snap.Version,
			"event_version", ev.Version)
	}

	switch ev.Entity {
	case amqp.EntityTransaction, amqp.EntityRecurringPayment:
		// settling a recurring payment names the new transaction among its ids
		return w.syncTransactions(ctx, snap, ev.IDs, ev.Entity == amqp.EntityTransaction)
	case amqp.EntityAccount, amqp.EntityCategory:
		// names shown in the sheet changed, rewrite the affected rows
		return w.exportReferencing(ctx, snap, ev.Entity, ev.IDs)
	default:
		return w.Resync(ctx, snap)
	}
}

// syncTransactions exports the named transactions that exist in snap. When
// removeMissing is set, ids absent from snap are removed from the backend.
func (w *ExportWorker) syncTransactions(ctx context.Context, snap core.Snapshot, ids []string, removeMissing bool) error {
	var rows []sheets.Row
	for _, id := range ids {
		t, ok := snap.Transaction(id)
		if !ok {
			if removeMissing {
				if err := w.remove(ctx, id); err != nil {
					return err
				}
			}
			continue
		}
		version, exported, err := w.log.ExportedVersion(ctx, id)
		if err != nil {
			return fmt.Errorf("check export of %s: %w", id, err)
		}
		if exported && version >= snap.Version {
			continue
		}
		rows = append(rows, sheets.RowFor(t, snap))
	}
	return w.export(ctx, snap.Version, rows)
}

func (w *ExportWorker) exportReferencing(ctx context.Context, snap core.Snapshot, entity string, ids []string) error {
	match := make(map[string]bool, len(ids))
	for _, id := range ids {
		match[id] = true
	}
	var rows []sheets.Row
	for _, t := range snap.Transactions {
		if (entity == amqp.EntityAccount && match[t.AccountID]) || (entity == amqp.EntityCategory && match[t.CategoryID]) {
			rows = append(rows, sheets.RowFor(t, snap))
		}
	}
	return w.export(ctx, snap.Version, rows)
}

// Resync exports every transaction of snap and, when the backend can list its
// rows, removes rows whose transaction no longer exists.
func (w *ExportWorker) Resync(ctx context.Context, snap core.Snapshot) error {
	rows := make([]sheets.Row, 0, len(snap.Transactions))
	present := make(map[string]bool, len(snap.Transactions))
	for _, t := range snap.Transactions {
		rows = append(rows, sheets.RowFor(t, snap))
		present[t.ID] = true
	}
	for start := 0; start < len(rows); start += w.batchSize {
		end := min(start+w.batchSize, len(rows))
		if err := w.export(ctx, snap.Version, rows[start:end]); err != nil {
			return err
		}
	}

	lister, ok := w.exporter.(sheets.TransactionLister)
	if !ok {
		return nil
	}
	existing, err := lister.Rows(ctx)
	if err != nil {
		return fmt.Errorf("list exported rows: %w", err)
	}
	for _, r := range existing {
		if !present[r.ID] {
			if err := w.remove(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *ExportWorker) export(ctx context.Context, version int64, rows []sheets.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := w.exporter.Export(ctx, rows...); err != nil {
		metrics.Exports.WithLabelValues(metrics.ResultFailure).Add(float64(len(rows)))
		return fmt.Errorf("export %d transactions: %w", len(rows), err)
	}
	metrics.Exports.WithLabelValues(metrics.ResultSuccess).Add(float64(len(rows)))

	for _, r := range rows {
		if err := w.log.MarkExported(ctx, r.ID, version); err != nil {
			// the row is out; at worst it is exported again on the next pass
			slog.ErrorContext(ctx, "Failed to mark transaction exported", "transaction_id", r.ID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Exported transactions", "count", len(rows), "version", version)
	return nil
}

func (w *ExportWorker) remove(ctx context.Context, id string) error {
	if err := w.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove transaction %s: %w", id, err)
	}
	if err := w.log.UnmarkExported(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to unmark transaction", "transaction_id", id, "error", err)
	}
	slog.InfoContext(ctx, "Removed exported transaction", "transaction_id", id)
	return nil
}

// ProcessPending exports up to one batch of transactions that were never
// exported. It covers events lost while the worker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	snap, ok, err := w.source.LoadSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return 0, nil
	}
	pending, err := w.log.Unexported(ctx, snap.Transactions)
	if err != nil {
		return 0, fmt.Errorf("find pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if len(pending) > w.batchSize {
		pending = pending[:w.batchSize]
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))
	rows := make([]sheets.Row, len(pending))
	for i, t := range pending {
		rows[i] = sheets.RowFor(t, snap)
	}
	if err := w.export(ctx, snap.Version, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Run exports pending transactions at startup and then on every tick until
// ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessPending(ctx); err != nil {
			slog.ErrorContext(ctx, "Pending export failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
