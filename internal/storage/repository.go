package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"saldo/internal/core"
	"saldo/internal/currency"

	_ "modernc.org/sqlite"
)

// DefaultRetention is the number of snapshots kept when none is configured.
const DefaultRetention = 20

// SQLiteRepository persists ledger snapshots, the last rate table and the
// bookkeeping of the background workers.
type SQLiteRepository struct {
	db        *sql.DB
	retention int
}

func NewSQLiteRepository(dbPath string, retention int) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}

	return &SQLiteRepository{db: db, retention: retention}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot stores a snapshot under its version and prunes old versions.
// Saving the same version twice keeps the latest payload.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (version, taken_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET taken_at = excluded.taken_at, payload = excluded.payload`,
		snap.Version, formatTime(snap.TakenAt), payload)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE version NOT IN (
			SELECT version FROM snapshots ORDER BY version DESC LIMIT ?
		)`, r.retention)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	pruned, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Snapshot saved",
		"version", snap.Version,
		"transactions", len(snap.Transactions),
		"bytes", len(payload),
		"pruned", pruned)
	return nil
}

// LoadSnapshot returns the snapshot with the highest version.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots ORDER BY version DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("query latest snapshot: %w", err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// LatestVersion returns the highest stored snapshot version, 0 when empty.
func (r *SQLiteRepository) LatestVersion(ctx context.Context) (int64, error) {
	var version sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(version) FROM snapshots`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version.Int64, nil
}

// SaveRates implements currency.Store.
func (r *SQLiteRepository) SaveRates(ctx context.Context, t currency.Table) error {
	rates, err := json.Marshal(t.Rates)
	if err != nil {
		return fmt.Errorf("marshal rates: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rate_tables (id, base, rates, fetched_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET base = excluded.base, rates = excluded.rates, fetched_at = excluded.fetched_at`,
		t.Base, string(rates), formatTime(t.FetchedAt))
	if err != nil {
		return fmt.Errorf("save rates: %w", err)
	}
	return nil
}

// LoadRates implements currency.Store.
func (r *SQLiteRepository) LoadRates(ctx context.Context) (currency.Table, bool, error) {
	var base, rates, fetchedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT base, rates, fetched_at FROM rate_tables WHERE id = 1`).Scan(&base, &rates, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return currency.Table{}, false, nil
	}
	if err != nil {
		return currency.Table{}, false, fmt.Errorf("query rates: %w", err)
	}

	t := currency.Table{Base: base}
	if err := json.Unmarshal([]byte(rates), &t.Rates); err != nil {
		return currency.Table{}, false, fmt.Errorf("unmarshal rates: %w", err)
	}
	if t.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return currency.Table{}, false, err
	}
	return t, true, nil
}

// MarkExported records that a transaction was mirrored to the export backend.
func (r *SQLiteRepository) MarkExported(ctx context.Context, transactionID string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exported_transactions (transaction_id, version, exported_at) VALUES (?, ?, ?)
		 ON CONFLICT(transaction_id) DO UPDATE SET version = excluded.version, exported_at = excluded.exported_at`,
		transactionID, version, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("mark transaction %s exported: %w", transactionID, err)
	}
	return nil
}

// UnmarkExported forgets an exported transaction, after it was removed remotely.
func (r *SQLiteRepository) UnmarkExported(ctx context.Context, transactionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM exported_transactions WHERE transaction_id = ?`, transactionID); err != nil {
		return fmt.Errorf("unmark transaction %s: %w", transactionID, err)
	}
	return nil
}

// ExportedVersion returns the snapshot version a transaction was last exported at.
func (r *SQLiteRepository) ExportedVersion(ctx context.Context, transactionID string) (int64, bool, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM exported_transactions WHERE transaction_id = ?`, transactionID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query export of %s: %w", transactionID, err)
	}
	return version, true, nil
}

// Unexported filters txs down to the transactions never exported.
func (r *SQLiteRepository) Unexported(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT transaction_id FROM exported_transactions`)
	if err != nil {
		return nil, fmt.Errorf("query exported transactions: %w", err)
	}
	defer rows.Close()

	exported := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan exported transaction: %w", err)
		}
		exported[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exported transactions: %w", err)
	}

	var pending []core.Transaction
	for _, t := range txs {
		if _, ok := exported[t.ID]; !ok {
			pending = append(pending, t)
		}
	}
	return pending, nil
}

// ReminderSent reports whether a reminder for this occurrence already went out.
func (r *SQLiteRepository) ReminderSent(ctx context.Context, paymentID string, occurrence core.Date) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_reminders WHERE payment_id = ? AND occurrence = ?`,
		paymentID, occurrence.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query reminder for %s: %w", paymentID, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, paymentID string, occurrence core.Date) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_reminders (payment_id, occurrence, sent_at) VALUES (?, ?, ?)`,
		paymentID, occurrence.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("mark reminder for %s: %w", paymentID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
