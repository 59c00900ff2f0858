package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/currency"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/recurrence"
)

// SnapshotStore persists whole ledger snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error)
}

// EventPublisher announces applied ledger mutations.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

var (
	ErrNotFound      = errors.New("not found")
	ErrPaymentNotDue = errors.New("recurring payment has no occurrence to settle")
)

const (
	projectionCacheSize = 256
	projectionCacheTTL  = 10 * time.Minute
)

// LedgerService applies ledger actions and then persists the resulting
// snapshot and publishes an event. Persistence and publish failures are
// logged; the in-memory action has already happened and is never rolled back.
type LedgerService struct {
	engine      *ledger.Engine
	store       SnapshotStore
	publisher   EventPublisher
	rates       *currency.Cache
	projections *cache.LRUCache[[]recurrence.Occurrence]

	saveMu   sync.Mutex
	settleMu sync.Mutex
}

// NewLedgerService wires the service. store and publisher may be nil.
func NewLedgerService(engine *ledger.Engine, store SnapshotStore, publisher EventPublisher, rates *currency.Cache) *LedgerService {
	if rates == nil {
		rates = currency.NewCache("USD")
	}
	return &LedgerService{
		engine:      engine,
		store:       store,
		publisher:   publisher,
		rates:       rates,
		projections: cache.NewLRUCache[[]recurrence.Occurrence](projectionCacheSize, projectionCacheTTL),
	}
}

// Ledger exposes the engine for read-only queries.
func (s *LedgerService) Ledger() *ledger.Engine {
	return s.engine
}

// Rates returns the rate cache conversions read from.
func (s *LedgerService) Rates() *currency.Cache {
	return s.rates
}

// ProjectionCache is registered with the cache manager for cleanup.
func (s *LedgerService) ProjectionCache() *cache.LRUCache[[]recurrence.Occurrence] {
	return s.projections
}

// Load restores the latest stored snapshot, or seeds the default categories
// into an empty ledger when nothing has been stored yet. Budget spent values
// are re-derived after a restore; account balances are taken as stored.
func (s *LedgerService) Load(ctx context.Context) error {
	if s.store == nil {
		s.seedDefaults(ctx)
		return nil
	}
	snap, ok, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		s.seedDefaults(ctx)
		return nil
	}

	s.engine.Restore(snap)
	corrected := s.engine.RecalculateBudgetsSpent()
	metrics.BudgetsCorrected.Add(float64(corrected))
	metrics.LedgerVersion.Set(float64(s.engine.Version()))

	slog.InfoContext(ctx, "Ledger restored",
		"version", snap.Version,
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions),
		"budgets_corrected", corrected)
	if corrected > 0 {
		s.persist(ctx)
	}
	return nil
}

func (s *LedgerService) seedDefaults(ctx context.Context) {
	if len(s.engine.Categories()) > 0 {
		return
	}
	for _, c := range ledger.DefaultCategories() {
		s.engine.AddCategory(c)
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", len(ledger.DefaultCategories()))
	s.persist(ctx)
}

// applied runs after every action that changed the ledger.
func (s *LedgerService) applied(ctx context.Context, entity, action string, ids ...string) {
	version := s.engine.Version()
	metrics.LedgerMutations.WithLabelValues(entity + "." + action).Inc()
	metrics.LedgerVersion.Set(float64(version))
	s.projections.Purge()

	log.NewStructuredLogger(log.FromContext(ctx)).LogMutation(ctx, action, entity, version, ids...)

	s.persist(ctx)
	s.publish(ctx, amqp.NewLedgerEvent(entity, action, version, ids...))
}

// persist saves the current snapshot. Saves are serialized so the stored
// versions only ever grow.
func (s *LedgerService) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap := s.engine.Snapshot()
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		metrics.SnapshotSaves.WithLabelValues(metrics.ResultFailure).Inc()
		slog.ErrorContext(ctx, "Failed to save snapshot", "version", snap.Version, "error", err)
		return
	}
	metrics.SnapshotSaves.WithLabelValues(metrics.ResultSuccess).Inc()
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		metrics.EventsPublished.WithLabelValues(metrics.ResultSkipped).Inc()
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "routing_key", event.RoutingKey())
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(metrics.ResultFailure).Inc()
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"routing_key", event.RoutingKey(),
			"version", event.Version,
			"error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(metrics.ResultSuccess).Inc()
}

// Transactions

func (s *LedgerService) AddTransaction(ctx context.Context, in ledger.TransactionInput) core.Transaction {
	t := s.engine.AddTransaction(in)
	s.applied(ctx, amqp.EntityTransaction, amqp.ActionCreated, t.ID)
	return t
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, p ledger.TransactionPatch) (core.Transaction, bool) {
	t, ok := s.engine.UpdateTransaction(id, p)
	if ok {
		s.applied(ctx, amqp.EntityTransaction, amqp.ActionUpdated, id)
	}
	return t, ok
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) bool {
	ok := s.engine.DeleteTransaction(id)
	if ok {
		s.applied(ctx, amqp.EntityTransaction, amqp.ActionDeleted, id)
	}
	return ok
}

// Transfer moves money between two accounts. When the accounts hold different
// currencies and no received amount is given, the credited amount is
// converted with the cached rate table.
func (s *LedgerService) Transfer(ctx context.Context, in ledger.TransferInput) ([]core.Transaction, bool) {
	if !in.ReceivedAmount.IsPositive() {
		src, okSrc := s.engine.Account(in.SourceID)
		dst, okDst := s.engine.Account(in.DestinationID)
		if okSrc && okDst && src.Currency != dst.Currency {
			in.ReceivedAmount = s.Convert(in.Amount, src.Currency, dst.Currency).Round(core.AmountPlaces)
		}
	}

	legs, ok := s.engine.TransferMoney(in)
	if !ok {
		return nil, false
	}
	s.applied(ctx, amqp.EntityTransaction, amqp.ActionTransferred, legs[0].ID, legs[1].ID)
	return legs, true
}

// Accounts

func (s *LedgerService) AddAccount(ctx context.Context, a core.Account) core.Account {
	a = s.engine.AddAccount(a)
	s.applied(ctx, amqp.EntityAccount, amqp.ActionCreated, a.ID)
	return a
}

func (s *LedgerService) UpdateAccount(ctx context.Context, id string, p ledger.AccountPatch) (core.Account, bool) {
	a, ok := s.engine.UpdateAccount(id, p)
	if ok {
		s.applied(ctx, amqp.EntityAccount, amqp.ActionUpdated, id)
	}
	return a, ok
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id string) bool {
	ok := s.engine.DeleteAccount(id)
	if ok {
		s.applied(ctx, amqp.EntityAccount, amqp.ActionDeleted, id)
	}
	return ok
}

// Budgets

func (s *LedgerService) AddBudget(ctx context.Context, b core.Budget) core.Budget {
	b = s.engine.AddBudget(b)
	s.applied(ctx, amqp.EntityBudget, amqp.ActionCreated, b.ID)
	return b
}

func (s *LedgerService) UpdateBudget(ctx context.Context, id string, p ledger.BudgetPatch) (core.Budget, bool) {
	b, ok := s.engine.UpdateBudget(id, p)
	if ok {
		s.applied(ctx, amqp.EntityBudget, amqp.ActionUpdated, id)
	}
	return b, ok
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id string) bool {
	ok := s.engine.DeleteBudget(id)
	if ok {
		s.applied(ctx, amqp.EntityBudget, amqp.ActionDeleted, id)
	}
	return ok
}

// RecalculateBudgets re-derives every budget's spent value from the
// transactions and returns how many budgets changed.
func (s *LedgerService) RecalculateBudgets(ctx context.Context) int {
	corrected := s.engine.RecalculateBudgetsSpent()
	metrics.BudgetsCorrected.Add(float64(corrected))
	if corrected > 0 {
		s.applied(ctx, amqp.EntityBudget, amqp.ActionRecalculated)
	}
	return corrected
}

// Goals

func (s *LedgerService) AddGoal(ctx context.Context, g core.Goal) core.Goal {
	g = s.engine.AddGoal(g)
	s.applied(ctx, amqp.EntityGoal, amqp.ActionCreated, g.ID)
	return g
}

func (s *LedgerService) UpdateGoal(ctx context.Context, id string, p ledger.GoalPatch) (core.Goal, bool) {
	g, ok := s.engine.UpdateGoal(id, p)
	if ok {
		s.applied(ctx, amqp.EntityGoal, amqp.ActionUpdated, id)
	}
	return g, ok
}

func (s *LedgerService) ContributeToGoal(ctx context.Context, id string, amount decimal.Decimal) (core.Goal, bool) {
	g, ok := s.engine.AddToGoal(id, amount)
	if ok {
		s.applied(ctx, amqp.EntityGoal, amqp.ActionUpdated, id)
	}
	return g, ok
}

func (s *LedgerService) DeleteGoal(ctx context.Context, id string) bool {
	ok := s.engine.DeleteGoal(id)
	if ok {
		s.applied(ctx, amqp.EntityGoal, amqp.ActionDeleted, id)
	}
	return ok
}

// Recurring payments

func (s *LedgerService) AddRecurringPayment(ctx context.Context, p core.RecurringPayment) core.RecurringPayment {
	p = s.engine.AddRecurringPayment(p)
	s.applied(ctx, amqp.EntityRecurringPayment, amqp.ActionCreated, p.ID)
	return p
}

func (s *LedgerService) UpdateRecurringPayment(ctx context.Context, id string, p ledger.RecurringPaymentPatch) (core.RecurringPayment, bool) {
	r, ok := s.engine.UpdateRecurringPayment(id, p)
	if ok {
		s.applied(ctx, amqp.EntityRecurringPayment, amqp.ActionUpdated, id)
	}
	return r, ok
}

func (s *LedgerService) DeleteRecurringPayment(ctx context.Context, id string) bool {
	ok := s.engine.DeleteRecurringPayment(id)
	if ok {
		s.applied(ctx, amqp.EntityRecurringPayment, amqp.ActionDeleted, id)
	}
	return ok
}

// SettleRecurringPayment records the payment's current occurrence as a
// transaction and moves its anchor to the following occurrence. The amount
// is converted into the account currency when the two differ.
func (s *LedgerService) SettleRecurringPayment(ctx context.Context, id string) (core.Transaction, core.RecurringPayment, error) {
	s.settleMu.Lock()
	defer s.settleMu.Unlock()

	p, ok := s.engine.RecurringPayment(id)
	if !ok {
		return core.Transaction{}, core.RecurringPayment{}, fmt.Errorf("recurring payment %s: %w", id, ErrNotFound)
	}
	if !p.Active || p.NextDate.IsEmpty() {
		return core.Transaction{}, p, ErrPaymentNotDue
	}
	next, ok := recurrence.Next(p.NextDate, p.Frequency, p.NextDate)
	if !ok {
		return core.Transaction{}, p, ErrPaymentNotDue
	}

	amount := p.Amount
	if a, ok := s.engine.Account(p.AccountID); ok && a.Currency != p.Currency {
		amount = s.Convert(amount, p.Currency, a.Currency).Round(core.AmountPlaces)
	}

	t := s.engine.AddTransaction(ledger.TransactionInput{
		Type:        p.Type,
		Amount:      amount,
		CategoryID:  p.CategoryID,
		AccountID:   p.AccountID,
		Description: p.Name,
		Date:        p.NextDate,
	})
	paid := false
	p, _ = s.engine.UpdateRecurringPayment(id, ledger.RecurringPaymentPatch{NextDate: &next, Paid: &paid})

	slog.InfoContext(ctx, "Recurring payment settled",
		"payment_id", id,
		"transaction_id", t.ID,
		"occurrence", t.Date.String(),
		"next_date", next.String())
	s.applied(ctx, amqp.EntityRecurringPayment, amqp.ActionUpdated, id, t.ID)
	return t, p, nil
}

// Occurrences projects every active recurring payment into [start, end].
// Results are memoized until the next ledger action.
func (s *LedgerService) Occurrences(start, end core.Date) []recurrence.Occurrence {
	key := fmt.Sprintf("%d|%s|%s", s.engine.Version(), start, end)
	if hit, ok := s.projections.Get(key); ok {
		return hit
	}
	out := recurrence.Upcoming(s.engine.RecurringPayments(), start, end)
	s.projections.Set(key, out)
	return out
}

// Categories

func (s *LedgerService) AddCategory(ctx context.Context, c core.Category) core.Category {
	c = s.engine.AddCategory(c)
	s.applied(ctx, amqp.EntityCategory, amqp.ActionCreated, c.ID)
	return c
}

func (s *LedgerService) UpdateCategory(ctx context.Context, id string, p ledger.CategoryPatch) (core.Category, bool) {
	c, ok := s.engine.UpdateCategory(id, p)
	if ok {
		s.applied(ctx, amqp.EntityCategory, amqp.ActionUpdated, id)
	}
	return c, ok
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id string) bool {
	ok := s.engine.DeleteCategory(id)
	if ok {
		s.applied(ctx, amqp.EntityCategory, amqp.ActionDeleted, id)
	}
	return ok
}

// Currency

// Convert converts with the cached rate table.
func (s *LedgerService) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	return s.rates.Latest().Convert(amount, from, to)
}

// Totals sums the included accounts in the target currency.
func (s *LedgerService) Totals(target string) core.Totals {
	return s.engine.TotalBalance(target, s.rates.Latest().Rates)
}

// Snapshots

// Export returns a copy of the whole ledger.
func (s *LedgerService) Export() core.Snapshot {
	return s.engine.Snapshot()
}

// Import replaces the ledger with snap and re-derives budget spent values.
func (s *LedgerService) Import(ctx context.Context, snap core.Snapshot) int {
	s.engine.Restore(snap)
	corrected := s.engine.RecalculateBudgetsSpent()
	metrics.BudgetsCorrected.Add(float64(corrected))
	s.applied(ctx, amqp.EntityLedger, amqp.ActionRestored)
	return corrected
}

// Close releases the store and the publisher when they support it.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
