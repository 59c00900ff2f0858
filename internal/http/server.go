package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"saldo/internal/core"
	"saldo/internal/currency"
	"saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// RateRefresher fetches a new rate table on demand.
type RateRefresher interface {
	Refresh(ctx context.Context) (currency.Table, error)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators the API serves.
type Deps struct {
	Ledger    *services.LedgerService
	Rates     RateRefresher // optional, refresh answers 503 without it
	Checks    []ReadinessCheck
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	rates    RateRefresher
	checks   []ReadinessCheck
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		ledger:   deps.Ledger,
		rates:    deps.Rates,
		checks:   deps.Checks,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
		headers:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		started:  time.Now(),
		now:      time.Now,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(log.Middleware(s.logger, trace.RequestID))
	r.Use(trace.NewMiddleware(s.detector.ExtractClientIP, nil).Middleware)
	r.Use(chimw.Recoverer)
	r.Use(s.headers.Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutationsOnly, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
		}))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Post("/transfers", s.handleTransfer)
		r.Get("/reports/spending", s.handleSpendingReport)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Patch("/{id}", s.handleUpdateAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
		})
		r.Get("/totals", s.handleTotals)

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Post("/", s.handleCreateBudget)
			r.Post("/recalculate", s.handleRecalculateBudgets)
			r.Get("/{id}", s.handleGetBudget)
			r.Get("/{id}/progress", s.handleBudgetProgress)
			r.Patch("/{id}", s.handleUpdateBudget)
			r.Delete("/{id}", s.handleDeleteBudget)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.Post("/{id}/contributions", s.handleContributeToGoal)
		})

		r.Route("/recurring-payments", func(r chi.Router) {
			r.Get("/", s.handleListRecurringPayments)
			r.Post("/", s.handleCreateRecurringPayment)
			r.Get("/{id}", s.handleGetRecurringPayment)
			r.Patch("/{id}", s.handleUpdateRecurringPayment)
			r.Delete("/{id}", s.handleDeleteRecurringPayment)
			r.Post("/{id}/settle", s.handleSettleRecurringPayment)
		})
		r.Get("/occurrences", s.handleOccurrences)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/{id}", s.handleGetCategory)
			r.Patch("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Get("/rates", s.handleRates)
		r.Post("/rates/refresh", s.handleRefreshRates)
		r.Get("/convert", s.handleConvert)

		r.Get("/snapshot", s.handleExportSnapshot)
		r.Put("/snapshot", s.handleImportSnapshot)
	})

	return r
}

// today is the calendar day used when a request omits a date.
func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
