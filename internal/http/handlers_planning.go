package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

type budgetRequest struct {
	Name        string            `json:"name"`
	CategoryIDs []string          `json:"category_ids"`
	Limit       decimal.Decimal   `json:"limit"`
	Period      core.BudgetPeriod `json:"period"`
	StartDate   core.Date         `json:"start_date"`
	EndDate     core.Date         `json:"end_date"`
}

type budgetPatchRequest struct {
	Name        *string            `json:"name"`
	CategoryIDs []string           `json:"category_ids"`
	Limit       *decimal.Decimal   `json:"limit"`
	Period      *core.BudgetPeriod `json:"period"`
	StartDate   *core.Date         `json:"start_date"`
	EndDate     *core.Date         `json:"end_date"`
}

type goalRequest struct {
	Name       string          `json:"name"`
	Target     decimal.Decimal `json:"target"`
	Current    decimal.Decimal `json:"current"`
	TargetDate core.Date       `json:"target_date"`
	Currency   string          `json:"currency"`
}

type goalPatchRequest struct {
	Name       *string          `json:"name"`
	Target     *decimal.Decimal `json:"target"`
	Current    *decimal.Decimal `json:"current"`
	TargetDate *core.Date       `json:"target_date"`
	Currency   *string          `json:"currency"`
}

type contributionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// checkBudgetCategories rejects budgets naming categories that do not exist.
func (s *Server) checkBudgetCategories(b core.Budget) error {
	for _, id := range b.CategoryIDs {
		if _, ok := s.ledger.Ledger().Category(id); !ok {
			return invalid("category_ids", errUnknown("category", id))
		}
	}
	return nil
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	OK(nonNil(s.ledger.Ledger().Budgets())).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ledger.Ledger().Budget(pathID(r))
	if !ok {
		NotFoundError("budget not found").Write(w)
		return
	}
	OK(b).Write(w)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ledger.Ledger().BudgetProgress(pathID(r))
	if !ok {
		NotFoundError("budget not found").Write(w)
		return
	}
	OK(p).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	b := core.Budget{
		Name:        sanitizeInput(req.Name),
		CategoryIDs: req.CategoryIDs,
		Limit:       req.Limit,
		Period:      req.Period,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if b.StartDate.IsZero() && b.EndDate.IsZero() && b.Period == core.PeriodMonthly {
		m := monthOf(s.today())
		b.StartDate, b.EndDate = m.From, m.To
	}
	if err := b.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkBudgetCategories(b); err != nil {
		errorResponse(err).Write(w)
		return
	}

	b = s.ledger.AddBudget(r.Context(), b)
	// a new budget starts at zero; count what is already in its window
	if s.ledger.RecalculateBudgets(r.Context()) > 0 {
		b, _ = s.ledger.Ledger().Budget(b.ID)
	}
	Created(b).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().Budget(id)
	if !ok {
		NotFoundError("budget not found").Write(w)
		return
	}
	var req budgetPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch := ledger.BudgetPatch{
		Name:        sanitizePtr(req.Name),
		CategoryIDs: req.CategoryIDs,
		Limit:       req.Limit,
		Period:      req.Period,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkBudgetCategories(next); err != nil {
		errorResponse(err).Write(w)
		return
	}

	b, ok := s.ledger.UpdateBudget(r.Context(), id, patch)
	if !ok {
		NotFoundError("budget not found").Write(w)
		return
	}
	OK(b).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.DeleteBudget(r.Context(), pathID(r)) {
		NotFoundError("budget not found").Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleRecalculateBudgets(w http.ResponseWriter, r *http.Request) {
	corrected := s.ledger.RecalculateBudgets(r.Context())
	OK(map[string]int{"corrected": corrected}).Write(w)
}

// Goals

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	OK(nonNil(s.ledger.Ledger().Goals())).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ledger.Ledger().Goal(pathID(r))
	if !ok {
		NotFoundError("goal not found").Write(w)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	g := core.Goal{
		Name:       sanitizeInput(req.Name),
		Target:     req.Target,
		Current:    req.Current,
		TargetDate: req.TargetDate,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if err := g.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	Created(s.ledger.AddGoal(r.Context(), g)).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().Goal(id)
	if !ok {
		NotFoundError("goal not found").Write(w)
		return
	}
	var req goalPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch := ledger.GoalPatch{
		Name:       sanitizePtr(req.Name),
		Target:     req.Target,
		Current:    req.Current,
		TargetDate: req.TargetDate,
		Currency:   upperPtr(req.Currency),
	}
	if err := patch.Apply(current).Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}

	g, ok := s.ledger.UpdateGoal(r.Context(), id, patch)
	if !ok {
		NotFoundError("goal not found").Write(w)
		return
	}
	OK(g).Write(w)
}

// handleContributeToGoal adds to the saved amount. Negative amounts withdraw,
// but the saved amount never goes below zero.
func (s *Server) handleContributeToGoal(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().Goal(id)
	if !ok {
		NotFoundError("goal not found").Write(w)
		return
	}
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	if req.Amount.IsZero() || current.Current.Add(req.Amount).IsNegative() {
		errorResponse(invalid("amount", core.ErrInvalidAmount)).Write(w)
		return
	}

	g, ok := s.ledger.ContributeToGoal(r.Context(), id, req.Amount)
	if !ok {
		NotFoundError("goal not found").Write(w)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.DeleteGoal(r.Context(), pathID(r)) {
		NotFoundError("goal not found").Write(w)
		return
	}
	NoContent().Write(w)
}
