package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/services"
)

type recurringPaymentRequest struct {
	Name       string               `json:"name"`
	Type       core.TransactionType `json:"type"`
	Amount     decimal.Decimal      `json:"amount"`
	CategoryID string               `json:"category_id"`
	AccountID  string               `json:"account_id"`
	Currency   string               `json:"currency"`
	Frequency  core.Frequency       `json:"frequency"`
	NextDate   core.Date            `json:"next_date"`
	Active     *bool                `json:"active"`
	Reminder   core.Reminder        `json:"reminder"`
}

type recurringPaymentPatchRequest struct {
	Name       *string               `json:"name"`
	Type       *core.TransactionType `json:"type"`
	Amount     *decimal.Decimal      `json:"amount"`
	CategoryID *string               `json:"category_id"`
	AccountID  *string               `json:"account_id"`
	Currency   *string               `json:"currency"`
	Frequency  *core.Frequency       `json:"frequency"`
	NextDate   *core.Date            `json:"next_date"`
	Active     *bool                 `json:"active"`
	Paid       *bool                 `json:"paid"`
	Reminder   *core.Reminder        `json:"reminder"`
}

type settlementResponse struct {
	Transaction core.Transaction      `json:"transaction"`
	Payment     core.RecurringPayment `json:"payment"`
}

func (s *Server) checkPaymentReferences(p core.RecurringPayment) error {
	if p.CategoryID == core.TransferCategoryID {
		return invalid("category_id", core.ErrReservedCategory)
	}
	if _, ok := s.ledger.Ledger().Category(p.CategoryID); !ok {
		return invalid("category_id", errUnknown("category", p.CategoryID))
	}
	if p.AccountID != "" {
		if _, ok := s.ledger.Ledger().Account(p.AccountID); !ok {
			return invalid("account_id", errUnknown("account", p.AccountID))
		}
	}
	return nil
}

func (s *Server) handleListRecurringPayments(w http.ResponseWriter, r *http.Request) {
	OK(nonNil(s.ledger.Ledger().RecurringPayments())).Write(w)
}

func (s *Server) handleGetRecurringPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ledger.Ledger().RecurringPayment(pathID(r))
	if !ok {
		NotFoundError("recurring payment not found").Write(w)
		return
	}
	OK(p).Write(w)
}

func (s *Server) handleCreateRecurringPayment(w http.ResponseWriter, r *http.Request) {
	var req recurringPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	p := core.RecurringPayment{
		Name:       sanitizeInput(req.Name),
		Type:       req.Type,
		Amount:     req.Amount,
		CategoryID: sanitizeInput(req.CategoryID),
		AccountID:  sanitizeInput(req.AccountID),
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		Frequency:  req.Frequency,
		NextDate:   req.NextDate,
		Active:     req.Active == nil || *req.Active,
		Reminder:   req.Reminder,
	}
	if p.NextDate.IsZero() {
		p.NextDate = s.today()
	}
	if p.Currency == "" {
		if a, ok := s.ledger.Ledger().Account(p.AccountID); ok {
			p.Currency = a.Currency
		}
	}
	if err := p.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkPaymentReferences(p); err != nil {
		errorResponse(err).Write(w)
		return
	}
	Created(s.ledger.AddRecurringPayment(r.Context(), p)).Write(w)
}

func (s *Server) handleUpdateRecurringPayment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().RecurringPayment(id)
	if !ok {
		NotFoundError("recurring payment not found").Write(w)
		return
	}
	var req recurringPaymentPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch := ledger.RecurringPaymentPatch{
		Name:       sanitizePtr(req.Name),
		Type:       req.Type,
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
		AccountID:  req.AccountID,
		Currency:   upperPtr(req.Currency),
		Frequency:  req.Frequency,
		NextDate:   req.NextDate,
		Active:     req.Active,
		Paid:       req.Paid,
		Reminder:   req.Reminder,
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkPaymentReferences(next); err != nil {
		errorResponse(err).Write(w)
		return
	}

	p, ok := s.ledger.UpdateRecurringPayment(r.Context(), id, patch)
	if !ok {
		NotFoundError("recurring payment not found").Write(w)
		return
	}
	OK(p).Write(w)
}

func (s *Server) handleDeleteRecurringPayment(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.DeleteRecurringPayment(r.Context(), pathID(r)) {
		NotFoundError("recurring payment not found").Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleSettleRecurringPayment(w http.ResponseWriter, r *http.Request) {
	t, p, err := s.ledger.SettleRecurringPayment(r.Context(), pathID(r))
	switch {
	case errors.Is(err, services.ErrNotFound):
		NotFoundError("recurring payment not found").Write(w)
		return
	case errors.Is(err, services.ErrPaymentNotDue):
		ConflictError(err.Error()).Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Settle recurring payment failed", "payment_id", pathID(r), "error", err)
		InternalServerError("settlement failed").Write(w)
		return
	}
	Created(settlementResponse{Transaction: t, Payment: p}).Write(w)
}

// handleOccurrences projects the active recurring payments. The window
// defaults to the next 30 days.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	rng, err := ParseDateRange(r.URL.Query(), DateRange{From: today, To: today.AddDays(30)})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(nonNil(s.ledger.Occurrences(rng.From, rng.To))).Write(w)
}
