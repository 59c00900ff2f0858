package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

type transactionRequest struct {
	Type        core.TransactionType `json:"type"`
	Amount      decimal.Decimal      `json:"amount"`
	CategoryID  string               `json:"category_id"`
	AccountID   string               `json:"account_id"`
	Description string               `json:"description"`
	Date        core.Date            `json:"date"`
}

type transactionPatchRequest struct {
	Type        *core.TransactionType `json:"type"`
	Amount      *decimal.Decimal      `json:"amount"`
	CategoryID  *string               `json:"category_id"`
	AccountID   *string               `json:"account_id"`
	Description *string               `json:"description"`
	Date        *core.Date            `json:"date"`
}

func (p transactionPatchRequest) patch() ledger.TransactionPatch {
	return ledger.TransactionPatch{
		Type:        p.Type,
		Amount:      p.Amount,
		CategoryID:  p.CategoryID,
		AccountID:   p.AccountID,
		Description: sanitizePtr(p.Description),
		Date:        p.Date,
	}
}

type transferRequest struct {
	SourceID       string          `json:"source_id"`
	DestinationID  string          `json:"destination_id"`
	Amount         decimal.Decimal `json:"amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	Description    string          `json:"description"`
	Date           core.Date       `json:"date"`
}

// checkReferences rejects transactions pointing at unknown categories or
// accounts, and user transactions filed under the transfer category.
func (s *Server) checkReferences(t core.Transaction) error {
	if t.IsTransfer() {
		return invalid("category_id", core.ErrReservedCategory)
	}
	if _, ok := s.ledger.Ledger().Category(t.CategoryID); !ok {
		return invalid("category_id", errUnknown("category", t.CategoryID))
	}
	if t.AccountID != "" {
		if _, ok := s.ledger.Ledger().Account(t.AccountID); !ok {
			return invalid("account_id", errUnknown("account", t.AccountID))
		}
	}
	return nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query(), DateRange{})
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	txs := s.ledger.Ledger().TransactionsBetween(rng.From, rng.To)
	if accountID := r.URL.Query().Get("account_id"); accountID != "" {
		filtered := txs[:0]
		for _, t := range txs {
			if t.AccountID == accountID {
				filtered = append(filtered, t)
			}
		}
		txs = filtered
	}
	OK(nonNil(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ledger.Ledger().Transaction(pathID(r))
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	OK(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	in := ledger.TransactionInput{
		Type:        req.Type,
		Amount:      req.Amount,
		CategoryID:  sanitizeInput(req.CategoryID),
		AccountID:   sanitizeInput(req.AccountID),
		Description: sanitizeInput(req.Description),
		Date:        req.Date,
	}
	candidate := core.Transaction{
		Type: in.Type, Amount: in.Amount, CategoryID: in.CategoryID,
		AccountID: in.AccountID, Description: in.Description, Date: in.Date,
	}
	if err := candidate.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkReferences(candidate); err != nil {
		errorResponse(err).Write(w)
		return
	}

	t := s.ledger.AddTransaction(r.Context(), in)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldTransaction, t.ID,
		log.FieldAmount, t.Amount.String(),
		log.FieldCategoryID, t.CategoryID)
	Created(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	old, ok := s.ledger.Ledger().Transaction(id)
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	if old.IsTransfer() {
		ConflictError("transfer legs cannot be edited, delete and transfer again").Write(w)
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch := req.patch()
	next := patch.Apply(old)
	if err := next.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	if err := s.checkReferences(next); err != nil {
		errorResponse(err).Write(w)
		return
	}

	t, ok := s.ledger.UpdateTransaction(r.Context(), id, patch)
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	OK(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.DeleteTransaction(r.Context(), pathID(r)) {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	if err := core.ValidateAmount(req.Amount); err != nil {
		errorResponse(invalid("amount", err)).Write(w)
		return
	}
	if req.ReceivedAmount.IsNegative() {
		errorResponse(invalid("received_amount", core.ErrInvalidAmount)).Write(w)
		return
	}
	if req.SourceID == req.DestinationID {
		errorResponse(invalid("destination_id", errSameAccount)).Write(w)
		return
	}
	for field, id := range map[string]string{"source_id": req.SourceID, "destination_id": req.DestinationID} {
		if _, ok := s.ledger.Ledger().Account(id); !ok {
			errorResponse(invalid(field, errUnknown("account", id))).Write(w)
			return
		}
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}

	legs, ok := s.ledger.Transfer(r.Context(), ledger.TransferInput{
		SourceID:       req.SourceID,
		DestinationID:  req.DestinationID,
		Amount:         req.Amount,
		ReceivedAmount: req.ReceivedAmount,
		Description:    sanitizeInput(req.Description),
		Date:           req.Date,
	})
	if !ok {
		NotFoundError("account not found").Write(w)
		return
	}
	Created(legs).Write(w)
}

func (s *Server) handleSpendingReport(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query(), monthOf(s.today()))
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(map[string]any{
		"from":        rng.From,
		"to":          rng.To,
		"by_category": s.ledger.Ledger().SpendingByCategory(rng.From, rng.To),
	}).Write(w)
}
