package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

type accountPatchRequest struct {
	Title          *string           `json:"title"`
	Type           *core.AccountType `json:"type"`
	CreditLimit    *decimal.Decimal  `json:"credit_limit"`
	Currency       *string           `json:"currency"`
	Balance        *decimal.Decimal  `json:"balance"`
	IncludeInTotal *bool             `json:"include_in_total"`
	Archived       *bool             `json:"archived"`
}

// patch builds the ledger patch. A new type or limit is resolved against the
// current account so either can change alone.
func (p accountPatchRequest) patch(current core.Account) (ledger.AccountPatch, error) {
	out := ledger.AccountPatch{
		Title:          sanitizePtr(p.Title),
		Currency:       upperPtr(p.Currency),
		Balance:        p.Balance,
		IncludeInTotal: p.IncludeInTotal,
		Archived:       p.Archived,
	}
	if p.Type != nil || p.CreditLimit != nil {
		typ := current.Type()
		if p.Type != nil {
			typ = *p.Type
		}
		limit, _ := current.CreditLimit()
		if p.CreditLimit != nil {
			limit = *p.CreditLimit
		}
		kind, err := core.KindOf(typ, limit)
		if err != nil {
			return out, invalid("type", err)
		}
		out.Kind = kind
	}
	return out, nil
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.ledger.Ledger().Accounts()
	if r.URL.Query().Get("archived") != "true" {
		active := accounts[:0]
		for _, a := range accounts {
			if !a.Archived {
				active = append(active, a)
			}
		}
		accounts = active
	}
	OK(nonNil(accounts)).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ledger.Ledger().Account(pathID(r))
	if !ok {
		NotFoundError("account not found").Write(w)
		return
	}
	OK(a).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.Account
	if err := decodeJSON(w, r, &a); err != nil {
		errorResponse(err).Write(w)
		return
	}
	a.Title = sanitizeInput(a.Title)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if err := a.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	Created(s.ledger.AddAccount(r.Context(), a)).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().Account(id)
	if !ok {
		NotFoundError("account not found").Write(w)
		return
	}
	var req accountPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch, err := req.patch(current)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	if err := patch.Apply(current).Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}

	a, ok := s.ledger.UpdateAccount(r.Context(), id, patch)
	if !ok {
		NotFoundError("account not found").Write(w)
		return
	}
	OK(a).Write(w)
}

// handleDeleteAccount removes the account. Its transactions are kept and
// stay visible with their account id.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.DeleteAccount(r.Context(), pathID(r)) {
		NotFoundError("account not found").Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	target, err := ParseCurrency(r.URL.Query(), "currency", s.ledger.Rates().Latest().Base)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(s.ledger.Totals(target)).Write(w)
}
