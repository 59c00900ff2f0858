package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/currency"
)

type ratesResponse struct {
	currency.Table
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

type conversionResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Converted decimal.Decimal `json:"converted"`
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	cache := s.ledger.Rates()
	OK(ratesResponse{Table: cache.Latest(), Loaded: cache.Loaded()}).Write(w)
}

// handleRefreshRates forces a fetch. A failed fetch answers 502 with the
// table that stays in use.
func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if s.rates == nil {
		ServiceUnavailableError("rate refresh is not configured").Write(w)
		return
	}
	table, err := s.rates.Refresh(r.Context())
	resp := ratesResponse{Table: table, Loaded: s.ledger.Rates().Loaded()}
	if err != nil {
		s.logger.WarnContext(r.Context(), "Manual rate refresh failed", "error", err)
		resp.Error = "rate refresh failed, serving cached rates"
		NewJSONResponse().Status(http.StatusBadGateway).Body(resp).Write(w)
		return
	}
	OK(resp).Write(w)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseAmount(q.Get("amount"))
	if err != nil {
		errorResponse(invalid("amount", err)).Write(w)
		return
	}
	base := s.ledger.Rates().Latest().Base
	from, err := ParseCurrency(q, "from", base)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	to, err := ParseCurrency(q, "to", base)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	OK(conversionResponse{
		Amount:    amount,
		From:      from,
		To:        to,
		Converted: s.ledger.Convert(amount, from, to).Round(core.AmountPlaces),
	}).Write(w)
}
