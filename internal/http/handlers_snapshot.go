package http

import (
	"net/http"
)

type importResponse struct {
	Version   int64 `json:"version"`
	Corrected int   `json:"corrected"`
}

// handleExportSnapshot writes the whole ledger, as YAML when asked for.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	resp := OK(s.ledger.Export())
	if wantsYAML(r) {
		resp.AsYAML()
	}
	resp.Write(w)
}

// handleImportSnapshot replaces the ledger. Nothing changes unless the whole
// snapshot validates.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := decodeSnapshot(w, r)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	if err := snap.Validate(); err != nil {
		errorResponse(invalid("snapshot", err)).Write(w)
		return
	}
	corrected := s.ledger.Import(r.Context(), snap)
	s.logger.InfoContext(r.Context(), "Ledger restored from snapshot",
		"version", s.ledger.Ledger().Version(),
		"transactions", len(snap.Transactions),
		"corrected_budgets", corrected)
	OK(importResponse{Version: s.ledger.Ledger().Version(), Corrected: corrected}).Write(w)
}
