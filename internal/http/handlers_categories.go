package http

import (
	"net/http"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

type categoryRequest struct {
	Name  string               `json:"name"`
	Icon  string               `json:"icon"`
	Color string               `json:"color"`
	Type  core.TransactionType `json:"type"`
}

type categoryPatchRequest struct {
	Name  *string               `json:"name"`
	Icon  *string               `json:"icon"`
	Color *string               `json:"color"`
	Type  *core.TransactionType `json:"type"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.ledger.Ledger().Categories()
	if typ := core.TransactionType(r.URL.Query().Get("type")); typ != "" {
		filtered := cats[:0]
		for _, c := range cats {
			if c.Type == typ {
				filtered = append(filtered, c)
			}
		}
		cats = filtered
	}
	OK(nonNil(cats)).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ledger.Ledger().Category(pathID(r))
	if !ok {
		NotFoundError("category not found").Write(w)
		return
	}
	OK(c).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	c := core.Category{
		Name:  sanitizeInput(req.Name),
		Icon:  sanitizeInput(req.Icon),
		Color: sanitizeInput(req.Color),
		Type:  req.Type,
	}
	if err := c.Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}
	Created(s.ledger.AddCategory(r.Context(), c)).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	current, ok := s.ledger.Ledger().Category(id)
	if !ok {
		NotFoundError("category not found").Write(w)
		return
	}
	var req categoryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(err).Write(w)
		return
	}
	patch := ledger.CategoryPatch{
		Name:  sanitizePtr(req.Name),
		Icon:  sanitizePtr(req.Icon),
		Color: sanitizePtr(req.Color),
		Type:  req.Type,
	}
	if err := patch.Apply(current).Validate(); err != nil {
		errorResponse(invalid("", err)).Write(w)
		return
	}

	c, ok := s.ledger.UpdateCategory(r.Context(), id, patch)
	if !ok {
		NotFoundError("category not found").Write(w)
		return
	}
	OK(c).Write(w)
}

// handleDeleteCategory refuses default categories and categories still
// referenced by the ledger.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	c, ok := s.ledger.Ledger().Category(id)
	if !ok {
		NotFoundError("category not found").Write(w)
		return
	}
	if c.IsDefault {
		ConflictError("default categories cannot be deleted").Write(w)
		return
	}
	if s.categoryInUse(id) {
		ConflictError("category is in use").Write(w)
		return
	}
	if !s.ledger.DeleteCategory(r.Context(), id) {
		NotFoundError("category not found").Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) categoryInUse(id string) bool {
	st := s.ledger.Ledger().State()
	for _, t := range st.Transactions {
		if t.CategoryID == id {
			return true
		}
	}
	for _, b := range st.Budgets {
		if b.Covers(id) {
			return true
		}
	}
	for _, p := range st.RecurringPayments {
		if p.CategoryID == id {
			return true
		}
	}
	return false
}
