package http

import (
	"net/http"

	"fintrack/internal/core"
)

type createCategoryRequest struct {
	Description string        `json:"description"`
	Purpose     *core.Purpose `json:"purpose"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Purpose == nil {
		writeError(w, r, core.Validation("purpose", "purpose is required"))
		return
	}
	c, err := s.svc.Categories.Create(r.Context(), req.Description, *req.Purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	purpose, filtered, err := queryPurpose(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var cats []core.Category
	if filtered {
		cats, err = s.svc.Categories.ListByPurpose(r.Context(), purpose)
	} else {
		cats, err = s.svc.Categories.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cats))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
