package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// createTransactionRequest mirrors services.NewTransaction with a
// required type, so an omitted type is not read as Expense.
type createTransactionRequest struct {
	Description string                `json:"description"`
	Amount      core.Money            `json:"amount"`
	Date        core.Date             `json:"date"`
	Type        *core.TransactionType `json:"type"`
	CategoryID  int64                 `json:"categoryId"`
	PersonID    int64                 `json:"personId"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Type == nil {
		writeError(w, r, core.Validation("type", "type is required"))
		return
	}

	tx, err := s.svc.Transactions.Create(r.Context(), services.NewTransaction{
		Description: req.Description,
		Amount:      req.Amount,
		Date:        req.Date,
		Type:        *req.Type,
		CategoryID:  req.CategoryID,
		PersonID:    req.PersonID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Transactions.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var u services.TransactionUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.svc.Transactions.Update(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
