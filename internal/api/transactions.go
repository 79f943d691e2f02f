package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmynk/spendwise/internal/middleware"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/service"
)

type transactionRequest struct {
	Type        models.TransactionType `json:"type"`
	Amount      money.Amount           `json:"amount"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
}

type editTransactionRequest struct {
	Type        *models.TransactionType `json:"type"`
	Amount      *money.Amount           `json:"amount"`
	Description *string                 `json:"description"`
	Date        *string                 `json:"date"`
}

type balanceRequest struct {
	AccountBalance json.RawMessage `json:"accountBalance"`
}

func (s *Server) addTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid date format.")
		return
	}

	tx, err := s.transactions.Add(r.Context(), middleware.GetUserID(r.Context()), service.TransactionInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusCreated, "Transaction added successfully!", payload{"transaction": tx})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.transactions.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Transactions fetched successfully!", payload{"transactions": txns})
}

func (s *Server) editTransaction(w http.ResponseWriter, r *http.Request) {
	var req editTransactionRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	patch := service.TransactionPatch{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok || date.IsZero() {
			s.fail(w, http.StatusBadRequest, "Invalid date format.")
			return
		}
		patch.Date = &date
	}

	tx, err := s.transactions.Edit(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), patch)
	if errors.Is(err, service.ErrTransactionNotFound) {
		s.fail(w, http.StatusNotFound, "Expense not found.")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Expense updated successfully!", payload{"transaction": tx})
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	err := s.transactions.Delete(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if errors.Is(err, service.ErrTransactionNotFound) {
		s.fail(w, http.StatusNotFound, "Expense not found.")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Expense deleted successfully.", nil)
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	loc, ok := tzOverride(r)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid tzOffset.")
		return
	}
	entries, err := s.transactions.Today(r.Context(), middleware.GetUserID(r.Context()), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Today's transactions fetched successfully.", payload{"transactions": entries})
}

func (s *Server) weekly(w http.ResponseWriter, r *http.Request) {
	loc, ok := tzOverride(r)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid tzOffset.")
		return
	}
	days, err := s.transactions.Weekly(r.Context(), middleware.GetUserID(r.Context()), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Expense and income summary fetched successfully!", payload{"data": days})
}

func (s *Server) monthly(w http.ResponseWriter, r *http.Request) {
	loc, ok := tzOverride(r)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid tzOffset.")
		return
	}
	weeks, err := s.transactions.Monthly(r.Context(), middleware.GetUserID(r.Context()), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Expense and income summary for the last 4 weeks fetched successfully!", payload{"data": weeks})
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	loc, ok := tzOverride(r)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid tzOffset.")
		return
	}
	summary, err := s.transactions.Home(r.Context(), middleware.GetUserID(r.Context()), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Home data fetched successfully!", payload{"data": summary})
}

func (s *Server) setAccountBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	var balance money.Amount
	if len(req.AccountBalance) == 0 || req.AccountBalance[0] == '"' || balance.UnmarshalJSON(req.AccountBalance) != nil {
		s.fail(w, http.StatusBadRequest, "Invalid account balance. It must be a number.")
		return
	}

	if err := s.transactions.SetAccountBalance(r.Context(), middleware.GetUserID(r.Context()), balance); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Account balance updated successfully!", payload{"accountBalance": balance})
}
