package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spendwise/internal/middleware"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/service"
)

type createGroupRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

type addTransactionRequest struct {
	// GroupID is only read by /groups/add-expense.
	GroupID     string                     `json:"groupId"`
	Description string                     `json:"description"`
	Amount      money.Amount               `json:"amount"`
	SplitType   models.SplitType           `json:"splitType"`
	Shares      map[string]decimal.Decimal `json:"shares"`
	Date        string                     `json:"date"`
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	group, err := s.groups.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), service.CreateGroupInput{
		Title:       req.Title,
		Description: req.Description,
		Members:     req.Members,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusCreated, "Group created successfully!", payload{"group": group})
}

func (s *Server) addGroupTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleAddTransaction(w, r, r.PathValue("groupId"))
}

func (s *Server) addGroupExpense(w http.ResponseWriter, r *http.Request) {
	s.handleAddTransaction(w, r, "")
}

// handleAddTransaction serves both append routes. An empty groupID is read
// from the body.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, groupID string) {
	var req addTransactionRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if groupID == "" {
		groupID = strings.TrimSpace(req.GroupID)
	}
	if groupID == "" {
		s.fail(w, http.StatusBadRequest, "groupId is required.")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		s.fail(w, http.StatusBadRequest, "Invalid date format.")
		return
	}

	tx, err := s.groups.AddTransaction(r.Context(), groupID, middleware.GetUserID(r.Context()), service.AddTransactionInput{
		Description: req.Description,
		Amount:      req.Amount,
		SplitType:   req.SplitType,
		Shares:      req.Shares,
		Date:        date,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusCreated, "Transaction added successfully!", payload{"transaction": tx})
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), r.PathValue("groupId"), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Group fetched successfully!", payload{"group": group})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Groups fetched successfully!", payload{"groups": groups})
}

func (s *Server) groupBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.groups.GetGroupBalances(r.Context(), r.PathValue("groupId"), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Group balances fetched successfully!", payload{
		"balances": balances.Balances,
		"debts":    balances.Debts,
	})
}

func (s *Server) settleShare(w http.ResponseWriter, r *http.Request) {
	tx, err := s.groups.SettleShare(r.Context(),
		r.PathValue("groupId"),
		r.PathValue("transactionId"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Share settled successfully!", payload{"transaction": tx})
}
