package api

import (
	"net/http"

	"github.com/mmynk/spendwise/internal/middleware"
)

func (s *Server) predictExpense(w http.ResponseWriter, r *http.Request) {
	forecast, err := s.predictions.PredictExpenses(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Expense prediction fetched successfully!", payload{"data": forecast})
}
