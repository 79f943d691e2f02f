package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mmynk/spendwise/internal/forecast"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// Forecaster predicts future spending from an expense history.
// *forecast.Client satisfies it.
type Forecaster interface {
	Predict(ctx context.Context, expenses []forecast.Expense) (json.RawMessage, error)
}

// PredictionService relays a user's expense history to the forecaster.
type PredictionService struct {
	store      storage.TransactionStore
	forecaster Forecaster
	logger     *slog.Logger
}

func NewPredictionService(store storage.TransactionStore, forecaster Forecaster, logger *slog.Logger) *PredictionService {
	return &PredictionService{store: store, forecaster: forecaster, logger: logger}
}

// PredictExpenses sends the user's expenses, oldest first, and returns the
// forecast as received.
func (s *PredictionService) PredictExpenses(ctx context.Context, userID string) (json.RawMessage, error) {
	s.logger.Info("PredictExpenses request received", "user_id", userID)

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var expenses []forecast.Expense
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		if t.Type != models.TypeExpense {
			continue
		}
		expenses = append(expenses, forecast.Expense{
			Date:   t.Date.UTC().Format("2006-01-02"),
			Amount: t.Amount.Decimal().InexactFloat64(),
		})
	}
	if len(expenses) == 0 {
		return nil, ErrNoExpenses
	}

	result, err := s.forecaster.Predict(ctx, expenses)
	if err != nil {
		s.logger.Error("PredictExpenses failed", "user_id", userID, "error", err)
		return nil, err
	}
	s.logger.Info("PredictExpenses successful", "user_id", userID, "expenses", len(expenses))
	return result, nil
}
