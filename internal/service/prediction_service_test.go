package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendwise/internal/forecast"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

type stubForecaster struct {
	got    []forecast.Expense
	result json.RawMessage
	err    error
}

func (s *stubForecaster) Predict(_ context.Context, expenses []forecast.Expense) (json.RawMessage, error) {
	s.got = expenses
	return s.result, s.err
}

func TestPredictExpenses(t *testing.T) {
	store := newTestStore(t)
	user := createUser(t, store, "alice@example.com", "Alice")
	stub := &stubForecaster{result: json.RawMessage(`{"nextWeek":123.4}`)}
	svc := NewPredictionService(store, stub, discardLogger())
	txns := NewTransactionService(store, time.UTC, discardLogger())
	ctx := context.Background()

	_, err := svc.PredictExpenses(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoExpenses)

	for _, in := range []TransactionInput{
		{Type: models.TypeExpense, Amount: money.MustParse("20.25"), Description: "b", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{Type: models.TypeIncome, Amount: money.MustParse("900"), Description: "salary", Date: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)},
		{Type: models.TypeExpense, Amount: money.MustParse("10"), Description: "a", Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	} {
		_, err := txns.Add(ctx, user.ID, in)
		require.NoError(t, err)
	}

	got, err := svc.PredictExpenses(ctx, user.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nextWeek":123.4}`, string(got))
	assert.Equal(t, []forecast.Expense{
		{Date: "2024-05-01", Amount: 10},
		{Date: "2024-05-02", Amount: 20.25},
	}, stub.got)

	stub.err = forecast.ErrForecastTimeout
	_, err = svc.PredictExpenses(ctx, user.ID)
	assert.ErrorIs(t, err, forecast.ErrForecastTimeout)
}
