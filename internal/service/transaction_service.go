package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/spendwise/internal/calculator"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/storage"
)

// EntryDateLayout is how personal transaction dates are rendered, in UTC.
const EntryDateLayout = "2006-01-02 15:04"

const (
	summaryDays  = 7
	summaryWeeks = 4
)

// TransactionInput is a new personal transaction.
type TransactionInput struct {
	Type        models.TransactionType
	Amount      money.Amount
	Description string
	// Date defaults to now when zero.
	Date time.Time
}

// TransactionPatch is a partial update; nil fields are left unchanged.
type TransactionPatch struct {
	Type        *models.TransactionType
	Amount      *money.Amount
	Description *string
	Date        *time.Time
}

// EntryView is a personal transaction as presented to clients.
type EntryView struct {
	ID          string                 `json:"id"`
	Type        models.TransactionType `json:"type"`
	Amount      money.Amount           `json:"amount"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
}

// TransactionService manages a user's own income and expenses and the
// summaries built from them.
type TransactionService struct {
	store  storage.Store
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewTransactionService creates a service whose summaries use loc for
// day boundaries unless a call overrides it.
func NewTransactionService(store storage.Store, loc *time.Location, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		store:  store,
		loc:    loc,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add records a new transaction for the user.
func (s *TransactionService) Add(ctx context.Context, userID string, in TransactionInput) (*EntryView, error) {
	s.logger.Info("AddTransaction request received", "user_id", userID, "type", in.Type)

	in.Description = strings.TrimSpace(in.Description)
	if err := validateEntry(in.Type, in.Amount, in.Description); err != nil {
		return nil, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	t := &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        date.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		s.logger.Error("AddTransaction failed", "error", err)
		return nil, fmt.Errorf("failed to add transaction: %w", err)
	}

	s.logger.Info("Transaction recorded", "transaction_id", t.ID)
	view := newEntryView(t)
	return &view, nil
}

// List returns the user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID string) ([]EntryView, error) {
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		s.logger.Error("ListTransactions failed", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	views := make([]EntryView, len(txns))
	for i, t := range txns {
		views[i] = newEntryView(t)
	}
	return views, nil
}

// Edit applies a partial update to one of the user's transactions.
func (s *TransactionService) Edit(ctx context.Context, userID, txID string, patch TransactionPatch) (*EntryView, error) {
	s.logger.Info("EditTransaction request received", "user_id", userID, "transaction_id", txID)

	t, err := s.store.GetTransaction(ctx, userID, txID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Date != nil {
		t.Date = patch.Date.UTC()
	}
	if err := validateEntry(t.Type, t.Amount, t.Description); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()

	err = s.store.UpdateTransaction(ctx, t)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error("EditTransaction failed", "error", err)
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	view := newEntryView(t)
	return &view, nil
}

// Delete removes one of the user's transactions.
func (s *TransactionService) Delete(ctx context.Context, userID, txID string) error {
	s.logger.Info("DeleteTransaction request received", "user_id", userID, "transaction_id", txID)

	err := s.store.DeleteTransaction(ctx, userID, txID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error("DeleteTransaction failed", "error", err)
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// Today lists the transactions made since local midnight. A nil loc uses
// the service default.
func (s *TransactionService) Today(ctx context.Context, userID string, loc *time.Location) ([]calculator.TodayEntry, error) {
	txns, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return calculator.Today(txns, s.now(), s.location(loc)), nil
}

// Weekly returns per-day totals for the last seven days, oldest first.
func (s *TransactionService) Weekly(ctx context.Context, userID string, loc *time.Location) ([]calculator.DayTotal, error) {
	txns, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return calculator.DailyTotals(txns, s.now(), s.location(loc), summaryDays), nil
}

// Monthly returns totals for the last four 7-day windows, oldest first.
func (s *TransactionService) Monthly(ctx context.Context, userID string, loc *time.Location) ([]calculator.WeekTotal, error) {
	txns, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return calculator.WeeklyTotals(txns, s.now(), s.location(loc), summaryWeeks), nil
}

// Home builds the dashboard summary.
func (s *TransactionService) Home(ctx context.Context, userID string, loc *time.Location) (*calculator.HomeSummary, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	txns, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := calculator.Home(txns, user.AccountBalance, s.now(), s.location(loc))
	return &summary, nil
}

// SetAccountBalance stores the user's opening balance.
func (s *TransactionService) SetAccountBalance(ctx context.Context, userID string, balance money.Amount) error {
	s.logger.Info("SetAccountBalance request received", "user_id", userID)

	err := s.store.UpdateAccountBalance(ctx, userID, balance)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		s.logger.Error("SetAccountBalance failed", "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return nil
}

func (s *TransactionService) load(ctx context.Context, userID string) ([]*models.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load transactions", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (s *TransactionService) location(loc *time.Location) *time.Location {
	if loc != nil {
		return loc
	}
	return s.loc
}

func validateEntry(typ models.TransactionType, amount money.Amount, description string) error {
	switch {
	case !typ.Valid():
		return invalid("Transaction type must be either 'Expense' or 'Income'.")
	case !amount.Positive():
		return invalid("Amount must be a positive number.")
	case description == "":
		return invalid("Description is required and must be a string.")
	}
	return nil
}

func newEntryView(t *models.Transaction) EntryView {
	return EntryView{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date.UTC().Format(EntryDateLayout),
	}
}
