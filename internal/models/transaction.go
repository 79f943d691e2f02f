package models

import (
	"time"

	"github.com/mmynk/spendwise/internal/money"
)

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TypeExpense TransactionType = "Expense"
	TypeIncome  TransactionType = "Income"
)

// Valid reports whether t is Expense or Income.
func (t TransactionType) Valid() bool {
	return t == TypeExpense || t == TypeIncome
}

// Transaction is a personal income or expense entry owned by one user.
type Transaction struct {
	ID          string          `bson:"_id"`
	UserID      string          `bson:"userId"`
	Type        TransactionType `bson:"type"`
	Amount      money.Amount    `bson:"amount"`
	Description string          `bson:"description"`
	Date        time.Time       `bson:"date"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}
