// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a versioned write loses to a concurrent writer.
	ErrConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a unique key (e.g. email) already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID returns ErrNotFound for unknown IDs.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail returns ErrNotFound for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUsersByEmails returns a map of email to user.
	// Emails that don't exist are omitted from the result.
	GetUsersByEmails(ctx context.Context, emails []string) (map[string]*models.User, error)

	// GetUsersByIDs returns a map of user ID to user.
	// IDs that don't exist are omitted from the result.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateAccountBalance(ctx context.Context, userID string, balance money.Amount) error
}

// GroupStore persists groups together with their ledgers.
type GroupStore interface {
	// CreateGroup persists a new group at version 0.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup loads a group with its members and full ledger.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsByMember returns the groups userID belongs to, newest first.
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)

	// AppendTransaction appends tx to the end of the group's ledger, bumps the
	// version and returns it. Concurrent appends all land in commit order.
	// Returns ErrNotFound if the group is gone.
	AppendTransaction(ctx context.Context, groupID string, tx *models.GroupTransaction) (int64, error)

	// MarkSharePaid flags memberID's split detail on txID as paid and sets the
	// transaction status if the group is still at expectedVersion, and returns
	// the new version. Returns ErrConflict if another writer got there first.
	MarkSharePaid(ctx context.Context, groupID string, expectedVersion int64, txID, memberID string, status models.TransactionStatus) (int64, error)
}

// TransactionStore persists personal income and expense entries.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction returns ErrNotFound unless the entry exists and belongs to userID.
	GetTransaction(ctx context.Context, userID, txID string) (*models.Transaction, error)

	// ListTransactions returns the user's entries, most recent date first.
	ListTransactions(ctx context.Context, userID string) ([]*models.Transaction, error)

	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, userID, txID string) error
}

// FriendStore persists friendships.
type FriendStore interface {
	// AddFriendship links both users in both directions.
	// Returns ErrDuplicate if they are already friends.
	AddFriendship(ctx context.Context, userID, friendID string) error

	AreFriends(ctx context.Context, userID, friendID string) (bool, error)

	// ListFriends returns the user's friends ordered by name.
	ListFriends(ctx context.Context, userID string) ([]*models.User, error)
}

// Store defines the full persistence surface.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	TransactionStore
	FriendStore

	// Close releases any resources held by the store.
	Close() error
}
