package models

import (
	"time"

	"github.com/mmynk/spendwise/internal/money"
)

// Role is a member's role within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// TransactionStatus tracks whether every share of a transaction is settled.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
)

// Group is a set of members sharing a ledger of transactions.
// The whole group, ledger included, is the unit of persistence.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `bson:"_id"`

	// Title is the display name of the group (e.g., "Roommates").
	Title string `bson:"title"`

	// Description is a free-text description of the group.
	Description string `bson:"description"`

	// Members is the ordered member list, unique by user ID.
	Members []Member `bson:"members"`

	// Transactions is the ledger in insertion order.
	Transactions []GroupTransaction `bson:"transactions"`

	// Version increments on every ledger mutation.
	Version int64 `bson:"version"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Member is a user's membership in a group.
type Member struct {
	// UserID is the canonical member key.
	UserID string `bson:"userId"`

	// Name and Email are a presentation cache copied from the user at join time.
	Name  string `bson:"name"`
	Email string `bson:"email"`

	Role Role `bson:"role"`
}

// GroupTransaction is an entry in a group's ledger.
type GroupTransaction struct {
	ID          string       `bson:"id"`
	Description string       `bson:"description"`
	Amount      money.Amount `bson:"amount"`
	Date        time.Time    `bson:"date"`
	SplitType   SplitType    `bson:"splitType"`

	// InitiatedBy is the user ID of the member who incurred the expense.
	// The initiator never owes a share of their own transaction.
	InitiatedBy string `bson:"initiatedBy"`

	Status       TransactionStatus `bson:"status"`
	SplitDetails []SplitDetail     `bson:"splitDetails"`
}

// Member returns the member with the given user ID.
func (g *Group) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsMember reports whether userID belongs to the group.
func (g *Group) IsMember(userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

// MemberIDs returns member user IDs in insertion order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.UserID
	}
	return ids
}

// Transaction returns the ledger entry with the given ID.
func (g *Group) Transaction(id string) (*GroupTransaction, bool) {
	for i := range g.Transactions {
		if g.Transactions[i].ID == id {
			return &g.Transactions[i], true
		}
	}
	return nil, false
}

// AllPaid reports whether every split detail has been settled.
func (t *GroupTransaction) AllPaid() bool {
	for _, d := range t.SplitDetails {
		if !d.Paid {
			return false
		}
	}
	return true
}
