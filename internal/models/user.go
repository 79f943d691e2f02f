package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/spendwise/internal/money"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `bson:"_id"`

	// Name is the display name of the user.
	Name string `bson:"name"`

	// Email is the user's email address (unique, lowercase).
	Email string `bson:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `bson:"passwordHash"`

	// Verified is set once the signup OTP has been confirmed.
	Verified bool `bson:"verified"`

	// AccountBalance is the opening balance the user configured in settings.
	// It may be negative.
	AccountBalance money.Amount `bson:"accountBalance"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewUser creates a verified user with a fresh ID.
func NewUser(email, name, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Friendship links two users. Friendships are stored in both directions.
type Friendship struct {
	UserID    string    `bson:"userId"`
	FriendID  string    `bson:"friendId"`
	CreatedAt time.Time `bson:"createdAt"`
}
