package auth

import (
	"context"

	"github.com/mmynk/spendwise/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, etc.)
// without changing the service layer code.
type Authenticator interface {
	// ValidateCredential checks if the credential meets the implementation's requirements.
	// For passwords: check length, complexity, etc.
	ValidateCredential(credential string) error

	// HashCredential validates a credential and returns the form to persist.
	// Signups hash at request time so the plain credential never waits in memory
	// for OTP verification.
	HashCredential(credential string) (string, error)

	// Register creates a verified user account from an already hashed credential.
	// Returns ErrEmailExists if the email is taken.
	Register(ctx context.Context, email, name, credentialHash string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	// Returns ErrUserNotFound, ErrNotVerified or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ResetCredential validates and stores a new credential for the user.
	ResetCredential(ctx context.Context, userID, credential string) error
}
