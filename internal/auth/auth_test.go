package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// memUsers is an in-memory UserStorage.
type memUsers struct {
	byEmail map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*models.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return storage.ErrDuplicate
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return storage.ErrNotFound
}

func TestValidateCredential(t *testing.T) {
	a := NewPasswordAuthenticator(newMemUsers())

	tests := []struct {
		password string
		valid    bool
	}{
		{"secret1!", true},
		{"Abcdefg9#xyz", true},
		{"short1!", false},
		{"nodigits!!", false},
		{"nosymbol123", false},
		{"has space1!", false},
		{"unicodé1!x", false},
	}
	for _, tt := range tests {
		err := a.ValidateCredential(tt.password)
		if tt.valid {
			assert.NoError(t, err, tt.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tt.password)
		}
	}
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	a := NewPasswordAuthenticator(users).WithCost(bcrypt.MinCost)

	hash, err := a.HashCredential("secret1!")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1!", hash)

	user, err := a.Register(ctx, "alice@example.com", "Alice", hash)
	require.NoError(t, err)
	assert.True(t, user.Verified)

	_, err = a.Register(ctx, "alice@example.com", "Alice", hash)
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := a.Authenticate(ctx, "alice@example.com", "secret1!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = a.Authenticate(ctx, "alice@example.com", "wrong1!xx")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "nobody@example.com", "secret1!")
	assert.ErrorIs(t, err, ErrUserNotFound)

	user.Verified = false
	_, err = a.Authenticate(ctx, "alice@example.com", "secret1!")
	assert.ErrorIs(t, err, ErrNotVerified)
	user.Verified = true

	require.NoError(t, a.ResetCredential(ctx, user.ID, "newpass2@"))
	_, err = a.Authenticate(ctx, "alice@example.com", "newpass2@")
	assert.NoError(t, err)
	assert.ErrorIs(t, a.ResetCredential(ctx, user.ID, "weak"), ErrWeakPassword)
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	user := models.NewUser("alice@example.com", "Alice", "")

	pair, err := m.GeneratePair(user)
	require.NoError(t, err)

	claims, err := m.Validate(pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)

	claims, err = m.Validate(pair.RefreshToken, RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, claims.TokenType)

	// Tokens are not interchangeable.
	_, err = m.Validate(pair.RefreshToken, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Validate(pair.AccessToken, RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("garbage", AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	user := models.NewUser("alice@example.com", "Alice", "")

	expired, err := m.Generate(user, AccessToken)
	require.NoError(t, err)
	_, err = m.Validate(expired, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTManager("other-secret", "refresh-secret", time.Hour, time.Hour)
	foreign, err := other.Generate(user, AccessToken)
	require.NoError(t, err)
	_, err = m.Validate(foreign, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user.ID, TokenType: AccessToken})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Validate(unsigned, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOTP(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	otp, err := NewOTP(now, 5*time.Minute)
	require.NoError(t, err)
	assert.Len(t, otp.Code, 6)
	assert.Equal(t, "", strings.Trim(otp.Code, "0123456789"))

	assert.NoError(t, otp.Check(otp.Code, now.Add(time.Minute)))
	assert.ErrorIs(t, otp.Check(otp.Code, now.Add(6*time.Minute)), ErrOTPExpired)

	wrong := "000000"
	if otp.Code == wrong {
		wrong = "111111"
	}
	err = otp.Check(wrong, now)
	assert.True(t, errors.Is(err, ErrOTPMismatch))
}
