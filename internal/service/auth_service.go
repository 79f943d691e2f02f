package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmynk/spendwise/internal/auth"
	"github.com/mmynk/spendwise/internal/cache"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/notify"
	"github.com/mmynk/spendwise/internal/storage"
)

const (
	SignupOTPTTL = 5 * time.Minute
	ResetOTPTTL  = 15 * time.Minute
)

// maxOTPAttempts is how many codes may be tried against one issued OTP. The
// pending entry is dropped on the last failed try.
const maxOTPAttempts = 5

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const weakPasswordMessage = "Password must be at least 8 characters long and include at least one number and one special character (!@#$%^&*)."

// OTPObserver is notified whenever a passcode is issued.
type OTPObserver interface {
	OTPIssued(purpose string)
}

type nopOTPObserver struct{}

func (nopOTPObserver) OTPIssued(string) {}

// pendingSignup is a signup waiting for its OTP. The password is already hashed.
type pendingSignup struct {
	Name         string
	Email        string
	PasswordHash string
	OTP          auth.OTP
	Attempts     int
}

// pendingReset is a password reset in progress.
type pendingReset struct {
	UserID   string
	Name     string
	OTP      auth.OTP
	Verified bool
	Attempts int
}

// UserView is the public part of a user account.
type UserView struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	AccountBalance money.Amount `json:"accountBalance"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Session is what a successful signin or signup verification returns.
type Session struct {
	auth.TokenPair
	User UserView `json:"user"`
}

// AuthService implements signup, signin and password reset with emailed OTPs.
type AuthService struct {
	users         storage.UserStore
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	notifier      notify.Notifier
	observer      OTPObserver
	logger        *slog.Logger
	now           func() time.Time

	// Entries outlive their OTP so an expired code can be told apart from
	// one that was never requested.
	signups *cache.TTLCache[pendingSignup]
	resets  *cache.TTLCache[pendingReset]
}

// NewAuthService creates a new authentication service.
func NewAuthService(users storage.UserStore, authenticator auth.Authenticator, jwtManager *auth.JWTManager, notifier notify.Notifier, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:         users,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		notifier:      notifier,
		observer:      nopOTPObserver{},
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		signups:       cache.NewTTLCache[pendingSignup](2 * SignupOTPTTL),
		resets:        cache.NewTTLCache[pendingReset](2 * ResetOTPTTL),
	}
}

// WithObserver reports issued OTPs to o.
func (s *AuthService) WithObserver(o OTPObserver) *AuthService {
	s.observer = o
	return s
}

// RegisterCaches hands the OTP caches to m for periodic cleanup.
func (s *AuthService) RegisterCaches(m *cache.Manager) {
	m.Register(s.signups)
	m.Register(s.resets)
}

// Signup validates the request and emails an OTP. The account is created
// only once the OTP is verified.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)
	s.logger.Info("Signup request received", "email", email)

	switch {
	case name == "" || email == "" || password == "":
		return authErr(1001, http.StatusBadRequest, ErrInvalidArgument, "Empty input fields!")
	case !namePattern.MatchString(name):
		return authErr(1002, http.StatusBadRequest, ErrInvalidArgument, "Invalid name entered")
	case !emailPattern.MatchString(email):
		return authErr(1003, http.StatusBadRequest, ErrInvalidArgument, "Invalid email entered")
	}

	hash, err := s.authenticator.HashCredential(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return authErr(1004, http.StatusBadRequest, err, weakPasswordMessage)
	}
	if err != nil {
		return s.internal(1006, "Signup", err)
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return authErr(1005, http.StatusConflict, auth.ErrEmailExists, "User with the provided email already exists")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return s.internal(1006, "Signup", err)
	}

	otp, err := auth.NewOTP(s.now(), SignupOTPTTL)
	if err != nil {
		return s.internal(1006, "Signup", err)
	}
	s.signups.Set(email, pendingSignup{Name: name, Email: email, PasswordHash: hash, OTP: otp})

	if err := s.sendOTP(ctx, email, name, otp, notify.PurposeSignup); err != nil {
		return s.internal(1006, "Signup", err)
	}

	s.logger.Info("Signup OTP issued", "email", email)
	return nil
}

// VerifySignup checks the signup OTP and creates the verified account.
func (s *AuthService) VerifySignup(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	s.logger.Info("VerifySignup request received", "email", email)

	if email == "" || code == "" {
		return nil, authErr(2001, http.StatusBadRequest, ErrInvalidArgument, "Missing email or OTP!")
	}

	// Each try is counted before the code is checked so concurrent guesses
	// can't exceed the limit.
	var pending pendingSignup
	ok := s.signups.Update(email, func(p pendingSignup) pendingSignup {
		p.Attempts++
		pending = p
		return p
	})
	if !ok || pending.Attempts > maxOTPAttempts {
		return nil, authErr(2002, http.StatusBadRequest, auth.ErrOTPExpired, "OTP expired or not found!")
	}
	switch err := pending.OTP.Check(code, s.now()); {
	case errors.Is(err, auth.ErrOTPMismatch) && pending.Attempts >= maxOTPAttempts:
		s.signups.Delete(email)
		s.logger.Warn("Signup OTP attempts exhausted", "email", email)
		return nil, authErr(2006, http.StatusTooManyRequests, auth.ErrOTPAttemptsExceeded, "Too many invalid OTP attempts. Please sign up again.")
	case errors.Is(err, auth.ErrOTPMismatch):
		return nil, authErr(2003, http.StatusBadRequest, err, "Invalid OTP!")
	case errors.Is(err, auth.ErrOTPExpired):
		s.signups.Delete(email)
		return nil, authErr(2004, http.StatusBadRequest, err, "OTP expired!")
	}

	user, err := s.authenticator.Register(ctx, pending.Email, pending.Name, pending.PasswordHash)
	if errors.Is(err, auth.ErrEmailExists) {
		s.signups.Delete(email)
		return nil, authErr(1005, http.StatusConflict, err, "User with the provided email already exists")
	}
	if err != nil {
		return nil, s.internal(2005, "VerifySignup", err)
	}
	s.signups.Delete(email)

	session, err := s.newSession(user)
	if err != nil {
		return nil, s.internal(2005, "VerifySignup", err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return session, nil
}

// ResendSignupOTP issues a fresh OTP for a pending signup.
func (s *AuthService) ResendSignupOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	s.logger.Info("ResendSignupOTP request received", "email", email)

	if email == "" {
		return authErr(6001, http.StatusBadRequest, ErrInvalidArgument, "Email is required!")
	}
	pending, ok := s.signups.Get(email)
	if !ok {
		return authErr(6002, http.StatusNotFound, ErrUserNotFound, "No OTP request found for this email!")
	}

	otp, err := auth.NewOTP(s.now(), SignupOTPTTL)
	if err != nil {
		return s.internal(6003, "ResendSignupOTP", err)
	}
	pending.OTP = otp
	pending.Attempts = 0
	s.signups.Set(email, pending)

	if err := s.sendOTP(ctx, email, pending.Name, otp, notify.PurposeSignup); err != nil {
		return s.internal(6003, "ResendSignupOTP", err)
	}
	return nil
}

// Signin verifies credentials and issues a token pair.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	s.logger.Info("Signin request received", "email", email)

	if email == "" || password == "" {
		return nil, authErr(3001, http.StatusBadRequest, ErrInvalidArgument, "Empty credentials supplied!")
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		s.logger.Warn("Signin failed", "email", email, "error", err)
		return nil, authErr(3002, http.StatusNotFound, err, "Invalid credentials!")
	case errors.Is(err, auth.ErrNotVerified):
		return nil, authErr(3003, http.StatusForbidden, err, "Email not verified. Please verify your email.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Warn("Signin failed", "email", email, "error", err)
		return nil, authErr(3004, http.StatusUnauthorized, err, "Invalid password!")
	case err != nil:
		return nil, s.internal(3005, "Signin", err)
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, s.internal(3005, "Signin", err)
	}

	s.logger.Info("Signin successful", "user_id", user.ID)
	return session, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", authErr(0, http.StatusUnauthorized, auth.ErrMissingToken, "Refresh token not provided!")
	}

	claims, err := s.jwtManager.Validate(refreshToken, auth.RefreshToken)
	if err != nil {
		s.logger.Warn("Refresh failed", "error", err)
		return "", authErr(0, http.StatusForbidden, auth.ErrInvalidToken, "Invalid or expired refresh token!")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", authErr(0, http.StatusForbidden, auth.ErrInvalidToken, "Invalid or expired refresh token!")
	}
	if err != nil {
		return "", s.internal(0, "Refresh", err)
	}

	access, err := s.jwtManager.Generate(user, auth.AccessToken)
	if err != nil {
		return "", s.internal(0, "Refresh", err)
	}
	return access, nil
}

// ForgotPassword emails a password reset OTP.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	s.logger.Info("ForgotPassword request received", "email", email)

	if email == "" {
		return authErr(4001, http.StatusBadRequest, ErrInvalidArgument, "Email is required!")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return authErr(4002, http.StatusNotFound, ErrUserNotFound, "No user found with this email!")
	}
	if err != nil {
		return s.internal(4003, "ForgotPassword", err)
	}

	otp, err := auth.NewOTP(s.now(), ResetOTPTTL)
	if err != nil {
		return s.internal(4003, "ForgotPassword", err)
	}
	s.resets.Set(email, pendingReset{UserID: user.ID, Name: user.Name, OTP: otp})

	if err := s.sendOTP(ctx, email, user.Name, otp, notify.PurposePasswordReset); err != nil {
		return s.internal(4003, "ForgotPassword", err)
	}
	return nil
}

// ResendResetOTP issues a fresh OTP for a reset in progress.
func (s *AuthService) ResendResetOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	s.logger.Info("ResendResetOTP request received", "email", email)

	if email == "" {
		return authErr(7001, http.StatusBadRequest, ErrInvalidArgument, "Email is required!")
	}
	reset, ok := s.resets.Get(email)
	if !ok {
		return authErr(7002, http.StatusNotFound, ErrUserNotFound, "No OTP request found for this email!")
	}

	otp, err := auth.NewOTP(s.now(), ResetOTPTTL)
	if err != nil {
		return s.internal(7003, "ResendResetOTP", err)
	}
	reset.OTP = otp
	reset.Verified = false
	reset.Attempts = 0
	s.resets.Set(email, reset)

	if err := s.sendOTP(ctx, email, reset.Name, otp, notify.PurposePasswordReset); err != nil {
		return s.internal(7003, "ResendResetOTP", err)
	}
	return nil
}

// VerifyResetOTP checks the reset OTP and unlocks ResetPassword.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	s.logger.Info("VerifyResetOTP request received", "email", email)

	if email == "" || code == "" {
		return authErr(5001, http.StatusBadRequest, ErrInvalidArgument, "Email and OTP are required!")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return authErr(5003, http.StatusNotFound, ErrUserNotFound, "No user found with this email!")
		}
		return s.internal(5005, "VerifyResetOTP", err)
	}

	var reset pendingReset
	ok := s.resets.Update(email, func(r pendingReset) pendingReset {
		r.Attempts++
		reset = r
		return r
	})
	if !ok || reset.Attempts > maxOTPAttempts {
		return authErr(5004, http.StatusBadRequest, auth.ErrOTPExpired, "Invalid or expired OTP!")
	}
	if err := reset.OTP.Check(code, s.now()); err != nil {
		if errors.Is(err, auth.ErrOTPMismatch) && reset.Attempts >= maxOTPAttempts {
			s.resets.Delete(email)
			s.logger.Warn("Reset OTP attempts exhausted", "email", email)
			return authErr(5006, http.StatusTooManyRequests, auth.ErrOTPAttemptsExceeded, "Too many invalid OTP attempts. Please request a new password reset.")
		}
		return authErr(5004, http.StatusBadRequest, err, "Invalid or expired OTP!")
	}

	s.resets.Update(email, func(r pendingReset) pendingReset {
		r.Verified = true
		return r
	})
	return nil
}

// ResetPassword sets a new password once the reset OTP has been verified.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	newPassword = strings.TrimSpace(newPassword)
	s.logger.Info("ResetPassword request received", "email", email)

	if email == "" || newPassword == "" {
		return authErr(6001, http.StatusBadRequest, ErrInvalidArgument, "Email and new password are required!")
	}
	if err := s.authenticator.ValidateCredential(newPassword); err != nil {
		return authErr(6002, http.StatusBadRequest, err, weakPasswordMessage)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return authErr(6003, http.StatusNotFound, ErrUserNotFound, "No user found with this email!")
	}
	if err != nil {
		return s.internal(6005, "ResetPassword", err)
	}

	reset, ok := s.resets.Get(email)
	if !ok || !reset.Verified || reset.UserID != user.ID {
		return authErr(6004, http.StatusForbidden, ErrUnauthenticated, "OTP verification is required before resetting the password!")
	}

	if err := s.authenticator.ResetCredential(ctx, user.ID, newPassword); err != nil {
		return s.internal(6005, "ResetPassword", err)
	}
	s.resets.Delete(email)

	s.logger.Info("Password reset", "user_id", user.ID)
	return nil
}

// Me returns the profile of the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*UserView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	view := newUserView(user)
	return &view, nil
}

func (s *AuthService) sendOTP(ctx context.Context, email, name string, otp auth.OTP, purpose notify.Purpose) error {
	msg := &notify.OTPMessage{
		Email:     email,
		Name:      name,
		Code:      otp.Code,
		Purpose:   purpose,
		ExpiresAt: otp.ExpiresAt,
		Timestamp: s.now(),
	}
	if err := s.notifier.SendOTP(ctx, msg); err != nil {
		return fmt.Errorf("failed to send OTP: %w", err)
	}
	s.observer.OTPIssued(string(purpose))
	return nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	pair, err := s.jwtManager.GeneratePair(user)
	if err != nil {
		return nil, err
	}
	return &Session{TokenPair: pair, User: newUserView(user)}, nil
}

// internal logs err and hides it behind a generic message.
func (s *AuthService) internal(code int, op string, err error) *AuthError {
	s.logger.Error(op+" failed", "error", err)
	return authErr(code, http.StatusInternalServerError, err, "Internal server error")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		AccountBalance: u.AccountBalance,
		CreatedAt:      u.CreatedAt,
	}
}
