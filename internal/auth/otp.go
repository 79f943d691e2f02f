package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrOTPMismatch = errors.New("invalid OTP")
	ErrOTPExpired  = errors.New("OTP has expired")
	// ErrOTPAttemptsExceeded is returned once a pending OTP has seen too many wrong codes.
	ErrOTPAttemptsExceeded = errors.New("too many invalid OTP attempts")
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// OTP is a one-time numeric code with an expiry.
type OTP struct {
	Code      string
	ExpiresAt time.Time
}

// NewOTP draws a zero-padded 6-digit code valid for ttl from now.
func NewOTP(now time.Time, ttl time.Duration) (OTP, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return OTP{}, fmt.Errorf("failed to generate OTP: %w", err)
	}
	return OTP{
		Code:      fmt.Sprintf("%0*d", otpDigits, n.Int64()),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Check compares code against the OTP. A wrong code reports ErrOTPMismatch
// even when the OTP has also expired.
func (o OTP) Check(code string, now time.Time) error {
	if subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) != 1 {
		return ErrOTPMismatch
	}
	if now.After(o.ExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}
