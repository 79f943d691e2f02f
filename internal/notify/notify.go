// Package notify delivers one-time passcodes to users.
//
// The API server only publishes; a mail worker consumes the queue and sends
// the actual email.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Purpose says which flow an OTP belongs to.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
)

// OTPMessage is the payload published for every OTP issued.
type OTPMessage struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Code      string    `json:"code"`
	Purpose   Purpose   `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *OTPMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OTPMessageFromJSON creates a message from JSON bytes
func OTPMessageFromJSON(data []byte) (*OTPMessage, error) {
	var msg OTPMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Notifier sends OTP messages.
type Notifier interface {
	SendOTP(ctx context.Context, msg *OTPMessage) error
}

// LogNotifier writes OTPs to the log instead of sending them.
// Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendOTP logs the OTP at debug level.
func (n *LogNotifier) SendOTP(ctx context.Context, msg *OTPMessage) error {
	n.logger.InfoContext(ctx, "OTP issued", "email", msg.Email, "purpose", msg.Purpose)
	n.logger.DebugContext(ctx, "OTP code", "email", msg.Email, "code", msg.Code)
	return nil
}
