package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	exchange, key string
	msg           amqp091.Publishing
	err           error
}

func (c *capturePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func TestAMQPNotifierPublishes(t *testing.T) {
	pub := &capturePublisher{}
	n := &AMQPNotifier{pub: pub, exchangeName: "spendwise", queueName: "otp"}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &OTPMessage{
		Email:     "alice@example.com",
		Code:      "123456",
		Purpose:   PurposeSignup,
		ExpiresAt: now.Add(5 * time.Minute),
		Timestamp: now,
	}
	require.NoError(t, n.SendOTP(context.Background(), msg))

	assert.Equal(t, "spendwise", pub.exchange)
	assert.Equal(t, "otp", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "300000", pub.msg.Expiration)

	decoded, err := OTPMessageFromJSON(pub.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "123456", decoded.Code)
	assert.Equal(t, PurposeSignup, decoded.Purpose)
}

func TestAMQPNotifierPublishError(t *testing.T) {
	n := &AMQPNotifier{pub: &capturePublisher{err: errors.New("channel closed")}}
	err := n.SendOTP(context.Background(), &OTPMessage{Email: "a@b.c", Code: "1"})
	assert.ErrorContains(t, err, "publish message")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	n := NewLogNotifier(logger)
	require.NoError(t, n.SendOTP(context.Background(), &OTPMessage{Email: "a@b.c", Code: "654321", Purpose: PurposePasswordReset}))

	assert.Contains(t, buf.String(), "password_reset")
	assert.NotContains(t, buf.String(), "654321", "codes are only logged at debug level")
}
