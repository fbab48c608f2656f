package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var sample = notification.StatusChange{
	ID:             "evt-1",
	RequestID:      "req-1",
	UserID:         "u1",
	LeaveTypeID:    "annual",
	PreviousStatus: "pending",
	Status:         "approved",
	ActorID:        "m1",
	OccurredAt:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
}

func TestMessage(t *testing.T) {
	// Act
	msg, err := Message(sample)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "req-1", string(msg.Key))
	assert.Equal(t, sample.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, notification.EventLeaveStatusChanged, string(msg.Headers[0].Value))

	var decoded notification.StatusChange
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "approved", decoded.Status)
}

func TestPublisher_Deliver(t *testing.T) {
	// Setup
	writer := &fakeWriter{}
	p := NewPublisher(writer)

	// Act
	err := p.Deliver(context.Background(), sample)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "kafka", p.Name())
	assert.Len(t, writer.messages, 1)
	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublisher_DeliverError(t *testing.T) {
	// Setup
	p := NewPublisher(&fakeWriter{err: errors.New("leader not available")})

	// Act
	err := p.Deliver(context.Background(), sample)

	// Assert
	assert.ErrorContains(t, err, "req-1")
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewWriter(t *testing.T) {
	t.Run("requires brokers", func(t *testing.T) {
		_, err := NewWriter(Config{Topic: "t"})
		assert.Error(t, err)
	})

	t.Run("requires topic", func(t *testing.T) {
		_, err := NewWriter(Config{Brokers: []string{"localhost:9092"}})
		assert.Error(t, err)
	})

	t.Run("sasl and tls", func(t *testing.T) {
		w, err := NewWriter(Config{
			Brokers:  []string{"b1:9092", "b2:9092"},
			Topic:    "leave.status-changed",
			Username: "svc",
			Password: "secret",
			TLS:      true,
		})
		require.NoError(t, err)
		assert.Equal(t, "leave.status-changed", w.Topic)
		transport, ok := w.Transport.(*kafka.Transport)
		require.True(t, ok)
		assert.NotNil(t, transport.SASL)
		assert.NotNil(t, transport.TLS)
	})
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}
