package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Config is the broker connection used by the status-change publisher.
type Config struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	TLS      bool
}

// NewWriter builds an async writer for cfg.Topic. SCRAM-SHA-512 is used
// when a username is configured.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	transport := &kafka.Transport{}
	if cfg.Username != "" {
		mechanism, err := scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("error creating SASL mechanism: %w", err)
		}
		transport.SASL = mechanism
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    transport,
		Async:        true,
		MaxAttempts:  5,
		BatchTimeout: 50 * time.Millisecond,
	}, nil
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a notification sink writing status changes as JSON, keyed by
// request id so one request's changes stay on one partition.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) Name() string { return "kafka" }

// Deliver implements notification.Sink.
func (p *Publisher) Deliver(ctx context.Context, change notification.StatusChange) error {
	msg, err := Message(change)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish status change %s: %w", change.RequestID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Message encodes change as a kafka message.
func Message(change notification.StatusChange) (kafka.Message, error) {
	value, err := json.Marshal(change)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode status change: %w", err)
	}
	return kafka.Message{
		Key:   []byte(change.RequestID),
		Value: value,
		Time:  change.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(notification.EventLeaveStatusChanged)},
		},
	}, nil
}
