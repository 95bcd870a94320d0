// ABOUTME: Kafka publisher mirroring audit entries and churn signals onto topics
// ABOUTME: JSON values keyed by customer id so one customer's events stay ordered
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/models"
	"github.com/segmentio/kafka-go"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends engine events to Kafka.
type Publisher struct {
	auditWriter   messageWriter
	signalsWriter messageWriter
}

// NewPublisher creates a publisher for the given brokers and topics.
func NewPublisher(brokers []string, auditTopic, signalsTopic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if auditTopic == "" || signalsTopic == "" {
		return nil, fmt.Errorf("kafka audit and signals topics are required")
	}

	return &Publisher{
		auditWriter:   newWriter(brokers, auditTopic),
		signalsWriter: newWriter(brokers, signalsTopic),
	}, nil
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
}

// AuditEvent is the payload published for each audit entry.
type AuditEvent struct {
	Type  string          `json:"type"`
	Entry models.AgentLog `json:"entry"`
}

// SignalEvent is the payload published for each churn signal.
type SignalEvent struct {
	Type   string             `json:"type"`
	Signal models.ChurnSignal `json:"signal"`
}

// PublishAudit sends an audit entry to the audit topic.
func (p *Publisher) PublishAudit(ctx context.Context, entry models.AgentLog) error {
	key := entry.AgentType
	if entry.CustomerID != nil && *entry.CustomerID != "" {
		key = *entry.CustomerID
	}
	return p.send(ctx, p.auditWriter, key, AuditEvent{Type: "agent_log", Entry: entry})
}

// PublishSignal sends a churn signal to the signals topic.
func (p *Publisher) PublishSignal(ctx context.Context, signal models.ChurnSignal) error {
	return p.send(ctx, p.signalsWriter, signal.CustomerID, SignalEvent{Type: "churn_signal", Signal: signal})
}

func (p *Publisher) send(ctx context.Context, w messageWriter, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the Kafka writers.
func (p *Publisher) Close() error {
	if err := p.auditWriter.Close(); err != nil {
		return err
	}
	return p.signalsWriter.Close()
}
