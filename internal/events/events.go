// Package events publishes invoice lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

// Event types.
const (
	InvoiceCreated = "invoice.created"
	InvoiceUpdated = "invoice.updated"
	InvoiceDeleted = "invoice.deleted"
)

// Event is the JSON payload written for every invoice change.
type Event struct {
	Type          string  `json:"type"`
	InvoiceID     string  `json:"invoiceId"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Owner         string  `json:"owner"`
	Status        string  `json:"status,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Total         float64 `json:"total"`
	Fallback      bool    `json:"fallbackNumber,omitempty"`
	OccurredAt    string  `json:"occurredAt"`
}

// NewInvoiceEvent builds an event of the given type for inv.
func NewInvoiceEvent(eventType string, inv *models.Invoice) Event {
	return Event{
		Type:          eventType,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Owner:         inv.Owner,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		Total:         inv.Total,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Publisher sends events to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by invoice id, so every event
// for one invoice lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher for topic on the given comma
// separated brokers.
func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(ParseBrokers(brokersCSV)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{Key: []byte(e.InvoiceID), Value: data, Time: time.Now().UTC()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// New returns a Kafka publisher when brokers are configured and Noop otherwise.
func New(brokersCSV, topic string) Publisher {
	if len(ParseBrokers(brokersCSV)) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(brokersCSV, topic)
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
