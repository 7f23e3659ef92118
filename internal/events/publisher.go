// Package events announces saved assessments to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dnswd/cukai"
)

// EventType names the kind of assessment event.
type EventType string

const EventTypeAssessmentSaved EventType = "assessment.saved"

// AssessmentEvent is the message body. Amounts are fixed two-decimal strings
// so consumers never see binary floating point.
type AssessmentEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	Income     string    `json:"income"`
	TaxRelief  string    `json:"tax_relief"`
	TaxPayable string    `json:"tax_payable"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
}

// Publisher sends assessment events.
type Publisher interface {
	PublishAssessment(ctx context.Context, r cukai.Record) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishAssessment(context.Context, cukai.Record) error { return nil }
func (NopPublisher) Close() error                                            { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by user ID.
type KafkaPublisher struct {
	writer    messageWriter
	topic     string
	sessionID string
	logger    *zap.Logger
	now       func() time.Time
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic, sessionID string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, topic, sessionID, logger)
}

func newKafkaPublisher(w messageWriter, topic, sessionID string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, topic: topic, sessionID: sessionID, logger: logger, now: time.Now}
}

func (p *KafkaPublisher) PublishAssessment(ctx context.Context, r cukai.Record) error {
	event := AssessmentEvent{
		ID:         uuid.NewString(),
		Type:       EventTypeAssessmentSaved,
		UserID:     r.UserID,
		Income:     r.Income.Fixed(),
		TaxRelief:  r.TaxRelief.Fixed(),
		TaxPayable: r.TaxPayable.Fixed(),
		Timestamp:  p.now().UTC(),
		SessionID:  p.sessionID,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(r.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish assessment event failed",
			zap.String("topic", p.topic),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return err
	}
	p.logger.Debug("assessment event published",
		zap.String("topic", p.topic),
		zap.String("event_id", event.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
