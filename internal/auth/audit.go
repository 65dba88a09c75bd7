// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// # Audit Events

// Audit event types.
const (
	EventLoginSucceeded    = "login.succeeded"
	EventLoginFailed       = "login.failed"
	EventLoginBlocked      = "login.blocked"
	EventAccountRegistered = "account.registered"
	EventSessionRefreshed  = "session.refreshed"
	EventSessionRevoked    = "session.revoked"
	EventPasswordChanged   = "password.changed"
	EventLoginUnblocked    = "login.unblocked"
)

// AuditEvent is one security-relevant fact about an authentication flow.
type AuditEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// key groups a user's events on one partition.
func (event AuditEvent) key() string {
	if event.UserID != "" {
		return event.UserID
	}
	return event.Email
}

// AuditPublisher emits audit events. Publishing is best effort: a failure is
// logged and never fails the authentication flow that produced the event.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent)
}

// LogAuditPublisher writes audit events to the structured log.
type LogAuditPublisher struct {
	logger *slog.Logger
}

// NewLogAuditPublisher creates a publisher over logger.
func NewLogAuditPublisher(logger *slog.Logger) *LogAuditPublisher {
	return &LogAuditPublisher{logger: logger}
}

func (publisher *LogAuditPublisher) Publish(ctx context.Context, event AuditEvent) {
	publisher.logger.InfoContext(ctx, "auth_audit_event",
		slog.String("type", event.Type),
		slog.String("user_id", event.UserID),
		slog.String("client_ip", event.ClientIP),
		slog.Time("occurred_at", event.OccurredAt),
	)
}

// messageWriter is the subset of [kafka.Writer] the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaAuditPublisher sends audit events to a Kafka topic.
//
// The writer runs in async mode so a slow broker never adds latency to a
// login. Delivery failures surface through the writer's completion callback.
type KafkaAuditPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaAuditPublisher creates a publisher writing to topic on brokers.
func NewKafkaAuditPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaAuditPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("auth_audit_delivery_failed",
					slog.String("topic", topic),
					slog.Int("messages", len(messages)),
					slog.String("error", err.Error()),
				)
			}
		},
	}
	return newKafkaAuditPublisher(writer, logger)
}

func newKafkaAuditPublisher(writer messageWriter, logger *slog.Logger) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{writer: writer, logger: logger}
}

func (publisher *KafkaAuditPublisher) Publish(ctx context.Context, event AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		publisher.logger.ErrorContext(ctx, "auth_audit_encode_failed", slog.String("error", err.Error()))
		return
	}

	message := kafka.Message{
		Key:   []byte(event.key()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte("extcontrol-auth")},
		},
		Time: event.OccurredAt,
	}
	if event.RequestID != "" {
		message.Headers = append(message.Headers, kafka.Header{Key: "correlation_id", Value: []byte(event.RequestID)})
	}

	// The request context may be cancelled as soon as the response is written.
	if err := publisher.writer.WriteMessages(context.WithoutCancel(ctx), message); err != nil {
		publisher.logger.ErrorContext(ctx, "auth_audit_publish_failed",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Close flushes pending messages and releases the writer.
func (publisher *KafkaAuditPublisher) Close() error {
	return publisher.writer.Close()
}
