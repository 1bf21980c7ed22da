// Package events publishes redaction audit events to NATS JetStream.
// The publisher is optional: a nil *Publisher is a no-op, so the
// gateway runs unchanged when NATS_URL is unset.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	streamName = "AUDIT_EVENTS"

	subjectRedaction = "AUDIT_EVENTS.redaction.applied"
	subjectHydration = "AUDIT_EVENTS.hydration.applied"
)

// RedactionEvent is emitted after every pipeline run that produced
// bindings. Original values never appear in events.
type RedactionEvent struct {
	SessionID  string         `json:"session_id"`
	Detections int            `json:"detections"`
	Layers     map[string]int `json:"layers"`
	ElapsedMS  int64          `json:"elapsed_ms"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// HydrationEvent is emitted after a hydrate call against a known
// session.
type HydrationEvent struct {
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher wraps a NATS connection and its JetStream context.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
}

// NewPublisher connects to NATS, initialises JetStream, and ensures
// the audit stream exists.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{streamName + ".>"},
			MaxAge:   7 * 24 * time.Hour,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to provision %s stream: %w", streamName, err)
		}
	}

	logger.Info("NATS JetStream connected", zap.String("url", url))
	return &Publisher{conn: nc, js: js, log: logger}, nil
}

// Close drains the connection so in-flight publishes are flushed
// before shutdown.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Redaction publishes a RedactionEvent. Publishing is fire-and-forget;
// audit loss must never fail a request.
func (p *Publisher) Redaction(ev RedactionEvent) {
	p.publish(subjectRedaction, ev)
}

// Hydration publishes a HydrationEvent.
func (p *Publisher) Hydration(ev HydrationEvent) {
	p.publish(subjectHydration, ev)
}

func (p *Publisher) publish(subject string, ev any) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal audit event", zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("failed to publish audit event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
