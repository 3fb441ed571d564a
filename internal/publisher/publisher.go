package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// Publisher wraps a NATS connection and publishes canonical event envelopes
// over JetStream. The event type doubles as the subject, so consumers can
// subscribe per event or to the evt.> wildcard.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
	log     *zap.Logger
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
		log:     logger.L(),
	}, nil
}

// Publish wraps payload in an envelope and publishes it under eventType.
func (p *Publisher) Publish(ctx context.Context, eventType string, correlationID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("publisher.marshal_failed",
			zap.String("event_type", eventType),
			zap.Error(err))
		metrics.IncNATSPublishError(eventType)
		return fmt.Errorf("marshal payload: %w", err)
	}

	env := model.Envelope{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		EventType:     eventType,
		Version:       "1",
		Timestamp:     time.Now().UTC(),
		Payload:       body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		metrics.IncNATSPublishError(eventType)
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &nats.Msg{
		Subject: eventType,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{eventType},
			"correlation_id": []string{correlationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSPublishLatency, start, eventType)
	if err != nil {
		p.log.Error("publisher.publish_failed",
			zap.String("event_type", eventType),
			zap.String("correlation_id", correlationID.String()),
			zap.Error(err))
		metrics.IncNATSPublishError(eventType)
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.log.Debug("publisher.publish_success",
		zap.String("event_type", eventType),
		zap.String("correlation_id", correlationID.String()))
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
