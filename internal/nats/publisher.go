package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telhawk-systems/socdetect/common/messaging"
	"github.com/telhawk-systems/socdetect/internal/metrics"
)

// Publisher publishes pipeline events to NATS subjects.
type Publisher struct {
	client messaging.Publisher
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(client messaging.Publisher) *Publisher {
	return &Publisher{client: client}
}

// PublishAlertCreated publishes an alert created event.
func (p *Publisher) PublishAlertCreated(ctx context.Context, event *AlertCreatedEvent) error {
	return p.publish(ctx, messaging.SubjectAlertsCreated, event)
}

// PublishLogProcessed publishes a log processed event.
func (p *Publisher) PublishLogProcessed(ctx context.Context, event *LogProcessedEvent) error {
	return p.publish(ctx, messaging.SubjectLogsProcessed, event)
}

// PublishAlertScored publishes an alert scored event.
func (p *Publisher) PublishAlertScored(ctx context.Context, event *AlertScoredEvent) error {
	return p.publish(ctx, messaging.SubjectAlertsScored, event)
}

// publish marshals data to JSON and publishes to the specified subject.
func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := p.client.Publish(ctx, subject, bytes); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(subject, "error").Inc()
		return err
	}
	metrics.EventsPublishedTotal.WithLabelValues(subject, "ok").Inc()
	return nil
}
