package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/common/messaging"
	"github.com/telhawk-systems/socdetect/internal/models"
)

const defaultSeenSize = 4096

// AlertScorer scores a persisted alert; (nil, nil) means it does not exist.
type AlertScorer interface {
	Score(ctx context.Context, alertID string) (*models.RiskScoringResult, error)
}

// Handler scores every alert announced on soc.alerts.created and publishes
// the result to soc.alerts.scored.
type Handler struct {
	client    messaging.Subscriber
	scorer    AlertScorer
	publisher *Publisher
	logger    *logging.Logger
	seen      *lru.Cache[string, struct{}]
	subs      []messaging.Subscription
	now       func() time.Time
}

// NewHandler creates a new NATS message handler.
func NewHandler(client messaging.Subscriber, scorer AlertScorer, publisher *Publisher, logger *logging.Logger) (*Handler, error) {
	seen, err := lru.New[string, struct{}](defaultSeenSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}
	return &Handler{
		client:    client,
		scorer:    scorer,
		publisher: publisher,
		logger:    logger.WithComponent("nats-handler"),
		seen:      seen,
		now:       time.Now,
	}, nil
}

// Start begins listening for NATS messages.
func (h *Handler) Start(ctx context.Context) error {
	sub, err := h.client.QueueSubscribe(
		messaging.SubjectAlertsCreated,
		messaging.QueueRiskWorkers,
		h.handleAlertCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to alert created events: %w", err)
	}
	h.subs = append(h.subs, sub)

	h.logger.InfoContext(ctx, "NATS handler started",
		logging.Subject(messaging.SubjectAlertsCreated),
		"queue", messaging.QueueRiskWorkers,
	)
	return nil
}

// Stop unsubscribes from all subjects.
func (h *Handler) Stop() error {
	for _, sub := range h.subs {
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Warn("failed to unsubscribe", logging.Subject(sub.Subject()), logging.Error(err))
		}
	}
	h.subs = nil
	h.logger.Info("NATS handler stopped")
	return nil
}

// handleAlertCreated scores the announced alert. Alerts already scored by
// this worker are skipped.
func (h *Handler) handleAlertCreated(ctx context.Context, msg *messaging.Message) error {
	var event AlertCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal alert created event: %w", err)
	}
	if event.AlertID == "" {
		return fmt.Errorf("alert created event without alert_id")
	}

	if h.seen.Contains(event.AlertID) {
		h.logger.DebugContext(ctx, "alert already scored", logging.AlertID(event.AlertID))
		return nil
	}

	result, err := h.scorer.Score(ctx, event.AlertID)
	if err != nil {
		return fmt.Errorf("failed to score alert %s: %w", event.AlertID, err)
	}
	if result == nil {
		h.logger.WarnContext(ctx, "alert from event not found", logging.AlertID(event.AlertID))
		return nil
	}
	h.seen.Add(event.AlertID, struct{}{})

	if err := h.publisher.PublishAlertScored(ctx, NewAlertScoredEvent(result, h.now())); err != nil {
		return fmt.Errorf("failed to publish alert scored event: %w", err)
	}
	return nil
}
