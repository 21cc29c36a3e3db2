package simulations

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox/idempotency"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox/payloads"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

const cogSimulationConsumer = "cog-simulations"

type estimator interface {
	Estimate(ctx context.Context, input deals.EstimateInput) (*types.EstimateSummary, error)
}

// Consumer drains cost-overrun-guard simulation requests raised by the
// variance gate and refreshes the deal's Monte Carlo estimate with a fresh
// seed, so the next change-order decision projects from current spend.
type Consumer struct {
	deals        estimator
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a simulation request consumer.
func NewConsumer(dealsSvc estimator, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if dealsSvc == nil {
		return nil, fmt.Errorf("deals service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("simulations subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		deals:        dealsSvc,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventCOGSimulationRequested) {
		c.logg.Info(logCtx, "skipping non-simulation event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, cogSimulationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.COGSimulationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, cogSimulationConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"deal_id":      payload.DealID.String(),
		"trade":        payload.Trade,
		"trigger_tier": string(payload.TriggerTier),
	})

	summary, err := c.deals.Estimate(ctx, deals.EstimateInput{DealID: payload.DealID})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			c.logg.Warn(logCtx, "deal no longer exists, dropping simulation request")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "simulation refresh failed", err)
		_ = c.idempotency.Delete(ctx, cogSimulationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"runs":   summary.Runs,
		"p80Usd": summary.P80Usd,
	}), "deal estimate refreshed")
	return processResult{ack: true}
}
