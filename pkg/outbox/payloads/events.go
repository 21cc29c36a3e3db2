package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// GateDecisionRecordedEvent mirrors an appended audit event for downstream
// consumers that track decision flow outside the primary store.
type GateDecisionRecordedEvent struct {
	DealID     uuid.UUID           `json:"deal_id"`
	Gate       string              `json:"gate"`
	Artifact   enums.EventArtifact `json:"artifact"`
	ArtifactID uuid.UUID           `json:"artifact_id"`
	Action     enums.EventAction   `json:"action"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// COGSimulationRequestedEvent asks the simulation worker to re-run the cost
// model for a deal that escalated past the second variance tier.
type COGSimulationRequestedEvent struct {
	DealID      uuid.UUID          `json:"deal_id"`
	Trade       string             `json:"trade"`
	TriggerTier enums.VarianceTier `json:"trigger_tier"`
	RequestedAt time.Time          `json:"requested_at"`
}

// NotificationRequestedEvent tells downstream systems to alert a stakeholder.
type NotificationRequestedEvent struct {
	DealID   uuid.UUID `json:"deal_id"`
	Gate     string    `json:"gate"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}
