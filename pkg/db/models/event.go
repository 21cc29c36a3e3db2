package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// Event is one append-only audit record of a gate decision. Rows are never
// updated or deleted; Checksum covers the canonical JSON form of the row so
// replay can detect tampering.
type Event struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID     uuid.UUID           `gorm:"column:deal_id;type:uuid;not null;index:idx_events_deal_occurred"`
	Gate       string              `gorm:"column:gate;not null"`
	Actor      string              `gorm:"column:actor;not null"`
	Artifact   enums.EventArtifact `gorm:"column:artifact;type:event_artifact_enum;not null"`
	ArtifactID uuid.UUID           `gorm:"column:artifact_id;type:uuid;not null"`
	Action     enums.EventAction   `gorm:"column:action;type:event_action_enum;not null"`
	Before     json.RawMessage     `gorm:"column:before_state;type:jsonb"`
	After      json.RawMessage     `gorm:"column:after_state;type:jsonb"`
	Metadata   json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	Checksum   string              `gorm:"column:checksum;not null"`
	OccurredAt time.Time           `gorm:"column:occurred_at;not null;index:idx_events_deal_occurred"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}
