package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// checksumPayload is the canonical decision content a checksum covers. Row
// identity and timestamps from the store are excluded so a replayed decision
// hashes the same.
type checksumPayload struct {
	DealID     uuid.UUID           `json:"dealId"`
	Gate       string              `json:"gate"`
	Actor      string              `json:"actor"`
	Artifact   enums.EventArtifact `json:"artifact"`
	ArtifactID uuid.UUID           `json:"artifactId"`
	Action     enums.EventAction   `json:"action"`
	Before     json.RawMessage     `json:"before,omitempty"`
	After      json.RawMessage     `json:"after,omitempty"`
	Metadata   json.RawMessage     `json:"metadata,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Checksum hashes the canonical JSON form of an event's decision content.
// Nested JSON documents are normalized with sorted keys first, so two
// payloads that differ only in field order produce the same digest.
func Checksum(event *models.Event) (string, error) {
	before, err := canonicalJSON(event.Before)
	if err != nil {
		return "", fmt.Errorf("canonicalize before state: %w", err)
	}
	after, err := canonicalJSON(event.After)
	if err != nil {
		return "", fmt.Errorf("canonicalize after state: %w", err)
	}
	metadata, err := canonicalJSON(event.Metadata)
	if err != nil {
		return "", fmt.Errorf("canonicalize metadata: %w", err)
	}

	payload := checksumPayload{
		DealID:     event.DealID,
		Gate:       event.Gate,
		Actor:      event.Actor,
		Artifact:   event.Artifact,
		ArtifactID: event.ArtifactID,
		Action:     event.Action,
		Before:     before,
		After:      after,
		Metadata:   metadata,
		OccurredAt: event.OccurredAt.UTC().Truncate(time.Microsecond),
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON re-encodes a JSON document through interface{} values.
// encoding/json writes map keys in sorted order, which gives a stable byte
// form independent of how the producer ordered its fields.
func canonicalJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
