package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox/payloads"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
)

// AppendInput is one gate decision to record.
type AppendInput struct {
	DealID     uuid.UUID
	Gate       string
	Actor      string
	Artifact   enums.EventArtifact
	ArtifactID uuid.UUID
	Action     enums.EventAction
	Before     any
	After      any
	Metadata   any
}

// ListResult is one page of a deal's audit trail.
type ListResult struct {
	Events     []models.Event
	NextCursor string
}

// TamperReport flags an event whose stored checksum no longer matches its
// content.
type TamperReport struct {
	EventID          uuid.UUID `json:"eventId"`
	StoredChecksum   string    `json:"storedChecksum"`
	ComputedChecksum string    `json:"computedChecksum"`
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the append-only audit log of gate decisions. Appends run in
// the caller's transaction, after the ledger write they describe, so a
// reader never sees an event ahead of the state it records.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Event, error)
	List(ctx context.Context, dealID uuid.UUID, params pagination.Params) (*ListResult, error)
	Verify(ctx context.Context, dealID uuid.UUID) ([]TamperReport, error)
}

type service struct {
	repo   Repository
	outbox outboxEmitter
}

func NewService(repo Repository, emitter outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, errors.New("events repository is required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter is required")
	}
	return &service{repo: repo, outbox: emitter}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Event, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event append requires a transaction")
	}
	if input.DealID == uuid.Nil || input.ArtifactID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id and artifact id are required")
	}
	if !input.Action.IsValid() || !input.Artifact.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event action or artifact")
	}

	before, err := marshalState(input.Before)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal before state")
	}
	after, err := marshalState(input.After)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal after state")
	}
	metadata, err := marshalState(input.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal metadata")
	}

	event := &models.Event{
		DealID:     input.DealID,
		Gate:       input.Gate,
		Actor:      input.Actor,
		Artifact:   input.Artifact,
		ArtifactID: input.ArtifactID,
		Action:     input.Action,
		Before:     before,
		After:      after,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
	checksum, err := Checksum(event)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute event checksum")
	}
	event.Checksum = checksum

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGateDecisionRecorded,
		AggregateType: enums.AggregateDeal,
		AggregateID:   input.DealID,
		Actor:         input.Actor,
		Version:       1,
		OccurredAt:    event.OccurredAt,
		Data: payloads.GateDecisionRecordedEvent{
			DealID:     input.DealID,
			Gate:       input.Gate,
			Artifact:   input.Artifact,
			ArtifactID: input.ArtifactID,
			Action:     input.Action,
			OccurredAt: event.OccurredAt,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue decision event")
	}
	return event, nil
}

func (s *service) List(ctx context.Context, dealID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if dealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByDealID(ctx, dealID, limit+1, cursor)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Events: rows}
	if len(rows) > limit {
		result.Events = rows[:limit]
		last := result.Events[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.OccurredAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// Verify replays the deal's full audit trail and recomputes every checksum.
func (s *service) Verify(ctx context.Context, dealID uuid.UUID) ([]TamperReport, error) {
	if dealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}

	rows, err := s.repo.ListAllByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	reports := make([]TamperReport, 0)
	for i := range rows {
		computed, err := Checksum(&rows[i])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute event checksum")
		}
		if computed != rows[i].Checksum {
			reports = append(reports, TamperReport{
				EventID:          rows[i].ID,
				StoredChecksum:   rows[i].Checksum,
				ComputedChecksum: computed,
			})
		}
	}
	return reports, nil
}

func marshalState(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}
