package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn  func(ctx context.Context, event *models.Event) error
	listFn    func(ctx context.Context, dealID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Event, error)
	listAllFn func(ctx context.Context, dealID uuid.UUID) ([]models.Event, error)
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, event *models.Event) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListByDealID(ctx context.Context, dealID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Event, error) {
	if f.listFn != nil {
		return f.listFn(ctx, dealID, limit, cursor)
	}
	return nil, nil
}

func (f *fakeRepository) ListAllByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Event, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx, dealID)
	}
	return nil, nil
}

type fakeEmitter struct {
	emitted []outbox.DomainEvent
	err     error
}

func (f *fakeEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.emitted = append(f.emitted, event)
	return nil
}

func validInput() AppendInput {
	return AppendInput{
		DealID:     uuid.New(),
		Gate:       "G1",
		Actor:      "system:G1",
		Artifact:   enums.EventArtifactDeal,
		ArtifactID: uuid.New(),
		Action:     enums.EventActionApprove,
		Metadata:   map[string]any{"p80Usd": 95000.0},
	}
}

func TestAppendSetsChecksumAndEmits(t *testing.T) {
	var created *models.Event
	repo := &fakeRepository{
		createFn: func(_ context.Context, event *models.Event) error {
			created = event
			return nil
		},
	}
	emitter := &fakeEmitter{}
	svc, err := NewService(repo, emitter)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	event, err := svc.Append(context.Background(), &gorm.DB{}, validInput())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if created == nil {
		t.Fatal("expected create call")
	}
	if event.Checksum == "" {
		t.Fatal("expected checksum set before persist")
	}
	recomputed, err := Checksum(event)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if recomputed != event.Checksum {
		t.Fatal("stored checksum does not match content")
	}

	if len(emitter.emitted) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(emitter.emitted))
	}
	if emitter.emitted[0].EventType != enums.EventGateDecisionRecorded {
		t.Fatalf("unexpected outbox event type %s", emitter.emitted[0].EventType)
	}
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, &fakeEmitter{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	input := validInput()
	input.DealID = uuid.Nil
	if _, err := svc.Append(context.Background(), &gorm.DB{}, input); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for nil deal, got %v", err)
	}

	input = validInput()
	input.Action = enums.EventAction("NOT_A_THING")
	if _, err := svc.Append(context.Background(), &gorm.DB{}, input); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for unknown action, got %v", err)
	}

	if _, err := svc.Append(context.Background(), nil, validInput()); pkgerrors.As(err) == nil {
		t.Fatalf("expected error without transaction, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	dealID := uuid.New()
	now := time.Now().UTC()
	rows := make([]models.Event, 3)
	for i := range rows {
		rows[i] = models.Event{ID: uuid.New(), DealID: dealID, OccurredAt: now.Add(-time.Duration(i) * time.Minute)}
	}

	repo := &fakeRepository{
		listFn: func(_ context.Context, _ uuid.UUID, limit int, _ *pagination.Cursor) ([]models.Event, error) {
			if limit != 3 {
				t.Fatalf("expected limit+1 = 3, got %d", limit)
			}
			return rows, nil
		},
	}
	svc, err := NewService(repo, &fakeEmitter{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.List(context.Background(), dealID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	if result.NextCursor == "" {
		t.Fatal("expected next cursor for overflowing page")
	}

	cursor, err := pagination.ParseCursor(result.NextCursor)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if cursor.ID != result.Events[1].ID {
		t.Fatal("cursor should point at the last returned event")
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, &fakeEmitter{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "not-base64!!"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyFlagsTamperedRows(t *testing.T) {
	dealID := uuid.New()
	clean := models.Event{
		ID:         uuid.New(),
		DealID:     dealID,
		Gate:       "G1",
		Actor:      "system:G1",
		Artifact:   enums.EventArtifactDeal,
		ArtifactID: uuid.New(),
		Action:     enums.EventActionApprove,
		OccurredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	checksum, err := Checksum(&clean)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	clean.Checksum = checksum

	tampered := clean
	tampered.ID = uuid.New()
	tampered.Checksum = "deadbeef"

	repo := &fakeRepository{
		listAllFn: func(context.Context, uuid.UUID) ([]models.Event, error) {
			return []models.Event{clean, tampered}, nil
		},
	}
	svc, err := NewService(repo, &fakeEmitter{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	reports, err := svc.Verify(context.Background(), dealID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 tamper report, got %d", len(reports))
	}
	if reports[0].EventID != tampered.ID {
		t.Fatal("report points at the wrong event")
	}
}
