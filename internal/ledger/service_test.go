package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type fakeRepository struct {
	createFn func(ctx context.Context, row *models.BudgetLedger) error
	findFn   func(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error)
	saveFn   func(ctx context.Context, row *models.BudgetLedger) error
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, row *models.BudgetLedger) error {
	if f.createFn != nil {
		return f.createFn(ctx, row)
	}
	return nil
}

func (f *fakeRepository) FindByDealID(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error) {
	if f.findFn != nil {
		return f.findFn(ctx, dealID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "budget ledger not found for deal")
}

func (f *fakeRepository) Save(ctx context.Context, row *models.BudgetLedger) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, row)
	}
	return nil
}

func tierPolicy() *models.Policy {
	return &models.Policy{Tier1VariancePct: 5, Tier2VariancePct: 10}
}

func TestInitSeedsDerivedTotals(t *testing.T) {
	var created *models.BudgetLedger
	repo := &fakeRepository{
		createFn: func(_ context.Context, row *models.BudgetLedger) error {
			created = row
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	baseline := types.TradeAmounts{"roofing": usd(10000), "plumbing": usd(6000)}
	row, err := svc.Init(context.Background(), &gorm.DB{}, uuid.New(), baseline, usd(1600))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if created == nil {
		t.Fatal("expected create call")
	}
	if !row.BaselineTotalUsd.Equal(usd(16000)) {
		t.Fatalf("baseline total = %s", row.BaselineTotalUsd)
	}
	if !row.CommittedTotalUsd.IsZero() || !row.ActualsTotalUsd.IsZero() {
		t.Fatalf("fresh ledger should have zero committed/actuals: %+v", row)
	}
	if !row.ContingencyRemainingUsd.Equal(usd(1600)) {
		t.Fatalf("contingency = %s", row.ContingencyRemainingUsd)
	}
}

func TestInitRequiresTransaction(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Init(context.Background(), nil, uuid.New(), types.TradeAmounts{}, usd(0))
	if pkgerrors.As(err) == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
}

func TestRecordInvoiceUpdatesVarianceAndTotals(t *testing.T) {
	dealID := uuid.New()
	stored := &models.BudgetLedger{
		DealID:   dealID,
		Baseline: types.TradeAmounts{"roofing": usd(10000)},
		Committed: types.TradeAmounts{},
		Actuals:   types.TradeAmounts{},
	}
	var saved *models.BudgetLedger
	repo := &fakeRepository{
		findFn: func(_ context.Context, id uuid.UUID) (*models.BudgetLedger, error) {
			if id != dealID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "budget ledger not found for deal")
			}
			return stored, nil
		},
		saveFn: func(_ context.Context, row *models.BudgetLedger) error {
			saved = row
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	row, err := svc.RecordInvoice(context.Background(), &gorm.DB{}, dealID, "roofing", usd(10800), tierPolicy())
	if err != nil {
		t.Fatalf("RecordInvoice: %v", err)
	}

	if saved == nil {
		t.Fatal("expected save call")
	}
	if !row.ActualsTotalUsd.Equal(usd(10800)) {
		t.Fatalf("actuals total = %s", row.ActualsTotalUsd)
	}
	entry := row.Variance["roofing"]
	if entry.VariancePct < 7.99 || entry.VariancePct > 8.01 {
		t.Fatalf("expected 8%% variance, got %f", entry.VariancePct)
	}
}

func TestRecordChangeOrderZeroDeltaSkipsWrite(t *testing.T) {
	dealID := uuid.New()
	stored := &models.BudgetLedger{DealID: dealID, Committed: types.TradeAmounts{}}
	saves := 0
	repo := &fakeRepository{
		findFn: func(context.Context, uuid.UUID) (*models.BudgetLedger, error) {
			return stored, nil
		},
		saveFn: func(context.Context, *models.BudgetLedger) error {
			saves++
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.RecordChangeOrder(context.Background(), &gorm.DB{}, dealID, "roofing", usd(0), tierPolicy()); err != nil {
		t.Fatalf("RecordChangeOrder: %v", err)
	}
	if _, err := svc.RecordChangeOrder(context.Background(), &gorm.DB{}, dealID, "roofing", usd(-2500), tierPolicy()); err != nil {
		t.Fatalf("RecordChangeOrder credit: %v", err)
	}
	if saves != 0 {
		t.Fatalf("zero and credit deltas must not write the ledger, saw %d saves", saves)
	}
}

func TestMutationRequiresPolicy(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.RecordAward(context.Background(), &gorm.DB{}, uuid.New(), "roofing", usd(100), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
