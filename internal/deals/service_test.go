package deals

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type fakeRepository struct {
	createFn func(ctx context.Context, deal *models.Deal) error
	findFn   func(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	listFn   func(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Deal, error)
	saveFn   func(ctx context.Context, deal *models.Deal) error
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, deal *models.Deal) error {
	if f.createFn != nil {
		return f.createFn(ctx, deal)
	}
	deal.ID = uuid.New()
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
}

func (f *fakeRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Deal, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit, cursor)
	}
	return nil, nil
}

func (f *fakeRepository) Save(ctx context.Context, deal *models.Deal) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, deal)
	}
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakePolicyResolver struct {
	policy *models.Policy
	err    error
}

func (f *fakePolicyResolver) Resolve(context.Context, string, string) (*models.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.policy, nil
}

type fakeEngine struct {
	summary *types.EstimateSummary
	err     error
	gotOpts estimate.RunOptions
}

func (f *fakeEngine) Run(_ context.Context, _ []estimate.ScopeItem, opts estimate.RunOptions) (*types.EstimateSummary, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type fakeLedgerInit struct {
	gotBaseline    types.TradeAmounts
	gotContingency decimal.Decimal
	err            error
}

func (f *fakeLedgerInit) Init(_ context.Context, _ *gorm.DB, _ uuid.UUID, baseline types.TradeAmounts, contingencyUsd decimal.Decimal) (*models.BudgetLedger, error) {
	f.gotBaseline = baseline
	f.gotContingency = contingencyUsd
	if f.err != nil {
		return nil, f.err
	}
	return &models.BudgetLedger{}, nil
}

func usd(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func validCreateInput() CreateDealInput {
	return CreateDealInput{
		Address:          "712 NW 3rd Ave",
		Region:           "Miami",
		Grade:            "Standard",
		PurchasePriceUsd: usd(200000),
		ArvUsd:           usd(420000),
		MaxExposureUsd:   usd(120000),
		TargetRoiPct:     20,
		Scope: []ScopeItemInput{
			{Trade: "Roofing", CostLowUsd: usd(8000), CostLikelyUsd: usd(10000), CostHighUsd: usd(15000)},
			{Trade: "plumbing", CostLowUsd: usd(4000), CostLikelyUsd: usd(6000), CostHighUsd: usd(9000)},
		},
	}
}

func newTestService(t *testing.T, repo *fakeRepository, resolver *fakePolicyResolver, engine *fakeEngine, ledgers *fakeLedgerInit) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, resolver, engine, ledgers)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateSeedsLedgerFromLikelyCosts(t *testing.T) {
	resolver := &fakePolicyResolver{policy: &models.Policy{ID: uuid.New(), ContingencyPct: 10}}
	engine := &fakeEngine{summary: &types.EstimateSummary{P80Usd: 20000}}
	ledgers := &fakeLedgerInit{}
	svc := newTestService(t, &fakeRepository{}, resolver, engine, ledgers)

	deal, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if deal.Region != "miami" || deal.Grade != "standard" {
		t.Fatalf("expected normalized region/grade, got %q/%q", deal.Region, deal.Grade)
	}
	if deal.Status != enums.DealStatusUnderwriting {
		t.Fatalf("expected underwriting status, got %s", deal.Status)
	}
	if deal.Estimate == nil || deal.Estimate.P80Usd != 20000 {
		t.Fatalf("expected estimate attached, got %+v", deal.Estimate)
	}
	if !deal.MaxExposureUsd.Equal(usd(120000)) || deal.TargetRoiPct != 20 {
		t.Fatalf("expected investor limits persisted, got %s / %f", deal.MaxExposureUsd, deal.TargetRoiPct)
	}

	if !ledgers.gotBaseline.Get("roofing").Equal(usd(10000)) {
		t.Fatalf("baseline roofing = %s", ledgers.gotBaseline.Get("roofing"))
	}
	if !ledgers.gotBaseline.Get("plumbing").Equal(usd(6000)) {
		t.Fatalf("baseline plumbing = %s", ledgers.gotBaseline.Get("plumbing"))
	}
	// 10% of the 16000 baseline.
	if !ledgers.gotContingency.Equal(usd(1600)) {
		t.Fatalf("contingency = %s", ledgers.gotContingency)
	}
}

func TestCreateFailsClosedWithoutPolicy(t *testing.T) {
	resolver := &fakePolicyResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "no policy configured for region/grade")}
	svc := newTestService(t, &fakeRepository{}, resolver, &fakeEngine{}, &fakeLedgerInit{})

	_, err := svc.Create(context.Background(), validCreateInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakePolicyResolver{policy: &models.Policy{}}, &fakeEngine{}, &fakeLedgerInit{})

	cases := map[string]func(*CreateDealInput){
		"missing address":      func(in *CreateDealInput) { in.Address = " " },
		"missing region":       func(in *CreateDealInput) { in.Region = "" },
		"zero purchase":        func(in *CreateDealInput) { in.PurchasePriceUsd = usd(0) },
		"zero exposure cap":    func(in *CreateDealInput) { in.MaxExposureUsd = usd(0) },
		"zero roi target":      func(in *CreateDealInput) { in.TargetRoiPct = 0 },
		"empty scope":          func(in *CreateDealInput) { in.Scope = nil },
		"unordered cost range": func(in *CreateDealInput) { in.Scope[0].CostLikelyUsd = usd(100) },
		"unknown distribution": func(in *CreateDealInput) { in.Scope[0].Distribution = "weibull" },
	}
	for name, mutate := range cases {
		input := validCreateInput()
		mutate(&input)
		_, err := svc.Create(context.Background(), input)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestEstimatePersistsFreshSummary(t *testing.T) {
	dealID := uuid.New()
	stored := &models.Deal{
		ID: dealID,
		ScopeNodes: []models.ScopeNode{
			{Trade: "roofing", CostLowUsd: usd(8000), CostLikelyUsd: usd(10000), CostHighUsd: usd(15000)},
		},
	}
	var saved *models.Deal
	repo := &fakeRepository{
		findFn: func(_ context.Context, id uuid.UUID) (*models.Deal, error) {
			if id != dealID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
			}
			return stored, nil
		},
		saveFn: func(_ context.Context, deal *models.Deal) error {
			saved = deal
			return nil
		},
	}
	engine := &fakeEngine{summary: &types.EstimateSummary{Runs: 5000, Seed: 99, P80Usd: 14000}}
	svc := newTestService(t, repo, &fakePolicyResolver{policy: &models.Policy{}}, engine, &fakeLedgerInit{})

	summary, err := svc.Estimate(context.Background(), EstimateInput{DealID: dealID, Runs: 5000, Seed: 99})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if engine.gotOpts.Runs != 5000 || engine.gotOpts.Seed != 99 {
		t.Fatalf("engine options not forwarded: %+v", engine.gotOpts)
	}
	if saved == nil || saved.Estimate != summary {
		t.Fatal("expected the fresh summary persisted on the deal")
	}
}

func TestListPaginates(t *testing.T) {
	rows := make([]models.Deal, 3)
	for i := range rows {
		rows[i] = models.Deal{ID: uuid.New()}
	}
	repo := &fakeRepository{
		listFn: func(_ context.Context, limit int, _ *pagination.Cursor) ([]models.Deal, error) {
			if limit != 3 {
				t.Fatalf("expected limit+1 = 3, got %d", limit)
			}
			return rows, nil
		},
	}
	svc := newTestService(t, repo, &fakePolicyResolver{policy: &models.Policy{}}, &fakeEngine{}, &fakeLedgerInit{})

	result, err := svc.List(context.Background(), pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Deals) != 2 || result.NextCursor == "" {
		t.Fatalf("expected truncated page with cursor, got %d events cursor=%q", len(result.Deals), result.NextCursor)
	}
}
