package exposure

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type fakeDealRepo struct {
	deal  *models.Deal
	saved *models.Deal
}

func (f *fakeDealRepo) WithTx(*gorm.DB) deals.Repository { return f }

func (f *fakeDealRepo) Create(context.Context, *models.Deal) error { return nil }

func (f *fakeDealRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	if f.deal == nil || f.deal.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	}
	return f.deal, nil
}

func (f *fakeDealRepo) List(context.Context, int, *pagination.Cursor) ([]models.Deal, error) {
	return nil, nil
}

func (f *fakeDealRepo) Save(_ context.Context, deal *models.Deal) error {
	f.saved = deal
	return nil
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
	runs    int
}

func (f *fakeEngine) Run(context.Context, []estimate.ScopeItem, estimate.RunOptions) (*types.EstimateSummary, error) {
	f.runs++
	return f.summary, nil
}

type fakeAppender struct {
	appended []events.AppendInput
	eventID  uuid.UUID
}

func (f *fakeAppender) Append(_ context.Context, _ *gorm.DB, input events.AppendInput) (*models.Event, error) {
	f.appended = append(f.appended, input)
	if f.eventID == uuid.Nil {
		f.eventID = uuid.New()
	}
	return &models.Event{ID: f.eventID}, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func usd(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testDeal() *models.Deal {
	return &models.Deal{
		ID:     uuid.New(),
		Region: "miami",
		Grade:  "standard",
		Status: enums.DealStatusUnderwriting,
		ScopeNodes: []models.ScopeNode{
			{Trade: "roofing", CostLowUsd: usd(8000), CostLikelyUsd: usd(10000), CostHighUsd: usd(15000)},
		},
	}
}

func newGate(t *testing.T, repo *fakeDealRepo, resolver *fakePolicyResolver, engine *fakeEngine, appender *fakeAppender) Service {
	t.Helper()
	svc, err := NewService(repo, resolver, engine, appender, fakeTxRunner{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestEvaluateApprovesUnderCap(t *testing.T) {
	deal := testDeal()
	repo := &fakeDealRepo{deal: deal}
	resolver := &fakePolicyResolver{policy: &models.Policy{MaxExposureUsd: usd(100000), MinRoiPct: 15, ContingencyPct: 10}}
	engine := &fakeEngine{summary: &types.EstimateSummary{P50Usd: 90000, P80Usd: 95000, P95Usd: 99000}}
	appender := &fakeAppender{}
	gate := newGate(t, repo, resolver, engine, appender)

	decision, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: deal.ID, Actor: "analyst@dealguard"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if decision.Status != "APPROVED" {
		t.Fatalf("expected APPROVED, got %s", decision.Status)
	}
	if decision.HeadroomUsd != 5000 {
		t.Fatalf("expected 5000 headroom, got %f", decision.HeadroomUsd)
	}
	if decision.EventID == uuid.Nil {
		t.Fatal("expected event id on the decision")
	}
	if repo.saved == nil || repo.saved.Status != enums.DealStatusApproved {
		t.Fatalf("expected deal marked approved, got %+v", repo.saved)
	}
	if len(appender.appended) != 1 || appender.appended[0].Action != enums.EventActionApprove {
		t.Fatalf("expected one APPROVE event, got %+v", appender.appended)
	}
}

func TestEvaluateBoundaryIsInclusive(t *testing.T) {
	deal := testDeal()
	repo := &fakeDealRepo{deal: deal}
	resolver := &fakePolicyResolver{policy: &models.Policy{MaxExposureUsd: usd(100000)}}
	engine := &fakeEngine{summary: &types.EstimateSummary{P80Usd: 100000}}
	gate := newGate(t, repo, resolver, engine, &fakeAppender{})

	decision, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: deal.ID})
	if err != nil {
		t.Fatalf("p80 equal to the cap must approve: %v", err)
	}
	if decision.Status != "APPROVED" || decision.HeadroomUsd != 0 {
		t.Fatalf("unexpected boundary decision: %+v", decision)
	}
}

func TestEvaluateDealCapTightensPolicy(t *testing.T) {
	deal := testDeal()
	deal.MaxExposureUsd = usd(90000)
	repo := &fakeDealRepo{deal: deal}
	resolver := &fakePolicyResolver{policy: &models.Policy{MaxExposureUsd: usd(100000)}}
	engine := &fakeEngine{summary: &types.EstimateSummary{P80Usd: 95000}}
	gate := newGate(t, repo, resolver, engine, &fakeAppender{})

	decision, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGuardrail {
		t.Fatalf("expected a block under the investor cap, got %v", err)
	}
	if decision.MaxExposureUsd != 90000 {
		t.Fatalf("expected the investor cap applied, got %f", decision.MaxExposureUsd)
	}
	if decision.OverByUsd != 5000 {
		t.Fatalf("expected 5000 over the investor cap, got %f", decision.OverByUsd)
	}
}

func TestEvaluateBlocksOverCap(t *testing.T) {
	deal := testDeal()
	repo := &fakeDealRepo{deal: deal}
	resolver := &fakePolicyResolver{policy: &models.Policy{MaxExposureUsd: usd(100000)}}
	drivers := []types.CostDriver{{Trade: "roofing", ContributionUsd: 4000, ContributionPct: 80}}
	engine := &fakeEngine{summary: &types.EstimateSummary{P80Usd: 120000, Drivers: drivers}}
	appender := &fakeAppender{}
	gate := newGate(t, repo, resolver, engine, appender)

	decision, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGuardrail {
		t.Fatalf("expected guardrail violation, got %v", err)
	}
	if decision == nil || decision.Status != "BLOCKED_G1" {
		t.Fatalf("expected blocked decision alongside the error, got %+v", decision)
	}
	if decision.OverByUsd != 20000 {
		t.Fatalf("expected 20000 over, got %f", decision.OverByUsd)
	}

	// The block is a recorded business outcome, not a failure.
	if repo.saved == nil || repo.saved.Status != enums.DealStatusBlocked {
		t.Fatalf("expected deal marked blocked, got %+v", repo.saved)
	}
	if len(appender.appended) != 1 || appender.appended[0].Action != enums.EventActionBlock {
		t.Fatalf("expected one BLOCK event, got %+v", appender.appended)
	}
	if typed.Details() == nil {
		t.Fatal("guardrail error must carry the decision details")
	}
}

func TestEvaluateFailsClosedWithoutPolicy(t *testing.T) {
	deal := testDeal()
	repo := &fakeDealRepo{deal: deal}
	resolver := &fakePolicyResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "no policy configured for region/grade")}
	engine := &fakeEngine{summary: &types.EstimateSummary{}}
	appender := &fakeAppender{}
	gate := newGate(t, repo, resolver, engine, appender)

	_, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if engine.runs != 0 {
		t.Fatal("estimation must not run without a resolved policy")
	}
	if len(appender.appended) != 0 {
		t.Fatal("no event may be written on a validation failure")
	}
}

func TestEvaluateUnknownDeal(t *testing.T) {
	gate := newGate(t, &fakeDealRepo{}, &fakePolicyResolver{policy: &models.Policy{}}, &fakeEngine{summary: &types.EstimateSummary{}}, &fakeAppender{})

	_, err := gate.Evaluate(context.Background(), EvaluateInput{DealID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
