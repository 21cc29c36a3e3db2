package bidspread

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/bids"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/locks"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type fakeBidRepo struct {
	bids        map[uuid.UUID]*models.Bid
	siblings    []models.Bid
	awardedID   uuid.UUID
	rejectedIDs []uuid.UUID
}

func (f *fakeBidRepo) WithTx(*gorm.DB) bids.Repository { return f }

func (f *fakeBidRepo) Create(context.Context, *models.Bid) error { return nil }

func (f *fakeBidRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	if bid, ok := f.bids[id]; ok {
		return bid, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
}

func (f *fakeBidRepo) ListByDealTrade(context.Context, uuid.UUID, string) ([]models.Bid, error) {
	return f.siblings, nil
}

func (f *fakeBidRepo) ListByDealID(context.Context, uuid.UUID) ([]models.Bid, error) {
	return f.siblings, nil
}

func (f *fakeBidRepo) UpdateStatuses(_ context.Context, awardedID uuid.UUID, rejectedIDs []uuid.UUID) error {
	f.awardedID = awardedID
	f.rejectedIDs = rejectedIDs
	return nil
}

type fakeDealFinder struct {
	deal *models.Deal
}

func (f *fakeDealFinder) FindByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	if f.deal == nil || f.deal.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	}
	return f.deal, nil
}

type fakePolicyResolver struct {
	policy *models.Policy
}

func (f *fakePolicyResolver) Resolve(context.Context, string, string) (*models.Policy, error) {
	return f.policy, nil
}

type fakeLedger struct {
	recorded  bool
	gotTrade  string
	gotAmount decimal.Decimal
}

func (f *fakeLedger) RecordAward(_ context.Context, _ *gorm.DB, _ uuid.UUID, trade string, subtotal decimal.Decimal, _ *models.Policy) (*models.BudgetLedger, error) {
	f.recorded = true
	f.gotTrade = trade
	f.gotAmount = subtotal
	return &models.BudgetLedger{
		Committed:         types.TradeAmounts{trade: subtotal},
		CommittedTotalUsd: subtotal,
	}, nil
}

type fakeAppender struct {
	appended []events.AppendInput
}

func (f *fakeAppender) Append(_ context.Context, _ *gorm.DB, input events.AppendInput) (*models.Event, error) {
	f.appended = append(f.appended, input)
	return &models.Event{ID: uuid.New()}, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func usd(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func sfBid(dealID uuid.UUID, sqft, pricePerSqft float64) *models.Bid {
	return &models.Bid{
		ID:       uuid.New(),
		DealID:   dealID,
		VendorID: uuid.New(),
		Trade:    "roofing",
		Status:   enums.BidStatusPending,
		LineItems: types.BidLineItems{{
			Description:  "shingle install",
			Quantity:     types.Quantity{Value: sqft, Unit: "sf"},
			UnitPriceUsd: usd(pricePerSqft),
			TotalUsd:     usd(sqft * pricePerSqft),
		}},
		SubtotalUsd: usd(sqft * pricePerSqft),
	}
}

type gateFixture struct {
	repo     *fakeBidRepo
	ledger   *fakeLedger
	appender *fakeAppender
	gate     Service
}

func newFixture(t *testing.T, deal *models.Deal, maxSpreadPct float64, siblings ...*models.Bid) *gateFixture {
	t.Helper()
	repo := &fakeBidRepo{bids: map[uuid.UUID]*models.Bid{}}
	for _, bid := range siblings {
		repo.bids[bid.ID] = bid
		repo.siblings = append(repo.siblings, *bid)
	}
	ledger := &fakeLedger{}
	appender := &fakeAppender{}
	gate, err := NewService(
		repo,
		&fakeDealFinder{deal: deal},
		&fakePolicyResolver{policy: &models.Policy{MaxBidSpreadPct: maxSpreadPct}},
		ledger,
		appender,
		fakeTxRunner{},
		locks.NewMemoryLocker(time.Second),
		nil,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &gateFixture{repo: repo, ledger: ledger, appender: appender, gate: gate}
}

func testDeal() *models.Deal {
	return &models.Deal{ID: uuid.New(), Region: "miami", Grade: "standard"}
}

func TestAwardWithinSpread(t *testing.T) {
	deal := testDeal()
	low := sfBid(deal.ID, 3000, 3.00)    // 9000
	mid := sfBid(deal.ID, 3000, 3.15)    // 9450
	high := sfBid(deal.ID, 3000, 3.30)   // 9900
	fx := newFixture(t, deal, 15, low, mid, high)

	decision, err := fx.gate.Award(context.Background(), AwardInput{BidID: low.ID, DealID: deal.ID, Actor: "pm@dealguard"})
	if err != nil {
		t.Fatalf("Award: %v", err)
	}

	if decision.Status != "AWARDED" {
		t.Fatalf("expected AWARDED, got %s", decision.Status)
	}
	if math.Abs(decision.SpreadPct-10) > 0.01 {
		t.Fatalf("expected 10%% spread, got %f", decision.SpreadPct)
	}
	if fx.repo.awardedID != low.ID || len(fx.repo.rejectedIDs) != 2 {
		t.Fatalf("expected siblings rejected, got %+v", fx.repo)
	}
	if !fx.ledger.recorded || !fx.ledger.gotAmount.Equal(usd(9000)) {
		t.Fatalf("expected committed 9000, got %+v", fx.ledger)
	}
	if len(fx.appender.appended) != 1 || fx.appender.appended[0].Action != enums.EventActionAward {
		t.Fatalf("expected one AWARD event, got %+v", fx.appender.appended)
	}
}

func TestBlockWideSpread(t *testing.T) {
	deal := testDeal()
	low := sfBid(deal.ID, 3000, 8.00)   // 24000
	mid := sfBid(deal.ID, 3000, 9.3333) // ~28000
	high := sfBid(deal.ID, 3000, 11.3333) // ~34000
	fx := newFixture(t, deal, 15, low, mid, high)

	decision, err := fx.gate.Award(context.Background(), AwardInput{BidID: low.ID, DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGuardrail {
		t.Fatalf("expected guardrail violation, got %v", err)
	}
	if decision == nil || decision.Status != "BLOCKED_G2" {
		t.Fatalf("expected blocked decision, got %+v", decision)
	}
	if math.Abs(decision.SpreadPct-41.67) > 0.1 {
		t.Fatalf("expected ~41.7%% spread, got %f", decision.SpreadPct)
	}

	// No ledger mutation and no status change on block.
	if fx.ledger.recorded {
		t.Fatal("ledger must not change on a blocked award")
	}
	if fx.repo.awardedID != uuid.Nil {
		t.Fatal("bid statuses must not change on a blocked award")
	}
	if len(fx.appender.appended) != 1 || fx.appender.appended[0].Action != enums.EventActionBlock {
		t.Fatalf("expected one BLOCK event, got %+v", fx.appender.appended)
	}
}

func TestSpreadUnitAndOrderIndependent(t *testing.T) {
	deal := testDeal()
	// 30 squares at $300/square is the same roof as 3000 sqft at $3/sqft.
	squares := &models.Bid{
		ID:       uuid.New(),
		DealID:   deal.ID,
		VendorID: uuid.New(),
		Trade:    "roofing",
		Status:   enums.BidStatusPending,
		LineItems: types.BidLineItems{{
			Description:  "shingle install",
			Quantity:     types.Quantity{Value: 30, Unit: "square"},
			UnitPriceUsd: usd(300),
			TotalUsd:     usd(9000),
		}},
		SubtotalUsd: usd(9000),
	}
	sqftA := sfBid(deal.ID, 3000, 3.15)
	sqftB := sfBid(deal.ID, 3000, 3.30)

	fx := newFixture(t, deal, 15, squares, sqftA, sqftB)
	forward, err := fx.gate.Award(context.Background(), AwardInput{BidID: squares.ID, DealID: deal.ID})
	if err != nil {
		t.Fatalf("Award: %v", err)
	}

	fx = newFixture(t, deal, 15, sqftB, sqftA, squares)
	reversed, err := fx.gate.Award(context.Background(), AwardInput{BidID: squares.ID, DealID: deal.ID})
	if err != nil {
		t.Fatalf("Award reversed: %v", err)
	}

	if math.Abs(forward.SpreadPct-reversed.SpreadPct) > 1e-9 {
		t.Fatalf("spread depends on sibling order: %f vs %f", forward.SpreadPct, reversed.SpreadPct)
	}
	if math.Abs(forward.SpreadPct-10) > 0.01 {
		t.Fatalf("expected 10%% spread across mixed units, got %f", forward.SpreadPct)
	}
}

func TestUnrecognizedUnitIsValidationError(t *testing.T) {
	deal := testDeal()
	bad := sfBid(deal.ID, 3000, 3.00)
	bad.LineItems[0].Quantity.Unit = "furlong"
	fx := newFixture(t, deal, 15, bad)

	_, err := fx.gate.Award(context.Background(), AwardInput{BidID: bad.ID, DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fx.appender.appended) != 0 {
		t.Fatal("no event may be written for malformed input")
	}
}

func TestAwardWrongDealIsNotFound(t *testing.T) {
	deal := testDeal()
	bid := sfBid(deal.ID, 3000, 3.00)
	fx := newFixture(t, deal, 15, bid)

	_, err := fx.gate.Award(context.Background(), AwardInput{BidID: bid.ID, DealID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for cross-deal access, got %v", err)
	}
}

func TestAwardAfterPriorAwardConflicts(t *testing.T) {
	deal := testDeal()
	winner := sfBid(deal.ID, 3000, 3.00) // 9000, already holds the trade
	winner.Status = enums.BidStatusAwarded
	late := sfBid(deal.ID, 3000, 3.10) // 9300, submitted after the award
	fx := newFixture(t, deal, 15, winner, late)

	_, err := fx.gate.Award(context.Background(), AwardInput{BidID: late.ID, DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for a second award, got %v", err)
	}

	if fx.repo.awardedID != uuid.Nil {
		t.Fatal("no bid status may change once the trade is awarded")
	}
	if fx.ledger.recorded {
		t.Fatal("committed must not be counted twice for one trade")
	}
	if len(fx.appender.appended) != 0 {
		t.Fatalf("no event may be written on a refused award, got %+v", fx.appender.appended)
	}
}

func TestAwardDecidedBidConflicts(t *testing.T) {
	deal := testDeal()
	bid := sfBid(deal.ID, 3000, 3.00)
	bid.Status = enums.BidStatusRejected
	fx := newFixture(t, deal, 15, bid)

	_, err := fx.gate.Award(context.Background(), AwardInput{BidID: bid.ID, DealID: deal.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkOutliers(t *testing.T) {
	bidsList := []NormalizedBid{
		{TotalUsd: 9000},
		{TotalUsd: 9200},
		{TotalUsd: 9400},
		{TotalUsd: 9900},
	}
	totals := []float64{9000, 9200, 9400, 9900}
	markOutliers(bidsList, totals)
	for _, bid := range bidsList {
		if bid.Outlier {
			t.Fatalf("tight cluster should have no outliers: %+v", bidsList)
		}
	}

	bidsList = []NormalizedBid{
		{TotalUsd: 9000},
		{TotalUsd: 9100},
		{TotalUsd: 19000},
	}
	totals = []float64{9000, 9100, 19000}
	markOutliers(bidsList, totals)
	if bidsList[0].Outlier || bidsList[1].Outlier {
		t.Fatalf("cluster flagged as outlier: %+v", bidsList)
	}
}
