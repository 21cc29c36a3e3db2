package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/bids"
	"github.com/dealguardhq/dealguard-backend/internal/changeorders"
	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/internal/gates/bidspread"
	"github.com/dealguardhq/dealguard-backend/internal/gates/changeorder"
	"github.com/dealguardhq/dealguard-backend/internal/gates/exposure"
	"github.com/dealguardhq/dealguard-backend/internal/gates/variance"
	"github.com/dealguardhq/dealguard-backend/internal/invoices"
	"github.com/dealguardhq/dealguard-backend/internal/vendors"
	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubDealsService struct {
	deal *models.Deal
}

func (s stubDealsService) Create(context.Context, deals.CreateDealInput) (*models.Deal, error) {
	return s.deal, nil
}

func (s stubDealsService) Get(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	if s.deal == nil || s.deal.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	}
	return s.deal, nil
}

func (s stubDealsService) List(context.Context, pagination.Params) (*deals.ListResult, error) {
	return &deals.ListResult{}, nil
}

func (s stubDealsService) Estimate(context.Context, deals.EstimateInput) (*types.EstimateSummary, error) {
	return &types.EstimateSummary{}, nil
}

type stubVendorsService struct{}

func (stubVendorsService) Create(context.Context, vendors.CreateVendorInput) (*models.Vendor, error) {
	return &models.Vendor{ID: uuid.New()}, nil
}

func (stubVendorsService) Get(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	return &models.Vendor{ID: id}, nil
}

func (stubVendorsService) List(context.Context) ([]models.Vendor, error) {
	return []models.Vendor{}, nil
}

type stubBidsService struct{}

func (stubBidsService) Submit(context.Context, bids.SubmitBidInput) (*models.Bid, error) {
	return &models.Bid{ID: uuid.New()}, nil
}

func (stubBidsService) Get(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	return &models.Bid{ID: id}, nil
}

func (stubBidsService) ListByDeal(context.Context, uuid.UUID) ([]models.Bid, error) {
	return []models.Bid{}, nil
}

type stubEventsService struct{}

func (stubEventsService) Append(context.Context, *gorm.DB, events.AppendInput) (*models.Event, error) {
	return &models.Event{}, nil
}

func (stubEventsService) List(context.Context, uuid.UUID, pagination.Params) (*events.ListResult, error) {
	return &events.ListResult{}, nil
}

func (stubEventsService) Verify(context.Context, uuid.UUID) ([]events.TamperReport, error) {
	return nil, nil
}

type stubExposureGate struct {
	err error
}

func (s stubExposureGate) Evaluate(context.Context, exposure.EvaluateInput) (*exposure.Decision, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &exposure.Decision{Status: "APPROVED"}, nil
}

type stubBidSpreadGate struct{}

func (stubBidSpreadGate) Award(context.Context, bidspread.AwardInput) (*bidspread.Decision, error) {
	return &bidspread.Decision{Status: "AWARDED"}, nil
}

type stubVarianceGate struct{}

func (stubVarianceGate) Ingest(context.Context, variance.IngestInput) (*variance.Decision, error) {
	return &variance.Decision{Status: enums.InvoiceStatusApproved, Tier: enums.VarianceTierGreen}, nil
}

type stubChangeOrderGate struct{}

func (stubChangeOrderGate) Propose(context.Context, changeorder.ProposeInput) (*changeorder.Decision, error) {
	return &changeorder.Decision{Status: enums.ChangeOrderStatusApproved}, nil
}

type stubInvoicesRepo struct{}

func (s stubInvoicesRepo) WithTx(*gorm.DB) invoices.Repository { return s }
func (stubInvoicesRepo) Create(context.Context, *models.Invoice) error { return nil }
func (stubInvoicesRepo) FindByID(context.Context, uuid.UUID) (*models.Invoice, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
}
func (stubInvoicesRepo) ListByDealID(context.Context, uuid.UUID) ([]models.Invoice, error) {
	return []models.Invoice{}, nil
}
func (stubInvoicesRepo) Decide(context.Context, uuid.UUID, enums.InvoiceStatus, time.Time) error {
	return nil
}

type stubChangeOrdersRepo struct{}

func (s stubChangeOrdersRepo) WithTx(*gorm.DB) changeorders.Repository { return s }
func (stubChangeOrdersRepo) Create(context.Context, *models.ChangeOrder) error {
	return nil
}
func (stubChangeOrdersRepo) FindByID(context.Context, uuid.UUID) (*models.ChangeOrder, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "change order not found")
}
func (stubChangeOrdersRepo) ListByDealID(context.Context, uuid.UUID) ([]models.ChangeOrder, error) {
	return []models.ChangeOrder{}, nil
}
func (stubChangeOrdersRepo) Save(context.Context, *models.ChangeOrder) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(dealsSvc deals.Service, exposureGate exposure.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:          testConfig(),
		Logger:          logg,
		DB:              stubPinger{},
		Deals:           dealsSvc,
		Vendors:         stubVendorsService{},
		Bids:            stubBidsService{},
		Ledger:          nil,
		Events:          stubEventsService{},
		Invoices:        stubInvoicesRepo{},
		ChangeOrders:    stubChangeOrdersRepo{},
		ExposureGate:    exposureGate,
		BidSpreadGate:   stubBidSpreadGate{},
		VarianceGate:    stubVarianceGate{},
		ChangeOrderGate: stubChangeOrderGate{},
	})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(stubDealsService{}, stubExposureGate{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-DealGuard-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestDealDetailRoute(t *testing.T) {
	deal := &models.Deal{ID: uuid.New()}
	router := newTestRouter(stubDealsService{deal: deal}, stubExposureGate{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals/"+deal.ID.String(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/deals/"+uuid.NewString(), nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, missing)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestDealCreateRejectsBadJSON(t *testing.T) {
	router := newTestRouter(stubDealsService{}, stubExposureGate{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestExposureGateBlockedMapsToConflict(t *testing.T) {
	blocked := pkgerrors.New(pkgerrors.CodeGuardrail, "projected exposure exceeds the policy cap").
		WithDetails(map[string]any{"status": "BLOCKED_G1"})
	router := newTestRouter(stubDealsService{}, stubExposureGate{err: blocked})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/gates/exposure", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeGuardrail) {
		t.Fatalf("expected guardrail code, got %q", envelope.Error.Code)
	}
	if envelope.Error.Details["status"] != "BLOCKED_G1" {
		t.Fatalf("expected decision details, got %+v", envelope.Error.Details)
	}
}

func TestBidAwardRoute(t *testing.T) {
	router := newTestRouter(stubDealsService{}, stubExposureGate{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bids/"+uuid.NewString()+"/award", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestVendorListRoute(t *testing.T) {
	router := newTestRouter(stubDealsService{}, stubExposureGate{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
