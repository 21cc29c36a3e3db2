package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealguardhq/dealguard-backend/api/controllers"
	"github.com/dealguardhq/dealguard-backend/api/middleware"
	"github.com/dealguardhq/dealguard-backend/internal/bids"
	"github.com/dealguardhq/dealguard-backend/internal/changeorders"
	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/internal/gates/bidspread"
	"github.com/dealguardhq/dealguard-backend/internal/gates/changeorder"
	"github.com/dealguardhq/dealguard-backend/internal/gates/exposure"
	"github.com/dealguardhq/dealguard-backend/internal/gates/variance"
	"github.com/dealguardhq/dealguard-backend/internal/invoices"
	"github.com/dealguardhq/dealguard-backend/internal/ledger"
	"github.com/dealguardhq/dealguard-backend/internal/vendors"
	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/db"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/redis"
)

// Deps carries every service the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	Deals        deals.Service
	Vendors      vendors.Service
	Bids         bids.Service
	Ledger       ledger.Service
	Events       events.Service
	Invoices     invoices.Repository
	ChangeOrders changeorders.Repository

	ExposureGate    exposure.Service
	BidSpreadGate   bidspread.Service
	VarianceGate    variance.Service
	ChangeOrderGate changeorder.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor())
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", controllers.DealCreate(deps.Deals, logg))
			r.Get("/", controllers.DealList(deps.Deals, logg))

			r.Route("/{dealId}", func(r chi.Router) {
				r.Get("/", controllers.DealDetail(deps.Deals, logg))
				r.Post("/estimate", controllers.DealEstimate(deps.Deals, logg))
				r.Get("/ledger", controllers.DealLedger(deps.Ledger, logg))

				r.Post("/gates/exposure", controllers.ExposureEvaluate(deps.ExposureGate, logg))

				r.Route("/bids", func(r chi.Router) {
					r.Post("/", controllers.BidSubmit(deps.Bids, logg))
					r.Get("/", controllers.BidList(deps.Bids, logg))
				})

				r.Route("/invoices", func(r chi.Router) {
					r.Post("/", controllers.InvoiceIngest(deps.VarianceGate, logg))
					r.Get("/", controllers.InvoiceList(deps.Invoices, logg))
				})

				r.Route("/change-orders", func(r chi.Router) {
					r.Post("/", controllers.ChangeOrderPropose(deps.ChangeOrderGate, logg))
					r.Get("/", controllers.ChangeOrderList(deps.ChangeOrders, logg))
				})

				r.Route("/events", func(r chi.Router) {
					r.Get("/", controllers.EventList(deps.Events, logg))
					r.Get("/verify", controllers.EventVerify(deps.Events, logg))
				})
			})
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Post("/", controllers.VendorCreate(deps.Vendors, logg))
			r.Get("/", controllers.VendorList(deps.Vendors, logg))
			r.Get("/{vendorId}", controllers.VendorDetail(deps.Vendors, logg))
		})

		r.Route("/bids/{bidId}", func(r chi.Router) {
			r.Get("/", controllers.BidDetail(deps.Bids, logg))
			r.Post("/award", controllers.BidAward(deps.BidSpreadGate, logg))
		})
	})

	return r
}
