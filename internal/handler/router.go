package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/notify"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const maxBodyBytes = 1 << 20

// NewRouter creates the HTTP router with all routes and middleware.
// hub may be nil, in which case the websocket endpoint is not mounted.
func NewRouter(svc *service.TripService, hub *notify.Hub, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, hub))
	r.Get("/readyz", readyzHandler(svc))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(LimitBody(maxBodyBytes))

			// Trips
			r.Get("/trips", listTripsHandler(svc, logger))
			r.Post("/trips", createTripHandler(svc, logger))
			r.Post("/trips/sync", syncTripsHandler(svc, logger))
			r.Get("/trips/{tripId}", getTripHandler(svc, logger))
			r.Put("/trips/{tripId}", updateTripHandler(svc, logger))
			r.Delete("/trips/{tripId}", deleteTripHandler(svc, logger))
			r.Get("/trips/{tripId}/financials", tripFinancialsHandler(svc, logger))

			// Misc costs
			r.Post("/trips/{tripId}/costs", addCostHandler(svc, logger))
			r.Put("/trips/{tripId}/costs/{costId}", editCostHandler(svc, logger))
			r.Delete("/trips/{tripId}/costs/{costId}", removeCostHandler(svc, logger))
			r.Post("/costs/installments/preview", installmentPreviewHandler(svc, logger))

			// Summaries
			r.Get("/summary", summaryHandler(svc, logger))
			r.Get("/dashboard", dashboardHandler(svc, logger))
			r.Get("/reports/summary.pdf", summaryReportHandler(svc, logger))
			r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))
		})

		if hub != nil {
			r.Get("/notifications/ws", hub.ServeWS)
		}
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(svc *service.TripService, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		bookStatus := "healthy"
		if svc.Book().Version == 0 {
			bookStatus = "degraded"
		}
		services = append(services, domain.ServiceHealth{Name: "ledger-book", Status: bookStatus, LastChecked: now})

		if hub != nil {
			services = append(services, domain.ServiceHealth{Name: "notifications", Status: "healthy", LastChecked: now})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler reports ready once the first sync has loaded the Book.
func readyzHandler(svc *service.TripService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Book().Version == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
