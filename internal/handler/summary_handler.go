package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/report"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Summaries
// ============================================================

// summaryQuery reads ?window= or ?start=&end=. Neither means all time.
func summaryQuery(r *http.Request) (ledger.Window, *ledger.Range, error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		w, err := ledger.ParseWindow(raw)
		return w, nil, err
	}
	rng, err := parseRange(r)
	return "", rng, err
}

func summaryHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary")
		defer span.End()

		window, rng, err := summaryQuery(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var sum ledger.Summary
		if window != "" {
			sum, err = svc.WindowSummary(ctx, window)
		} else {
			sum, err = svc.Summary(ctx, rng)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("trips.count", sum.TripCount))
		writeJSON(w, http.StatusOK, sum)
	}
}

func dashboardHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		d, err := svc.Dashboard(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func summaryReportHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/summary.pdf")
		defer span.End()

		window, rng, err := summaryQuery(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		rep, err := svc.Report(ctx, window, rng)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("book.version", int64(rep.Version)))

		title := "Trip ledger"
		if rep.Range != nil {
			title = fmt.Sprintf("Trip ledger %s to %s", rep.Range.Start, rep.Range.End)
		}
		pdf, err := report.RenderSummary(title, rep.Summary, rep.Trips, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="ledger-summary.pdf"`)
		w.WriteHeader(http.StatusOK)
		w.Write(pdf)
	}
}
