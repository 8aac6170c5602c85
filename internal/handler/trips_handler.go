package handler

import (
	"net/http"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Trips
// ============================================================

func listTripsHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/trips")
		defer span.End()

		rng, err := parseRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		trips, err := svc.ListTrips(ctx, rng)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[ledger.TripView]{Data: trips, Total: len(trips)})
	}
}

func createTripHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/trips")
		defer span.End()

		var in domain.TripInput
		if err := decodeBody(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		trip, err := svc.CreateTrip(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("trip.id", trip.ID))
		writeJSON(w, http.StatusCreated, trip)
	}
}

func syncTripsHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/trips/sync")
		defer span.End()

		book, err := svc.Sync(ctx, service.ResyncManual)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version": book.Version,
			"trips":   len(book.Trips),
		})
	}
}

func getTripHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/trips/{tripId}")
		defer span.End()

		tripID := chi.URLParam(r, "tripId")
		span.SetAttributes(attribute.String("trip.id", tripID))

		trip, err := svc.GetTrip(ctx, tripID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, trip)
	}
}

func updateTripHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/trips/{tripId}")
		defer span.End()

		tripID := chi.URLParam(r, "tripId")
		span.SetAttributes(attribute.String("trip.id", tripID))

		var in domain.TripInput
		if err := decodeBody(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		trip, err := svc.UpdateTrip(ctx, tripID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, trip)
	}
}

func deleteTripHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/trips/{tripId}")
		defer span.End()

		tripID := chi.URLParam(r, "tripId")
		span.SetAttributes(attribute.String("trip.id", tripID))

		if err := svc.DeleteTrip(ctx, tripID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "trip deleted", ID: tripID})
	}
}

func tripFinancialsHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/trips/{tripId}/financials")
		defer span.End()

		f, err := svc.Financials(ctx, chi.URLParam(r, "tripId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

// ============================================================
// Misc costs
// ============================================================

func addCostHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/trips/{tripId}/costs")
		defer span.End()

		tripID := chi.URLParam(r, "tripId")
		span.SetAttributes(attribute.String("trip.id", tripID))

		var in domain.MiscCostInput
		if err := decodeBody(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		trip, err := svc.AddMiscCost(ctx, tripID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, trip)
	}
}

func editCostHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/trips/{tripId}/costs/{costId}")
		defer span.End()

		tripID, costID := chi.URLParam(r, "tripId"), chi.URLParam(r, "costId")
		span.SetAttributes(attribute.String("trip.id", tripID), attribute.String("cost.id", costID))

		var in domain.MiscCostInput
		if err := decodeBody(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		trip, err := svc.EditMiscCost(ctx, tripID, costID, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, trip)
	}
}

func removeCostHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/trips/{tripId}/costs/{costId}")
		defer span.End()

		tripID, costID := chi.URLParam(r, "tripId"), chi.URLParam(r, "costId")
		span.SetAttributes(attribute.String("trip.id", tripID), attribute.String("cost.id", costID))

		trip, err := svc.RemoveMiscCost(ctx, tripID, costID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, trip)
	}
}

func installmentPreviewHandler(svc *service.TripService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/costs/installments/preview")
		defer span.End()

		var in domain.InstallmentInput
		if err := decodeBody(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		preview, err := svc.InstallmentPreview(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}
