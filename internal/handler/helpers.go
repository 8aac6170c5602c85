package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// parseRange reads ?start=&end=. Both absent means no range; one without the
// other is a missing field.
func parseRange(r *http.Request) (*ledger.Range, error) {
	q := r.URL.Query()
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" {
		return nil, &domain.ErrMissingField{Field: "start"}
	}
	if end == "" {
		return nil, &domain.ErrMissingField{Field: "end"}
	}

	s, err := domain.ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := domain.ParseDate(end)
	if err != nil {
		return nil, err
	}
	rng, err := ledger.NewRange(s, e)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService
	var validation *domain.ErrValidation
	var missing *domain.ErrMissingField
	var invalidDate *domain.ErrInvalidDate
	var invalidAmount *domain.ErrInvalidAmount
	var invalidRange *domain.ErrInvalidRange
	var conflict *domain.ErrConflict

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &invalidAmount):
		logger.Debug("invalid amount", zap.String("value", invalidAmount.Value))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &missing), errors.As(err, &invalidDate), errors.As(err, &invalidRange), errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("persistence error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
