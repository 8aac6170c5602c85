package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var errNotFoundStatus = errors.New("backend: not found")

// listReply accepts both {"success":true,"trips":[...]} and a bare array.
type listReply struct {
	Success *bool               `json:"success"`
	Message string              `json:"message"`
	Trips   []domain.TripRecord `json:"trips"`
}

// ListTrips fetches every trip from the server (implements port.TripStore).
func (c *Client) ListTrips(ctx context.Context) ([]domain.TripRecord, error) {
	ctx, span := tracer.Start(ctx, "Backend.ListTrips")
	defer span.End()

	var trips []domain.TripRecord
	err := c.call(ctx, "list", true, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, "/api/trips/", nil, "")
		if err != nil {
			return err
		}
		trips, err = decodeList(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("trips.count", len(trips)))
	return trips, nil
}

func decodeList(body []byte) ([]domain.TripRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []domain.TripRecord{}, nil
	}
	if trimmed[0] == '[' {
		var trips []domain.TripRecord
		if err := json.Unmarshal(trimmed, &trips); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("decode trips: %w", err))
		}
		return trips, nil
	}

	var reply listReply
	if err := json.Unmarshal(trimmed, &reply); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode trips: %w", err))
	}
	if reply.Success != nil && !*reply.Success {
		return nil, resilience.Permanent(fmt.Errorf("backend refused list: %s", reply.Message))
	}
	if reply.Trips == nil {
		reply.Trips = []domain.TripRecord{}
	}
	return reply.Trips, nil
}

// CreateTrip posts a new trip. Creation is never retried.
func (c *Client) CreateTrip(ctx context.Context, trip domain.TripRecord) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "Backend.CreateTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", trip.ID))

	return c.write(ctx, "create", false, http.MethodPost, "/api/trips/", trip.ID, trip)
}

// UpdateTrip replaces a trip on the server.
func (c *Client) UpdateTrip(ctx context.Context, id string, trip domain.TripRecord) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "Backend.UpdateTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	return c.write(ctx, "update", true, http.MethodPut, tripPath(id), id, trip)
}

// DeleteTrip removes a trip and its misc costs on the server.
func (c *Client) DeleteTrip(ctx context.Context, id string) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "Backend.DeleteTrip")
	defer span.End()
	span.SetAttributes(attribute.String("trip.id", id))

	return c.write(ctx, "delete", true, http.MethodDelete, tripPath(id), id, nil)
}

func (c *Client) write(ctx context.Context, operation string, idempotent bool, method, path, id string, payload any) (domain.MutationResult, error) {
	var result domain.MutationResult
	err := c.call(ctx, operation, idempotent, func() error {
		body, err := c.mutate(ctx, method, path, payload)
		if errors.Is(err, errNotFoundStatus) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "trip", ID: id})
		}
		if err != nil {
			return err
		}
		result, err = decodeResult(body, id)
		return err
	})
	if err != nil {
		c.logger.Warn("backend: mutation failed",
			zap.String("operation", operation),
			zap.String("trip_id", id),
			zap.Error(err),
		)
		if result.Message == "" {
			result = domain.MutationResult{Success: false, Message: err.Error()}
		}
		return result, err
	}
	return result, nil
}

// decodeResult reads the {success,message,id} reply. An empty body counts as
// success; success:false is a persistence error.
func decodeResult(body []byte, id string) (domain.MutationResult, error) {
	result := domain.MutationResult{Success: true, ID: id}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}

	var reply struct {
		Success *bool         `json:"success"`
		Message string        `json:"message"`
		ID      domain.WireID `json:"id"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return domain.MutationResult{}, resilience.Permanent(fmt.Errorf("decode mutation reply: %w", err))
	}
	result.Message = reply.Message
	if reply.ID != "" {
		result.ID = string(reply.ID)
	}
	if reply.Success != nil && !*reply.Success {
		result.Success = false
		return result, resilience.Permanent(fmt.Errorf("backend rejected mutation: %s", reply.Message))
	}
	return result, nil
}

func tripPath(id string) string {
	return "/api/trips/" + url.PathEscape(id) + "/"
}
