package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/backend"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/cache"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServer mimics the dashboard server's trip API.
type fakeServer struct {
	mu          sync.Mutex
	tokens      int
	forbidFirst bool
	tripStatus  int
	tripReply   string
	listReply   string
	posts       atomic.Int32
	seenHeaders []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokens++
		n := f.tokens
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok-" + string(rune('0'+n))})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/trips/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.seenHeaders = append(f.seenHeaders, r.Header.Get("X-CSRFToken"))
		forbid := f.forbidFirst
		f.forbidFirst = false
		status, reply, listReply := f.tripStatus, f.tripReply, f.listReply
		f.mu.Unlock()

		if r.Method == http.MethodGet && listReply != "" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(listReply))
			return
		}
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"trips": []domain.TripRecord{{
					ID: "t1", Date: domain.MustParseDate("2024-03-01"), Revenue: domain.Cents(150000),
					MiscCosts: []domain.MiscCostItem{},
				}},
			})
			return
		}
		if r.Method == http.MethodPost {
			f.posts.Add(1)
		}
		if forbid {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		if reply == "" {
			reply = `{"success":true,"message":"ok"}`
		}
		w.WriteHeader(status)
		w.Write([]byte(reply))
	})
	return mux
}

func newClient(t *testing.T, url string, retries int) *backend.Client {
	t.Helper()
	tokens := cache.New[string](time.Minute)
	t.Cleanup(tokens.Close)
	cfg := resilience.Config{MaxRetries: retries, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return backend.NewClient(http.DefaultClient, url, resilience.NewCircuitBreaker("backend-test", zap.NewNop()),
		cfg, tokens, observability.NewMetrics(), zap.NewNop())
}

func TestClient_ListWithoutToken(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	trips, err := newClient(t, srv.URL, 0).ListTrips(context.Background())
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "t1", trips[0].ID)
	assert.Equal(t, domain.Cents(150000), trips[0].Revenue)
	assert.Equal(t, []string{""}, fake.seenHeaders)
	assert.Equal(t, 0, fake.tokens)
}

func TestClient_MutationsCarryCachedToken(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	res, err := c.CreateTrip(ctx, domain.TripRecord{ID: "t2", Date: domain.MustParseDate("2024-03-02")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "t2", res.ID)

	_, err = c.DeleteTrip(ctx, "t2")
	require.NoError(t, err)

	assert.Equal(t, []string{"tok-1", "tok-1"}, fake.seenHeaders)
	assert.Equal(t, 1, fake.tokens, "token fetched once and cached")
}

func TestClient_NumericIDs(t *testing.T) {
	fake := &fakeServer{
		tripReply: `{"success":true,"message":"created","id":42}`,
		listReply: `[{"id":7,"date":"2024-03-01","revenue":"1500.00","miscCosts":[{"id":3,"category":"toll","amount":12}]}]`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c := newClient(t, srv.URL, 0)
	ctx := context.Background()

	res, err := c.CreateTrip(ctx, domain.TripRecord{ID: "local", Date: domain.MustParseDate("2024-03-02")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.ID)
	assert.Equal(t, int32(1), fake.posts.Load())

	trips, err := c.ListTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "7", trips[0].ID)
	require.Len(t, trips[0].MiscCosts, 1)
	assert.Equal(t, "3", trips[0].MiscCosts[0].ID)
}

func TestClient_RefreshesTokenOn403(t *testing.T) {
	fake := &fakeServer{forbidFirst: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newClient(t, srv.URL, 0).UpdateTrip(context.Background(), "t1", domain.TripRecord{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1", "tok-2"}, fake.seenHeaders)
}

func TestClient_SuccessFalseIsError(t *testing.T) {
	fake := &fakeServer{tripReply: `{"success":false,"message":"invalid date"}`}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	res, err := newClient(t, srv.URL, 2).UpdateTrip(context.Background(), "t1", domain.TripRecord{ID: "t1"})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid date", res.Message)

	var ext *domain.ErrExternalService
	assert.True(t, errors.As(err, &ext))
	assert.Len(t, fake.seenHeaders, 1, "rejections are not retried")
}

func TestClient_NotFound(t *testing.T) {
	fake := &fakeServer{tripStatus: http.StatusNotFound, tripReply: "{}"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newClient(t, srv.URL, 2).DeleteTrip(context.Background(), "gone")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "gone", nf.ID)
}

func TestClient_PostIsNotRetried(t *testing.T) {
	fake := &fakeServer{tripStatus: http.StatusBadGateway, tripReply: "upstream"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).CreateTrip(context.Background(), domain.TripRecord{ID: "t9"})
	require.Error(t, err)
	assert.Equal(t, int32(1), fake.posts.Load())
}

func TestClient_PutIsRetried(t *testing.T) {
	fake := &fakeServer{tripStatus: http.StatusServiceUnavailable, tripReply: "down"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := newClient(t, srv.URL, 2).UpdateTrip(context.Background(), "t1", domain.TripRecord{ID: "t1"})
	require.Error(t, err)
	assert.Len(t, fake.seenHeaders, 3)
}

func TestClient_CircuitOpens(t *testing.T) {
	fake := &fakeServer{tripStatus: http.StatusInternalServerError, tripReply: "boom"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	c := newClient(t, srv.URL, 0)

	for i := 0; i < 5; i++ {
		_, err := c.DeleteTrip(context.Background(), "t1")
		require.Error(t, err)
	}

	_, err := c.DeleteTrip(context.Background(), "t1")
	var open *domain.ErrCircuitOpen
	assert.True(t, errors.As(err, &open))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newClient(t, srv.URL, 0).ListTrips(ctx)
	var timeout *domain.ErrTimeout
	assert.True(t, errors.As(err, &timeout))
}
