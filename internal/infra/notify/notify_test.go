package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"

	"github.com/gorilla/websocket"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Notify(_ context.Context, message string, severity domain.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Message: message, Severity: severity})
}

func TestFanout_ForwardsToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := NewFanout(observability.NewMetrics(), a, b, NewLog(zap.NewNop()))

	f.Notify(context.Background(), "Trip saved", domain.SeveritySuccess)
	f.Notify(context.Background(), "Server unavailable", domain.SeverityError)

	require.Len(t, a.msgs, 2)
	require.Len(t, b.msgs, 2)
	assert.Equal(t, domain.SeverityError, b.msgs[1].Severity)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return fixed }

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), "Trip deleted", domain.SeveritySuccess)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "Trip deleted", msg.Message)
	assert.Equal(t, domain.SeveritySuccess, msg.Severity)
	assert.True(t, fixed.Equal(msg.At))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), "https://dashboard.example.com/")
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	cases := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{srv.URL, true},
		{"https://dashboard.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		header := http.Header{}
		if tc.origin != "" {
			header.Set("Origin", tc.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if tc.ok {
			require.NoError(t, err, tc.origin)
			conn.Close()
			continue
		}
		require.Error(t, err, tc.origin)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestHub_NotifyWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Notify(context.Background(), "nobody listening", domain.SeverityInfo)
	assert.Equal(t, 0, hub.Clients())
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQP_Publishes(t *testing.T) {
	ch := &fakeChannel{}
	a := newAMQP(ch, "ledger.notifications", "toast", zap.NewNop())

	a.Notify(context.Background(), "Cost added", domain.SeveritySuccess)

	assert.Equal(t, "ledger.notifications", ch.exchange)
	assert.Equal(t, "toast", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var msg Message
	require.NoError(t, json.Unmarshal(ch.msg.Body, &msg))
	assert.Equal(t, "Cost added", msg.Message)

	require.NoError(t, a.Close())
	assert.True(t, ch.closed)
}

func TestAMQP_PublishErrorIsSwallowed(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	a := newAMQP(ch, "x", "y", zap.NewNop())

	assert.NotPanics(t, func() {
		a.Notify(context.Background(), "lost", domain.SeverityError)
	})
}
