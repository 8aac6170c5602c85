// Package notify delivers the ledger's user-facing toasts. Every notifier is
// fire-and-forget: a failed delivery is logged and never reaches the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/port"

	"go.uber.org/zap"
)

// Message is the wire shape shared by the websocket hub and the AMQP publisher.
type Message struct {
	Message  string          `json:"message"`
	Severity domain.Severity `json:"severity"`
	At       time.Time       `json:"at"`
}

func encode(message string, severity domain.Severity, at time.Time) ([]byte, error) {
	return json.Marshal(Message{Message: message, Severity: severity, At: at.UTC()})
}

// Log writes notifications to the structured log.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, message string, severity domain.Severity) {
	fields := []zap.Field{zap.String("severity", string(severity)), zap.String("message", message)}
	if severity == domain.SeverityError {
		l.logger.Warn("notification", fields...)
		return
	}
	l.logger.Info("notification", fields...)
}

// Fanout forwards each notification to every wrapped notifier and counts it.
type Fanout struct {
	targets []port.Notifier
	metrics *observability.Metrics
}

func NewFanout(metrics *observability.Metrics, targets ...port.Notifier) *Fanout {
	return &Fanout{targets: targets, metrics: metrics}
}

func (f *Fanout) Notify(ctx context.Context, message string, severity domain.Severity) {
	if f.metrics != nil {
		f.metrics.IncrNotification(string(severity))
	}
	for _, t := range f.targets {
		t.Notify(ctx, message, severity)
	}
}
