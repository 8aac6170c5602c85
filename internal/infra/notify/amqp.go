package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes notifications to a durable direct exchange so other
// consumers (mobile push, email) can pick them up.
type AMQP struct {
	conn       *amqp.Connection
	channel    publisher
	exchange   string
	routingKey string
	now        func() time.Time
	logger     *zap.Logger
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange, routingKey string, logger *zap.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	a := newAMQP(ch, exchange, routingKey, logger)
	a.conn = conn
	return a, nil
}

func newAMQP(ch publisher, exchange, routingKey string, logger *zap.Logger) *AMQP {
	return &AMQP{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		now:        time.Now,
		logger:     logger,
	}
}

func (a *AMQP) Notify(ctx context.Context, message string, severity domain.Severity) {
	at := a.now()
	body, err := encode(message, severity, at)
	if err != nil {
		a.logger.Error("amqp: encode notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = a.channel.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at,
		Body:         body,
	})
	if err != nil {
		a.logger.Warn("amqp: publish failed",
			zap.String("exchange", a.exchange),
			zap.String("routing_key", a.routingKey),
			zap.Error(err),
		)
	}
}

// Close releases the channel and the connection.
func (a *AMQP) Close() error {
	if a.channel != nil {
		a.channel.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
