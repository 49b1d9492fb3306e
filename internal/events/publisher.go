// Package events publishes dataset lifecycle events to an AMQP exchange.
// Publication is best-effort: failures are logged by callers and never
// fail the request that triggered them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/africaresearchbase/arb/internal/conf"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for dataset lifecycle events.
const (
	RouteDatasetUploaded = "dataset.uploaded"
	RouteDatasetVerified = "dataset.verified"
)

// DatasetEvent is the payload published for dataset lifecycle events.
type DatasetEvent struct {
	DatasetID     string    `json:"dataset_id"`
	UploaderID    string    `json:"uploader_id"`
	Title         string    `json:"title"`
	ResearchField string    `json:"research_field"`
	FinalScore    float64   `json:"final_score,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher sends events to a topic exchange.
type Publisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	logger       *slog.Logger
}

// NewPublisher connects to the broker and declares the exchange.
func NewPublisher(settings *conf.EventsSettings, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare the exchange (idempotent)
	err = channel.ExchangeDeclare(
		settings.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("event publisher initialized", "exchange", settings.Exchange)

	return &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: settings.Exchange,
		logger:       logger,
	}, nil
}

// PublishDatasetUploaded publishes a dataset.uploaded event.
func (p *Publisher) PublishDatasetUploaded(ctx context.Context, event DatasetEvent) error {
	return p.publish(ctx, RouteDatasetUploaded, event)
}

// PublishDatasetVerified publishes a dataset.verified event.
func (p *Publisher) PublishDatasetVerified(ctx context.Context, event DatasetEvent) error {
	return p.publish(ctx, RouteDatasetVerified, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	p.logger.Debug("event published", "routing_key", routingKey)
	return nil
}

// HealthCheck reports whether the broker connection is still open.
func (p *Publisher) HealthCheck() error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("AMQP connection is closed")
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
