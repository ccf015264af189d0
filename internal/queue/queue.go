package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/commitlabs/commitment-service/internal/config"
	"github.com/commitlabs/commitment-service/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// QueueManager publishes service events to a RabbitMQ topic exchange,
// one routing key per event topic. Publishes are fire-and-forget: no
// confirms, no retries, and a failure never affects the state change
// that produced the event.
type QueueManager struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

var _ events.Sink = (*QueueManager)(nil)

// NewQueueManager dials the broker (with startup retries) and declares
// the events exchange.
func NewQueueManager(cfg *config.QueueConfig) (*QueueManager, error) {
	url := cfg.Url
	if cfg.User != "" {
		url = fmt.Sprintf("amqp://%s:%s@%s", cfg.User, cfg.Password, cfg.Url)
	}

	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			var dialErr error
			conn, dialErr = amqp.Dial(url)
			return dialErr
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &QueueManager{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}, nil
}

func (qm *QueueManager) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return qm.channel.PublishWithContext(
		ctx,
		qm.exchange,
		event.Topic, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Timestamp:   time.Unix(event.Timestamp, 0),
			Body:        body,
		},
	)
}

// Shutdown gracefully stops the interaction with the queue, ensuring all
// resources are properly released.
func (qm *QueueManager) Shutdown() {
	log.Info().Msg("Shutting down queue manager")
	if err := qm.channel.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue channel")
	}
	if err := qm.conn.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue connection")
	}
}
