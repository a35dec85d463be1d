package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"statshub/internal/config"
	"statshub/internal/model"
	"statshub/internal/rabbitmq"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// StatsEvent is published every time a summary is resolved from the backend
type StatsEvent struct {
	ID         string             `json:"id"`
	Role       model.Role         `json:"role"`
	UserID     string             `json:"userId,omitempty"`
	Summary    model.StatsSummary `json:"summary"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewStatsEvent builds an event for a freshly resolved summary
func NewStatsEvent(session model.Session, summary model.StatsSummary) StatsEvent {
	return StatsEvent{
		ID:         uuid.NewString(),
		Role:       session.Role,
		UserID:     session.UserID,
		Summary:    summary,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher announces resolved summaries
type EventPublisher interface {
	PublishComputed(ctx context.Context, event StatsEvent) error
}

// NoopPublisher drops events; used when the broker is disabled
type NoopPublisher struct{}

func (NoopPublisher) PublishComputed(context.Context, StatsEvent) error { return nil }

type rabbitPublisher struct {
	client     rabbitmq.Client
	exchange   string
	routingKey string
}

// NewRabbitPublisher publishes events to the stats exchange
func NewRabbitPublisher(client rabbitmq.Client, cfg config.RabbitMQConfig) EventPublisher {
	return &rabbitPublisher{
		client:     client,
		exchange:   cfg.ExchangeName,
		routingKey: cfg.EventRoutingKey,
	}
}

func (p *rabbitPublisher) PublishComputed(ctx context.Context, event StatsEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode stats event: %w", err)
	}

	headers := amqp.Table{
		"event_id":     event.ID,
		"role":         string(event.Role),
		"availability": string(event.Summary.Availability),
	}

	return p.client.Publish(ctx, p.exchange, p.routingKey, body, headers)
}

// InvalidationMessage is sent by the marketplace backend when a job or bid changes
type InvalidationMessage struct {
	Role   string `json:"role"`
	UserID string `json:"user_id"`
}

// ErrMalformedMessage marks messages that can never be applied
var ErrMalformedMessage = errors.New("malformed invalidation message")

// HandleInvalidation applies one invalidation message
func HandleInvalidation(ctx context.Context, sc StatsController, body []byte) error {
	var msg InvalidationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var role model.Role
	if msg.Role != "" {
		parsed, err := model.ParseRole(msg.Role)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		role = parsed
	}

	return sc.Invalidate(ctx, role, msg.UserID)
}

// consumeRetryDelay is the pause before re-subscribing after the broker drops the channel
var consumeRetryDelay = 5 * time.Second

// ConsumeInvalidations runs until ctx is cancelled. The first subscription
// error is returned; later channel closures are retried after a delay.
// Malformed messages are dropped, failed invalidations are requeued once.
func ConsumeInvalidations(ctx context.Context, client rabbitmq.Client, queue string, sc StatsController) error {
	deliveries, err := client.Consume(queue, "statshub-invalidator")
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("queue", queue).Msg("Stopping invalidation consumer")
			return nil
		case d, ok := <-deliveries:
			if ok {
				processDelivery(ctx, sc, d)
				continue
			}

			log.Warn().Str("queue", queue).Msg("Delivery channel closed, resubscribing")
			deliveries = resubscribe(ctx, client, queue)
			if deliveries == nil {
				return nil
			}
		}
	}
}

// resubscribe returns nil only when ctx is cancelled
func resubscribe(ctx context.Context, client rabbitmq.Client, queue string) <-chan amqp.Delivery {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumeRetryDelay):
		}

		deliveries, err := client.Consume(queue, "statshub-invalidator")
		if err == nil {
			return deliveries
		}
		log.Error().Err(err).Str("queue", queue).Msg("Failed to resubscribe to invalidation queue")
	}
}

// acknowledger is the part of amqp.Delivery used to settle a message
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func processDelivery(ctx context.Context, sc StatsController, d amqp.Delivery) {
	settle(ctx, sc, d.Body, d.Redelivered, &d)
}

func settle(ctx context.Context, sc StatsController, body []byte, redelivered bool, ack acknowledger) {
	err := HandleInvalidation(ctx, sc, body)
	if err == nil {
		if ackErr := ack.Ack(false); ackErr != nil {
			log.Error().Err(ackErr).Msg("Failed to ack invalidation")
		}
		return
	}

	requeue := !redelivered && !errors.Is(err, ErrMalformedMessage)
	log.Warn().
		Err(err).
		Bool("requeue", requeue).
		Msg("Invalidation message not applied")

	if nackErr := ack.Nack(false, requeue); nackErr != nil {
		log.Error().Err(nackErr).Msg("Failed to nack invalidation")
	}
}
