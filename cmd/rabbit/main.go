package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statshub/internal/config"
	"statshub/internal/controller"
	"statshub/internal/rabbitmq"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// rabbit publishes an invalidation message the way the marketplace backend
// does, and can tail stats.computed events for debugging.
func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	role := flag.String("role", "", "role to invalidate, empty for both")
	userID := flag.String("user", "", "user id to invalidate, empty for every user")
	tail := flag.Bool("tail", false, "print stats events until interrupted")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	client, err := rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}
	defer client.Close()

	if err := rabbitmq.SetupTopology(client, cfg.RabbitMQ); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up topology")
	}

	if err := client.Health(); err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ health check failed")
	}

	if *tail {
		tailEvents(client, cfg.RabbitMQ)
		return
	}

	body, err := json.Marshal(controller.InvalidationMessage{Role: *role, UserID: *userID})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	headers := amqp.Table{
		"source":     "statshub-cli",
		"message_id": uuid.NewString(),
	}
	if err := client.Publish(ctx, cfg.RabbitMQ.ExchangeName, cfg.RabbitMQ.InvalidateKey, body, headers); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish invalidation")
	}

	log.Info().
		Str("role", *role).
		Str("user", *userID).
		Msg("Published invalidation")
}

func tailEvents(client rabbitmq.Client, cfg config.RabbitMQConfig) {
	queue := cfg.ExchangeName + ".events.tail"
	if _, err := client.DeclareQueue(queue); err != nil {
		log.Fatal().Err(err).Msg("Failed to declare tail queue")
	}
	if err := client.BindQueue(queue, cfg.ExchangeName, cfg.EventRoutingKey); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind tail queue")
	}

	deliveries, err := client.Consume(queue, "statshub-tail")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start consuming")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Str("queue", queue).Msg("Waiting for stats events. Press CTRL+C to exit.")

	for {
		select {
		case <-sigChan:
			log.Info().Msg("Shutting down...")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				log.Warn().Msg("Delivery channel closed")
				return
			}

			var event controller.StatsEvent
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				log.Error().Err(err).Msg("Failed to unmarshal event")
				_ = delivery.Nack(false, false)
				continue
			}

			log.Info().
				Str("id", event.ID).
				Str("role", string(event.Role)).
				Str("user", event.UserID).
				Str("availability", string(event.Summary.Availability)).
				Str("source", event.Summary.Source).
				Int("total", event.Summary.Total).
				Msg("Stats computed")

			_ = delivery.Ack(false)
		}
	}
}
