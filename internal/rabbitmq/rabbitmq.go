package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"statshub/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ExchangeKind is the exchange type used for stats routing keys
const ExchangeKind = "topic"

type Client interface {
	Close() error

	DeclareExchange(name, kind string) error
	DeclareQueue(name string) (amqp.Queue, error)
	BindQueue(queueName, exchangeName, routingKey string) error

	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error
	Consume(queueName string, consumerTag string) (<-chan amqp.Delivery, error)

	Health() error
}

type client struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	config       config.RabbitMQConfig
	mu           sync.Mutex
	reconnecting bool
}

func NewClientFromConfig(cfg config.RabbitMQConfig) (Client, error) {
	c := &client{config: cfg}

	if err := c.connect(); err != nil {
		return nil, err
	}

	c.setupReconnect()

	return c, nil
}

func (c *client) connect() error {
	amqpURL := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.config.Username,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	conn, err := amqp.DialConfig(amqpURL, amqp.Config{
		Heartbeat: 30 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open RabbitMQ channel")
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if c.config.PrefetchCount > 0 {
		if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
			log.Error().Err(err).Msg("Failed to set channel QoS")
			conn.Close()
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	c.conn = conn
	c.channel = ch

	log.Info().
		Str("host", c.config.Host).
		Int("port", c.config.Port).
		Str("vhost", c.config.VHost).
		Msg("RabbitMQ connection established")

	return nil
}

func (c *client) setupReconnect() {
	notifyClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))

	go func() {
		err, ok := <-notifyClose
		if !ok || err == nil {
			// closed on purpose
			return
		}

		log.Warn().
			Str("reason", err.Reason).
			Int("code", err.Code).
			Bool("recover", err.Recover).
			Msg("RabbitMQ connection closed, attempting to reconnect...")

		c.doReconnect()
	}()
}

func (c *client) doReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnecting {
		return
	}
	if c.conn != nil && !c.conn.IsClosed() {
		// already replaced by ensureConnected
		return
	}

	c.reconnecting = true
	defer func() { c.reconnecting = false }()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		log.Info().Dur("backoff", backoff).Msg("Attempting to reconnect to RabbitMQ")

		if err := c.connect(); err != nil {
			time.Sleep(backoff)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.setupReconnect()
		log.Info().Msg("Successfully reconnected to RabbitMQ")
		return
	}
}

// ensureConnected must be called with mu held
func (c *client) ensureConnected() error {
	if c.conn != nil && c.channel != nil && !c.conn.IsClosed() {
		return nil
	}

	if err := c.connect(); err != nil {
		return err
	}
	c.setupReconnect()
	return nil
}

func (c *client) Health() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.channel == nil {
		return fmt.Errorf("nil connection or channel")
	}

	if c.conn.IsClosed() {
		return fmt.Errorf("connection is closed")
	}

	// A passive declare fails if the channel is unusable
	err := c.channel.ExchangeDeclarePassive(c.config.ExchangeName, ExchangeKind, true, false, false, false, nil)
	if err != nil {
		log.Error().Err(err).Msg("RabbitMQ health check failed on passive exchange declare")
		return err
	}

	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ channel")
			return fmt.Errorf("channel close error: %w", err)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ connection")
			return fmt.Errorf("connection close error: %w", err)
		}
	}

	log.Info().Msg("RabbitMQ connection and channel closed")
	return nil
}

func (c *client) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("failed to reconnect before publishing: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      headers,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("exchange", exchange).
			Str("routingKey", routingKey).
			Msg("Failed to publish message")
		return err
	}

	log.Debug().
		Str("exchange", exchange).
		Str("routingKey", routingKey).
		Int("size", len(body)).
		Msg("Published message")

	return nil
}

func (c *client) Consume(queueName string, consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, fmt.Errorf("failed to reconnect before consuming: %w", err)
	}

	deliveries, err := c.channel.Consume(
		queueName,   // queue
		consumerTag, // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		log.Error().
			Err(err).
			Str("queue", queueName).
			Str("consumerTag", consumerTag).
			Msg("Failed to start consuming")
		return nil, fmt.Errorf("consume error: %w", err)
	}

	log.Info().
		Str("queue", queueName).
		Str("consumerTag", consumerTag).
		Msg("Started consuming messages")

	return deliveries, nil
}

func (c *client) DeclareExchange(name, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("failed to reconnect before declaring exchange: %w", err)
	}

	err := c.channel.ExchangeDeclare(name, kind, true, false, false, false, nil)
	if err != nil {
		log.Error().Err(err).Str("exchange", name).Msg("Failed to declare exchange")
		return err
	}

	log.Info().Str("exchange", name).Str("type", kind).Msg("Declared exchange")
	return nil
}

func (c *client) DeclareQueue(name string) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to reconnect before declaring queue: %w", err)
	}

	queue, err := c.channel.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Failed to declare queue")
		return amqp.Queue{}, err
	}

	log.Info().Str("queue", name).Msg("Declared queue")
	return queue, nil
}

func (c *client) BindQueue(queueName, exchangeName, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("failed to reconnect before binding queue: %w", err)
	}

	err := c.channel.QueueBind(queueName, routingKey, exchangeName, false, nil)
	if err != nil {
		log.Error().
			Err(err).
			Str("queue", queueName).
			Str("exchange", exchangeName).
			Str("routingKey", routingKey).
			Msg("Failed to bind queue")
		return err
	}

	log.Info().
		Str("queue", queueName).
		Str("exchange", exchangeName).
		Str("routingKey", routingKey).
		Msg("Bound queue to exchange")
	return nil
}

// SetupTopology declares the stats exchange and the invalidation queue
func SetupTopology(c Client, cfg config.RabbitMQConfig) error {
	if err := c.DeclareExchange(cfg.ExchangeName, ExchangeKind); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.DeclareQueue(cfg.InvalidateQueue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.BindQueue(cfg.InvalidateQueue, cfg.ExchangeName, cfg.InvalidateKey); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
