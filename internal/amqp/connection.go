// Package amqp is the optional broker side of the server: update events
// are mirrored onto a topic exchange per display, and a refresh queue
// lets external systems force an out-of-schedule update.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/config"
	"github.com/paperframe/paperframe/pkg/models"
)

// Connection wraps the AMQP connection and channel
type Connection struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.AMQPConfig
	logger  *zap.Logger
}

// NewConnection creates a new AMQP connection and declares the topology
func NewConnection(cfg config.AMQPConfig, logger *zap.Logger) (*Connection, error) {
	c := &Connection{
		config: cfg,
		logger: logger,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials the broker and declares the exchange and refresh queue.
// Callers must hold no lock; used both at startup and on reconnect.
func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// One unacknowledged refresh request at a time; a refresh triggers a
	// full pipeline run, so prefetching more is pointless
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		c.config.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.config.RefreshQueue, // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare refresh queue: %w", err)
	}

	err = ch.QueueBind(
		c.config.RefreshQueue, // queue name
		refreshRoutingKey,     // routing key
		c.config.Exchange,     // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to bind refresh queue: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()
	return nil
}

// refreshRoutingKey binds the refresh queue to the shared exchange.
const refreshRoutingKey = "refresh"

// eventRoutingKey namespaces outgoing update events so a display named
// "refresh" can never route its own events into the refresh queue.
func eventRoutingKey(display string) string {
	return "event." + display
}

// EnsureConnection reconnects when the underlying connection has dropped
func (c *Connection) EnsureConnection() error {
	c.mu.Lock()
	alive := c.conn != nil && !c.conn.IsClosed()
	c.mu.Unlock()
	if alive {
		return nil
	}
	c.logger.Info("Reconnecting to AMQP", zap.String("exchange", c.config.Exchange))
	return c.connect()
}

// forceClose drops the current connection so the next EnsureConnection
// dials fresh
func (c *Connection) forceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the AMQP connection and channel
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishUpdate mirrors a delivery outcome onto the exchange under
// "event.{display}". Consumers bind display-specific queues with that
// pattern; the prefix keeps events out of the refresh queue.
func (c *Connection) PublishUpdate(ctx context.Context, event models.UpdateEvent) error {
	if err := c.EnsureConnection(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal update event: %w", err)
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	err = ch.PublishWithContext(
		ctx,
		c.config.Exchange,              // exchange
		eventRoutingKey(event.Display), // routing key
		false,                          // mandatory
		false,                          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish update event: %w", err)
	}

	c.logger.Debug("Published update event",
		zap.String("display", event.Display),
		zap.String("source", event.Source),
		zap.Bool("success", event.Success))
	return nil
}
