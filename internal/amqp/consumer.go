package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

// Refresher accepts an out-of-schedule update request.
type Refresher interface {
	Trigger(req models.RefreshRequest) error
}

// RefreshConsumer consumes refresh requests from the broker
type RefreshConsumer struct {
	conn      *Connection
	refresher Refresher
	logger    *zap.Logger
}

// NewRefreshConsumer creates a new refresh consumer
func NewRefreshConsumer(conn *Connection, refresher Refresher, logger *zap.Logger) *RefreshConsumer {
	return &RefreshConsumer{
		conn:      conn,
		refresher: refresher,
		logger:    logger,
	}
}

// Start consumes the refresh queue until the context is cancelled, with
// automatic reconnection
func (c *RefreshConsumer) Start(ctx context.Context, queueName string) error {
	retryDelay := time.Second
	maxRetryDelay := 30 * time.Second
	retryCount := 0

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			if err := c.startConsuming(ctx, queueName); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				retryCount++
				c.logger.Error("Consumer failed, will retry after delay",
					zap.Error(err),
					zap.String("queue", queueName),
					zap.Int("retry_count", retryCount),
					zap.Duration("retry_delay", retryDelay))

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retryDelay):
					retryDelay = time.Duration(float64(retryDelay) * 1.5)
					if retryDelay > maxRetryDelay {
						retryDelay = maxRetryDelay
					}
					continue
				}
			}
			retryDelay = time.Second
			retryCount = 0
		}
	}
}

// startConsuming handles a single consumption session
func (c *RefreshConsumer) startConsuming(ctx context.Context, queueName string) error {
	if err := c.conn.EnsureConnection(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	hostname, _ := os.Hostname()
	consumerTag := fmt.Sprintf("paperframe-%s-%d", hostname, time.Now().Unix())

	c.conn.mu.Lock()
	ch := c.conn.channel
	c.conn.mu.Unlock()

	msgs, err := ch.Consume(
		queueName,   // queue
		consumerTag, // consumer tag
		false,       // auto-ack (disabled for manual acknowledgment)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		c.logger.Warn("Failed to register consumer, forcing reconnection",
			zap.Error(err),
			zap.String("queue", queueName))
		c.conn.forceClose()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Started consuming refresh requests",
		zap.String("queue", queueName),
		zap.String("consumer_tag", consumerTag))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Message channel closed, will reconnect")
				return fmt.Errorf("message channel closed")
			}
			c.handleMessage(msg)
		}
	}
}

// handleMessage processes a single refresh request. Malformed payloads
// are dropped without requeue; a full trigger queue requeues the message
// so a busy scheduler picks it up later.
func (c *RefreshConsumer) handleMessage(msg amqp.Delivery) {
	var req models.RefreshRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		c.logger.Error("Failed to unmarshal refresh request", zap.Error(err))
		msg.Nack(false, false)
		return
	}
	if req.Display == "" {
		c.logger.Error("Refresh request without a display name")
		msg.Nack(false, false)
		return
	}

	if err := c.refresher.Trigger(req); err != nil {
		c.logger.Warn("Refresh rejected, requeueing",
			zap.String("display", req.Display),
			zap.Error(err))
		msg.Nack(false, true)
		return
	}

	c.logger.Info("Refresh requested",
		zap.String("display", req.Display),
		zap.String("source", req.Source))
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to acknowledge refresh request", zap.Error(err))
	}
}
