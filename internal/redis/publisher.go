// Package redis publishes per-display update events so external consumers
// (dashboards, companion apps) can follow delivery outcomes live. The
// publisher is optional: the orchestrator runs identically without it.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/config"
	"github.com/paperframe/paperframe/pkg/models"
)

// Publisher wraps the Redis client for update-event publication.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a publisher and verifies the connection.
func NewPublisher(cfg config.RedisConfig, logger *zap.Logger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))

	return &Publisher{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// PublishUpdate publishes an update event to the display-specific channel.
func (p *Publisher) PublishUpdate(ctx context.Context, event models.UpdateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal update event: %w", err)
	}

	channel := fmt.Sprintf("display:%s", event.Display)
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}

	p.logger.Debug("Published update event",
		zap.String("channel", channel),
		zap.String("display", event.Display),
		zap.String("source", event.Source),
		zap.Bool("success", event.Success))
	return nil
}

// IsHealthy checks if the Redis connection is healthy.
func (p *Publisher) IsHealthy(ctx context.Context) bool {
	return p.client.Ping(ctx).Err() == nil
}
