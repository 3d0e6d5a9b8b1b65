package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/medidesk/practice-api/pkg/circuitbreaker"
	"github.com/medidesk/practice-api/pkg/messaging"
)

type RedisBroker struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:      5,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewRedisBroker publishes over Redis pub/sub. Publishing is guarded by a
// circuit breaker that opens after FailureThreshold consecutive failures.
func NewRedisBroker(client *redis.Client, cfg Config, logger zerolog.Logger) messaging.Broker {
	return &RedisBroker{
		client: client,
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:             "redis-broker",
			MaxRequests:      cfg.MaxRequests,
			Interval:         cfg.Interval,
			Timeout:          cfg.Timeout,
			FailureThreshold: cfg.FailureThreshold,
		}, logger),
		logger: logger,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	err := circuitbreaker.Do(b.cb, func() error {
		return b.client.Publish(ctx, channel, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
