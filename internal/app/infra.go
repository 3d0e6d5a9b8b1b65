package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/medidesk/practice-api/internal/config"
	"github.com/medidesk/practice-api/pkg/circuitbreaker"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/mailer"
)

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	return redis.NewClient(opts), nil
}

// NewMailer returns the SMTP mailer behind a circuit breaker, or a no-op
// mailer when no SMTP host is configured.
func NewMailer(cfg *config.Config, log *logger.Logger) mailer.Mailer {
	m := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if cfg.SMTP.Host == "" {
		return m
	}
	return mailer.WithBreaker(m, circuitbreaker.New(circuitbreaker.DefaultSettings("smtp"), *log.Zerolog()))
}
