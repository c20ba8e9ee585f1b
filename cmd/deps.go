package cmd

import (
	"context"
	"fmt"

	"mindcare-booking/internal/data/repository"
	"mindcare-booking/internal/directory"
	"mindcare-booking/internal/events"
	"mindcare-booking/internal/payment"
	"mindcare-booking/internal/wire"
	"mindcare-booking/pkg/database"
	"mindcare-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// buildDeps connects the optional infrastructure. Redis and RabbitMQ are
// skipped when their URL is empty. The returned cleanup closes what was opened.
func buildDeps(ctx context.Context, db *database.DB, config *utils.Config, logger *zap.Logger) (wire.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var dir directory.Directory = directory.NewPostgresDirectory(db, logger)
	if config.Redis.URL != "" {
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			return wire.Deps{}, func() {}, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, rates will be read from the database", zap.Error(err))
		}
		dir = directory.NewCachedDirectory(dir, client, config.Redis.RateTTL, logger)
		logger.Info("Rate cache enabled", zap.Duration("ttl", config.Redis.RateTTL))
	}

	var provider payment.Provider
	switch config.Payment.Provider {
	case "omise":
		omise, err := payment.NewOmiseProvider(config.Payment.OmisePublicKey, config.Payment.OmiseSecretKey)
		if err != nil {
			cleanup()
			return wire.Deps{}, func() {}, fmt.Errorf("init omise provider: %w", err)
		}
		provider = omise
	default:
		logger.Warn("Using the in-process mock payment provider")
		provider = payment.NewMockProvider()
	}
	provider = payment.NewResilientProvider(provider, payment.ResilienceConfig{
		Timeout:         config.Payment.Timeout,
		MaxRetries:      config.Payment.MaxRetries,
		RetryBase:       config.Payment.RetryBase,
		BreakerFailures: config.Payment.BreakerFailures,
		BreakerTimeout:  config.Payment.BreakerTimeout,
	}, logger)

	var publisher events.Publisher = events.NewNoopPublisher(logger)
	if config.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange, logger)
		if err != nil {
			cleanup()
			return wire.Deps{}, func() {}, fmt.Errorf("connect rabbitmq: %w", err)
		}
		publisher = rabbit
		closers = append(closers, func() { _ = rabbit.Close() })
	}

	return wire.Deps{
		Repo:      repository.NewRepository(db, logger),
		Directory: dir,
		Provider:  provider,
		Publisher: publisher,
		Health:    db.Ping,
	}, cleanup, nil
}
