// Package bootstrap wires the store, caches, indexes and the application
// service from a loaded config. Both binaries start from here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/application"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/cache"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/kafka"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/roster"
)

type App struct {
	Store    *partition.Instrumented
	Roster   *roster.Manager
	Messages *messagelog.Log
	Inbox    *inbox.Index
	Service  *application.Service

	redis    *cache.Redis
	producer *kafka.Producer
}

// New opens every dependency named by cfg. Redis and Kafka are optional:
// without REDIS_ADDR rosters are cached in memory, and without KAFKA_BROKERS
// no events are published.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	store, err := partition.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	app := &App{Store: store}

	var rosterCache roster.Cache
	if cfg.RedisAddr != "" {
		app.redis = cache.NewRedis(cfg.RedisAddr, cfg.RosterCacheTTL)
		if err := app.redis.Ping(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rosterCache = app.redis
	} else {
		rosterCache = cache.NewMemory(cfg.RosterCacheTTL)
	}

	readC, writeC := cfg.ReadConsistencyLevel(), cfg.WriteConsistencyLevel()

	app.Roster = roster.New(store, roster.Options{
		Cache:            rosterCache,
		Logger:           log.Named("roster"),
		ReadConsistency:  readC,
		WriteConsistency: writeC,
	})
	app.Messages = messagelog.New(store, app.Roster, messagelog.Options{
		Logger:           log.Named("messagelog"),
		ReadConsistency:  readC,
		WriteConsistency: writeC,
	})
	app.Inbox = inbox.New(store, inbox.Options{
		Logger:           log.Named("inbox"),
		ReadConsistency:  readC,
		WriteConsistency: writeC,
	})

	deps := application.Deps{
		Store:    store,
		Roster:   app.Roster,
		Messages: app.Messages,
		Inbox:    app.Inbox,
		Logger:   log.Named("application"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		app.producer = kafka.NewProducer(cfg.KafkaBrokers)
		deps.Publisher = app.producer
	}

	app.Service = application.New(deps, application.Config{
		RetryAttempts:     cfg.RetryAttempts,
		InitialBackoff:    cfg.RetryInitialBackoff,
		MaxBackoff:        cfg.RetryMaxBackoff,
		FanoutConcurrency: cfg.FanoutConcurrency,
		MessageTopic:      cfg.KafkaMessageTopic,
		RepairTopic:       cfg.KafkaRepairTopic,
		ReadConsistency:   readC,
		WriteConsistency:  writeC,
	})
	return app, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.producer != nil {
		keep(a.producer.Close())
	}
	if a.redis != nil {
		keep(a.redis.Close())
	}
	keep(a.Store.Close())
	return firstErr
}
