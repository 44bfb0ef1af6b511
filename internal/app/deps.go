package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mvigil90/oc-friends/internal/config"
	"github.com/mvigil90/oc-friends/internal/db"
	"github.com/mvigil90/oc-friends/internal/events"
	"github.com/mvigil90/oc-friends/internal/friendship"
	"github.com/mvigil90/oc-friends/internal/handlers"
	"github.com/mvigil90/oc-friends/internal/middleware"
	"github.com/mvigil90/oc-friends/internal/storage"
	"github.com/mvigil90/oc-friends/internal/users"
)

type cleanupFunc func(context.Context) error

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases the event sinks.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, cleanupFunc, error) {
	emitter, cleanup, err := buildEmitter(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	gateway := db.NewGateway(pool, cfg.TablePrefix)

	deps := handlers.Dependencies{
		Friends:        friendship.NewMapper(gateway, friendship.SystemClock, emitter),
		Users:          users.NewGatewayDirectory(gateway),
		RequestLimiter: middleware.NewRateLimiter(cfg.RequestLimit),
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Database = pinger
	}

	return deps, cleanup, nil
}

// buildEmitter connects every configured event sink and fans events out to
// all of them.
func buildEmitter(ctx context.Context, cfg config.Config) (events.Emitter, cleanupFunc, error) {
	var (
		sinks   events.Fanout
		closers []func() error
	)

	cleanup := func(context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	fail := func(err error) (events.Emitter, cleanupFunc, error) {
		_ = cleanup(ctx)
		return nil, nil, err
	}

	for _, sink := range cfg.EventSinks {
		switch sink {
		case config.SinkLog:
			sinks = append(sinks, events.LogEmitter{Level: slog.LevelInfo})
		case config.SinkRedis:
			client, err := events.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, client.Close)
			sinks = append(sinks, events.NewRedisQueue(client, cfg.Redis.Queue))
		case config.SinkNSQ:
			producer, err := events.NewNSQProducer(cfg.NSQ.Addr)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, func() error { producer.Stop(); return nil })
			sinks = append(sinks, events.NewNSQPublisher(producer, cfg.NSQ.Topic))
		case config.SinkArchive:
			store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, events.NewArchive(store, cfg.ObjectStore.Prefix))
		default:
			return fail(fmt.Errorf("unknown event sink %q", sink))
		}
	}

	if len(sinks) == 0 {
		return events.Nop, cleanup, nil
	}
	return sinks, cleanup, nil
}
