package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"moviefinder/internal/app"
	"moviefinder/internal/domain/ports"
	boltrepo "moviefinder/internal/repository/bolt"
	"moviefinder/internal/repository/memory"
	mongorepo "moviefinder/internal/repository/mongo"
	redisrepo "moviefinder/internal/repository/redis"
)

type storeSet struct {
	Counters  ports.SearchCounterStore
	Favorites ports.FavoriteStore
	closers   []func()
}

func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStores opens the document backend and, when asked for and reachable,
// moves the counters onto Redis.
func buildStores(ctx context.Context, cfg app.Config, redisClient *redis.Client, logger *slog.Logger) (*storeSet, error) {
	set := &storeSet{}

	switch cfg.StoreBackend {
	case app.StoreMemory:
		set.Counters = memory.NewCounterStore()
		set.Favorites = memory.NewFavoriteStore()
	case app.StoreBolt:
		db, err := boltrepo.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt %s: %w", cfg.BoltPath, err)
		}
		set.closers = append(set.closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("bolt close error", slog.String("error", err.Error()))
			}
		})
		set.Counters = boltrepo.NewCounterStore(db)
		set.Favorites = boltrepo.NewFavoriteStore(db)
		logger.Info("bolt store opened", slog.String("path", cfg.BoltPath))
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		set.closers = append(set.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
			}
		})
		counters := mongorepo.NewSearchCounterRepository(client, cfg.MongoDatabase, cfg.MongoSearchCollection)
		favorites := mongorepo.NewFavoriteRepository(client, cfg.MongoDatabase, cfg.MongoFavoritesCollection)
		if err := counters.EnsureIndexes(connectCtx); err != nil {
			set.Close()
			return nil, fmt.Errorf("mongo counter indexes: %w", err)
		}
		if err := favorites.EnsureIndexes(connectCtx); err != nil {
			set.Close()
			return nil, fmt.Errorf("mongo favorite indexes: %w", err)
		}
		set.Counters = counters
		set.Favorites = favorites
		logger.Info("mongo store connected", slog.String("db", cfg.MongoDatabase))
	}

	if cfg.CounterBackend == app.StoreRedis {
		if redisClient == nil {
			logger.Warn("COUNTER_BACKEND=redis but redis is unavailable, keeping counters on the store backend",
				slog.String("backend", cfg.StoreBackend),
			)
		} else {
			set.Counters = redisrepo.NewCounterStore(redisClient)
			logger.Info("search counters stored in redis")
		}
	}
	return set, nil
}
