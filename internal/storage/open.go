package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisad "lodge_finder/internal/adapters/redis"
	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
	"lodge_finder/internal/shared"
	"lodge_finder/internal/storage/file"
	"lodge_finder/internal/storage/memory"
	"lodge_finder/internal/storage/mysql"
	"lodge_finder/internal/storage/postgres"
)

// Opened is a ready record store plus whatever must be closed on exit.
type Opened struct {
	Records *app.RecordStore
	closers []func()
}

func (o *Opened) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
}

// Open builds the key-value backend named by cfg.Store.Driver and wraps it
// in a seeded RecordStore. With REDIS_CACHE the lodge list is cached in
// redis in front of any driver.
func Open(ctx context.Context, cfg shared.Config) (*Opened, error) {
	o := &Opened{}
	var (
		kv  domain.KVStore
		rdb *redis.Client
	)
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := redisad.Connect(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPass, cfg.Store.RedisDB)
		if err != nil {
			return nil, err
		}
		rdb = c
		o.closers = append(o.closers, func() { _ = c.Close() })
		return c, nil
	}

	switch cfg.Store.Driver {
	case "memory":
		kv = memory.New()
	case "file":
		s, err := file.New(cfg.Store.FilePath)
		if err != nil {
			return nil, err
		}
		kv = s
	case "redis":
		c, err := redisClient()
		if err != nil {
			o.Close()
			return nil, err
		}
		kv = redisad.NewStore(c, cfg.Store.RedisPrefix)
	case "mysql":
		s, err := mysql.Open(ctx, cfg.Store.MySQLDSN)
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, func() { _ = s.Close() })
		kv = s
	case "postgres":
		s, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, s.Close)
		kv = s
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	rs := app.NewRecordStore(kv, cfg.Store.MaxBytes).WithSeed(app.SeedLodges())
	if cfg.Store.RedisCache {
		c, err := redisClient()
		if err != nil {
			// the store works without its cache
			log.Warn().Err(err).Msg("redis cache unavailable, continuing without it")
		} else {
			rs = rs.WithCache(redisad.NewCache(c, cfg.Store.RedisPrefix+"cache:"), cfg.CacheTTL)
		}
	}
	o.Records = rs
	log.Info().Str("driver", cfg.Store.Driver).Bool("cache", cfg.Store.RedisCache).Msg("record store ready")
	return o, nil
}
