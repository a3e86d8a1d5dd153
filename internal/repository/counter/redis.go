package counter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyFileStats is a HASH: entry name -> download counter. HINCRBY keeps increments atomic.
	KeyFileStats = "quickdrop:fs"
)

type redisRepository struct {
	cl  *redis.Client
	key string
	log *slog.Logger
}

// NewRedisRepository keeps counters in redis so they survive restarts of the drop
// as long as the same storage dir is used.
func NewRedisRepository(ctx context.Context, url string, log *slog.Logger) (*redisRepository, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	cl := redis.NewClient(opt)
	if _, err := cl.Ping(ctx).Result(); err != nil {
		_ = cl.Close()

		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}

	return NewRedisRepositoryWithClient(cl, KeyFileStats, log), nil
}

func NewRedisRepositoryWithClient(cl *redis.Client, key string, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:  cl,
		key: key,
		log: log.With(slog.String("item", "RedisCounterRepository")),
	}
}

func (r *redisRepository) Inc(ctx context.Context, name string) (int64, error) {
	counter, err := r.cl.HIncrBy(ctx, r.key, name, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot increment %s counter: %w", name, err)
	}

	return counter, nil
}

func (r *redisRepository) Counters(ctx context.Context) (map[string]int64, error) {
	values, err := r.cl.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get counters: %w", err)
	}

	counters := make(map[string]int64, len(values))
	for name, value := range values {
		c, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("name", name), slog.Any("error", err))

			continue
		}

		counters[name] = c
	}

	return counters, nil
}

func (r *redisRepository) Reset(ctx context.Context, name string) error {
	if err := r.cl.HDel(ctx, r.key, name).Err(); err != nil {
		return fmt.Errorf("cannot reset %s counter: %w", name, err)
	}

	return nil
}

func (r *redisRepository) Clear(ctx context.Context) error {
	if err := r.cl.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("cannot clear counters: %w", err)
	}

	return nil
}

func (r *redisRepository) Close() error {
	return r.cl.Close()
}
