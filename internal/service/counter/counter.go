package counter

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	serviceName = "counter"
)

type CounterRepository interface {
	Inc(ctx context.Context, name string) (int64, error)
	Counters(ctx context.Context) (map[string]int64, error)
	Reset(ctx context.Context, name string) error
	Clear(ctx context.Context) error
}

type counterService struct {
	repo CounterRepository
	log  *slog.Logger
}

func NewCounterService(repo CounterRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

// Inc is best effort. A counter failure never fails a download.
func (c *counterService) Inc(ctx context.Context, name string) int64 {
	counter, err := c.repo.Inc(ctx, name)
	if err != nil {
		c.log.Error("Cannot increment download counter", slog.String("name", name), slog.Any("error", err))

		return 0
	}

	return counter
}

func (c *counterService) Counters(ctx context.Context) (map[string]int64, error) {
	counters, err := c.repo.Counters(ctx)
	if err != nil {
		c.log.Error("Cannot get download counters", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get download counters: %w", err)
	}

	return counters, nil
}

func (c *counterService) Reset(ctx context.Context, name string) {
	if err := c.repo.Reset(ctx, name); err != nil {
		c.log.Error("Cannot reset download counter", slog.String("name", name), slog.Any("error", err))
	}
}

func (c *counterService) Clear(ctx context.Context) {
	if err := c.repo.Clear(ctx); err != nil {
		c.log.Error("Cannot clear download counters", slog.Any("error", err))
	}
}
