package counter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type repository interface {
	Inc(ctx context.Context, name string) (int64, error)
	Counters(ctx context.Context) (map[string]int64, error)
	Reset(ctx context.Context, name string) error
	Clear(ctx context.Context) error
}

func exerciseRepository(t *testing.T, repo repository) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		c, err := repo.Inc(ctx, "a.txt")
		require.NoError(t, err)
		require.Equal(t, int64(i), c)
	}

	_, err := repo.Inc(ctx, "b.txt")
	require.NoError(t, err)

	counters, err := repo.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a.txt": 3, "b.txt": 1}, counters)

	require.NoError(t, repo.Reset(ctx, "a.txt"))
	counters, err = repo.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"b.txt": 1}, counters)

	require.NoError(t, repo.Clear(ctx))
	counters, err = repo.Counters(ctx)
	require.NoError(t, err)
	require.Empty(t, counters)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestMemoryRepository_Concurrent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			_, _ = repo.Inc(ctx, "hot.bin")
		}()
	}
	wg.Wait()

	counters, err := repo.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(50), counters["hot.bin"])
}

// Set QUICKDROP_TEST_REDIS_URL to run against a real server.
func TestRedisRepository(t *testing.T) {
	url := os.Getenv("QUICKDROP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QUICKDROP_TEST_REDIS_URL is not set")
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	cl := redis.NewClient(opt)
	t.Cleanup(func() { _ = cl.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	repo := NewRedisRepositoryWithClient(cl, "quickdrop:test:"+t.Name(), log)
	t.Cleanup(func() { _ = repo.Clear(context.Background()) })

	exerciseRepository(t, repo)
}

func TestNewRedisRepository_BadURL(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	_, err := NewRedisRepository(context.Background(), "not a url", log)
	require.Error(t, err)
}
