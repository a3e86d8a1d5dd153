package counter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) Inc(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCounterRepository) Counters(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)

	counters, _ := args.Get(0).(map[string]int64)

	return counters, args.Error(1)
}

func (m *MockCounterRepository) Reset(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockCounterRepository) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestInc(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCounterRepository)
	repo.On("Inc", ctx, "a.txt").Return(int64(4), nil).Once()
	repo.On("Inc", ctx, "b.txt").Return(int64(0), errors.New("redis down")).Once()

	srv := NewCounterService(repo, newLogger())

	require.Equal(t, int64(4), srv.Inc(ctx, "a.txt"))
	require.Equal(t, int64(0), srv.Inc(ctx, "b.txt"))
	repo.AssertExpectations(t)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCounterRepository)
	repo.On("Counters", ctx).Return(map[string]int64{"a.txt": 2}, nil).Once()
	repo.On("Counters", ctx).Return(nil, errors.New("redis down")).Once()

	srv := NewCounterService(repo, newLogger())

	counters, err := srv.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a.txt": 2}, counters)

	_, err = srv.Counters(ctx)
	require.Error(t, err)
	repo.AssertExpectations(t)
}

func TestResetAndClearSwallowErrors(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCounterRepository)
	repo.On("Reset", ctx, "a.txt").Return(errors.New("redis down")).Once()
	repo.On("Clear", ctx).Return(nil).Once()

	srv := NewCounterService(repo, newLogger())
	srv.Reset(ctx, "a.txt")
	srv.Clear(ctx)

	repo.AssertExpectations(t)
}
