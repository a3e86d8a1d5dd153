package liveness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jgivc/quickdrop/internal/config"
)

type Reason string

const (
	ReasonIdle    Reason = "idle"
	ReasonRequest Reason = "request"
	ReasonSignal  Reason = "signal"
)

// TempSweeper removes leftovers of aborted uploads.
type TempSweeper interface {
	SweepTemp(maxAge time.Duration) (int, error)
}

/*
Monitor tracks the time of the last API request and the requests still in
flight, and decides when the process should go away. It moves from active
to shutting down exactly once.
*/
type Monitor struct {
	cfg      *config.LivenessConfig
	sweeper  TempSweeper
	staleAge time.Duration
	now      func() time.Time

	lastActivity atomic.Int64
	inFlight     atomic.Int64
	reason       atomic.Value
	once         sync.Once
	done         chan struct{}

	log *slog.Logger
}

func NewMonitor(cfg *config.LivenessConfig, log *slog.Logger) *Monitor {
	m := &Monitor{
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
		log:  log.With(slog.String("service", "liveness")),
	}
	m.Touch()

	return m
}

// WithSweeper makes every check also remove temp files older than maxAge.
func (m *Monitor) WithSweeper(s TempSweeper, maxAge time.Duration) *Monitor {
	m.sweeper = s
	m.staleAge = maxAge

	return m
}

func (m *Monitor) Touch() {
	m.lastActivity.Store(m.now().UnixNano())
}

// Begin marks the start of a request. The monitor never goes idle before the matching End.
func (m *Monitor) Begin() {
	m.inFlight.Add(1)
	m.Touch()
}

// End marks the end of a request started with Begin. It counts as activity.
func (m *Monitor) End() {
	m.Touch()
	m.inFlight.Add(-1)
}

func (m *Monitor) InFlight() int64 {
	return m.inFlight.Load()
}

func (m *Monitor) LastActivity() time.Time {
	return time.Unix(0, m.lastActivity.Load())
}

func (m *Monitor) RequestShutdown(reason Reason) {
	m.once.Do(func() {
		m.reason.Store(reason)
		m.log.Info("Shutting down", slog.String("reason", string(reason)))
		close(m.done)
	})
}

// Done is closed once shutdown has been requested.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Reason is empty while the monitor is active.
func (m *Monitor) Reason() Reason {
	r, _ := m.reason.Load().(Reason)

	return r
}

func (m *Monitor) ShuttingDown() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Run checks for inactivity every check interval until ctx is done or shutdown is requested.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	if m.sweeper != nil {
		if _, err := m.sweeper.SweepTemp(m.staleAge); err != nil {
			m.log.Error("Cannot sweep temp files", slog.Any("error", err))
		}
	}

	if m.cfg.IdleTimeout <= 0 {
		return
	}

	if n := m.InFlight(); n > 0 {
		m.log.Debug("Requests in flight, idle check skipped", slog.Int64("in_flight", n))

		return
	}

	idle := m.now().Sub(m.LastActivity())
	if idle > m.cfg.IdleTimeout {
		m.log.Info("Idle timeout reached", slog.Duration("idle", idle))
		m.RequestShutdown(ReasonIdle)
	}
}
