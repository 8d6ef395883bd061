package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// probeTimeout bounds a single cache store health check.
const probeTimeout = 5 * time.Second

// Status is the outcome of the most recent cache store probe.
type Status struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// sweeper is implemented by stores that need their expired entries reclaimed.
type sweeper interface {
	Sweep() int
}

// Scheduler periodically probes the cache store so outages surface in logs and
// on the health endpoint even when no lookups are running.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     weather.Store
	interval  time.Duration
	logger    zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a new Scheduler.
func New(store weather.Store, interval time.Duration, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		store:     store,
		interval:  interval,
		logger:    logger.With().Str("component", "Scheduler").Logger(),
	}
}

// Start probes once synchronously, then schedules the periodic job.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}

	s.Probe(context.Background())

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		s.Probe(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Probe pings the cache store, records the result and sweeps expired entries
// from stores that keep them in process.
func (s *Scheduler) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := Status{Healthy: true, CheckedAt: time.Now().UTC()}
	if err := s.store.Ping(ctx); err != nil {
		st.Healthy = false
		st.Error = err.Error()
	}

	s.mu.Lock()
	prev := s.status
	s.status = st
	s.mu.Unlock()

	switch {
	case !st.Healthy:
		s.logger.Error().Str("error", st.Error).Msg("Cache store health check failed.")
	case !prev.Healthy && !prev.CheckedAt.IsZero():
		s.logger.Info().Msg("Cache store recovered.")
	}

	if sw, ok := s.store.(sweeper); ok {
		if n := sw.Sweep(); n > 0 {
			s.logger.Debug().Int("removed", n).Msg("Swept expired cache entries.")
		}
	}
	return st
}

// Status returns the most recent probe result.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
