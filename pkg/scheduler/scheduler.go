package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/feeds"
	"github.com/sentinelx/sentinelx/pkg/telemetry"
)

// SyncRunner runs one full aggregation cycle.
type SyncRunner interface {
	SyncCycle(ctx context.Context, sources []string) ([]feeds.SyncOutcome, error)
}

// Scheduler owns the background feed sync: one cycle on a fixed
// interval plus an on-demand trigger. At most one cycle runs at a
// time; a trigger received while a cycle is in flight is coalesced
// into a no-op acknowledgment.
type Scheduler struct {
	runner   SyncRunner
	interval time.Duration

	trigger  chan []string
	inFlight atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	startMu  sync.Mutex
}

func New(runner SyncRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan []string, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the schedule loop. Returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	log.Info().Dur("interval", s.interval).Msg("feed sync scheduler started")
}

// Trigger schedules an immediate cycle for the given sources (empty
// means all). Returns false when a cycle is already in flight or
// queued, in which case the request is dropped.
func (s *Scheduler) Trigger(sources []string) bool {
	if s.inFlight.Load() {
		return false
	}
	select {
	case s.trigger <- sources:
		return true
	default:
		return false
	}
}

// Stop halts the schedule loop and waits for an in-flight cycle.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx, nil)
		case sources := <-s.trigger:
			s.runCycle(ctx, sources)
		}
	}
}

// runCycle executes one cycle. A failed cycle is logged and the
// schedule continues; the next interval is the retry mechanism.
func (s *Scheduler) runCycle(ctx context.Context, sources []string) {
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	outcomes, err := s.runner.SyncCycle(ctx, sources)
	if err != nil {
		telemetry.SyncCycles.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("feed sync cycle failed")
		return
	}

	telemetry.SyncCycles.WithLabelValues("ok").Inc()
	for _, o := range outcomes {
		log.Info().Str("source", o.Source).Int("accepted", o.Accepted).
			Strs("errors", o.Errors).Msg("feed sync outcome")
	}
}
