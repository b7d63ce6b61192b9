package backend

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/runnerr0/listkeeper/internal/logger"
)

// Reconciler applies a fetched payload to the local lists.
type Reconciler interface {
	Reconcile(ctx context.Context, p *Payload) error
}

// SyncerConfig controls the sync schedule.
type SyncerConfig struct {
	Interval       time.Duration // base sync interval; zero disables periodic syncs
	InitialBackoff time.Duration // first retry delay after a failure
	MaxBackoff     time.Duration // retry delay cap
	Timeout        time.Duration // limit for one fetch + reconcile
}

// SyncStatus is a snapshot of the syncer's progress.
type SyncStatus struct {
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
}

// Syncer periodically fetches the backend payload and reconciles it. A sync
// can also be requested at any time with Trigger.
type Syncer struct {
	cfg        SyncerConfig
	fetcher    Fetcher
	reconciler Reconciler
	logger     logger.Logger

	trigger  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	status SyncStatus
}

// NewSyncer creates a Syncer. Missing backoff and timeout values get defaults.
func NewSyncer(cfg SyncerConfig, f Fetcher, r Reconciler, log logger.Logger) *Syncer {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Syncer{
		cfg:        cfg,
		fetcher:    f,
		reconciler: r,
		logger:     log,
		trigger:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Run syncs immediately, then on every tick and manual trigger until ctx is
// done or Stop is called. Failed syncs are retried with exponential backoff.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Warn("initial sync failed", logger.Error(err))
	} else {
		s.logger.Info("initial sync succeeded")
	}

	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped", logger.Error(ctx.Err()))
			return nil
		case <-s.stopCh:
			s.logger.Info("syncer stopped")
			return nil
		case <-tick:
		case <-s.trigger:
			s.logger.Info("manual sync triggered")
		}

		if err := s.SyncOnce(ctx); err != nil {
			failures++
			backoff := calcBackoff(s.cfg.InitialBackoff, s.cfg.MaxBackoff, failures)
			s.logger.Warn("sync failed",
				logger.Int("attempt", failures),
				logger.Duration("backoff", backoff),
				logger.Error(err))

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-s.stopCh:
				timer.Stop()
				return nil
			case <-timer.C:
			}
			// Retry right away instead of waiting for the next tick.
			s.Trigger()
			continue
		}

		if failures > 0 {
			s.logger.Info("sync recovered", logger.Int("failures", failures))
		}
		failures = 0
	}
}

// Trigger requests a sync. It never blocks; it returns false when a request
// is already pending.
func (s *Syncer) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop ends Run. It is safe to call more than once.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Status returns a copy of the current sync status.
func (s *Syncer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SyncOnce fetches and reconciles the payload a single time.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	started := time.Now()
	err := s.syncOnce(ctx)

	s.mu.Lock()
	s.status.LastAttempt = started
	if err != nil {
		s.status.LastError = err.Error()
		s.status.ConsecutiveFailures++
	} else {
		s.status.LastSuccess = started
		s.status.LastError = ""
		s.status.ConsecutiveFailures = 0
	}
	s.mu.Unlock()

	return err
}

func (s *Syncer) syncOnce(ctx context.Context) error {
	p, err := s.fetcher.FetchPayload(ctx)
	if err != nil {
		return fmt.Errorf("fetch payload: %w", err)
	}
	for _, w := range p.Warnings {
		s.logger.Warn("payload value skipped", logger.String("reason", w))
	}
	if err := s.reconciler.Reconcile(ctx, p); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

func calcBackoff(initial, max time.Duration, failures int) time.Duration {
	pow := math.Pow(2, float64(failures-1))
	backoff := time.Duration(float64(initial) * pow)
	if backoff > max || backoff <= 0 {
		backoff = max
	}

	// Add jitter to avoid synchronized retries
	jitterFrac := 0.2
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(backoff)) -
		time.Duration(jitterFrac*float64(backoff))

	return backoff + jitter
}
