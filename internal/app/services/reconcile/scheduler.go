package reconcile

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/oysy/walletcore/internal/app/system"
	"github.com/oysy/walletcore/pkg/logger"
)

var _ system.Service = (*Scheduler)(nil)

// Scheduler runs periodic silent reconciliation passes. The engine itself
// never checks connectivity, so the scheduler skips ticks while the process
// is offline; every other caller carries the same responsibility.
type Scheduler struct {
	engine   *Engine
	offline  func() bool
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a lifecycle-managed reconcile scheduler. schedule is
// a cron spec ("@every 2m" style).
func NewScheduler(engine *Engine, offline func() bool, schedule string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("reconcile-scheduler")
	}
	if schedule == "" {
		schedule = "@every 2m"
	}
	return &Scheduler{
		engine:   engine,
		offline:  offline,
		schedule: schedule,
		log:      log,
	}
}

func (s *Scheduler) Name() string { return "reconcile-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.tick(runCtx) }); err != nil {
		cancel()
		return err
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("reconcile scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	cancel()
	done := c.Stop().Done()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("reconcile scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.offline != nil && s.offline() {
		s.log.Debug("offline; skipping scheduled reconcile")
		return
	}
	s.engine.Reconcile(ctx, Options{Silent: true})
}
