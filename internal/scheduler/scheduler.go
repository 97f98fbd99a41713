package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	"github.com/vikarapp/vikar-api/pkg/config"
)

// Trigger names recorded on timer invocations.
const (
	TriggerActivation          = "activation-sweep"
	TriggerDeactivationNightly = "deactivation-sweep-nightly"
	TriggerDeactivationWindow  = "deactivation-sweep-window"
)

type lifecycleEngine interface {
	Activate(ctx context.Context, inv models.Invocation, onlyFirst bool) (*service.SweepResult, error)
	Deactivate(ctx context.Context, inv models.Invocation) (*service.SweepResult, error)
}

// Scheduler drives the lifecycle sweeps on timers: activation on a fixed
// interval, deactivation once nightly plus repeatedly inside the night
// window. Sweeps are idempotent, so overlapping triggers converge to the same
// state.
type Scheduler struct {
	cfg    config.SchedulerConfig
	engine lifecycleEngine
	logger *zap.Logger

	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	lastNightly time.Time
	lastWindow  time.Time
}

// New constructs a Scheduler.
func New(cfg config.SchedulerConfig, engine lifecycleEngine, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the trigger loop. It returns immediately; sweeps run in a
// background goroutine until Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Disabled {
		s.logger.Warn("scheduler disabled, lifecycle sweeps will not run")
		close(s.done)
		return
	}

	go s.run(ctx)
	s.logger.Info("scheduler started",
		zap.Duration("activation_interval", s.cfg.ActivationInterval),
		zap.Int("deactivation_hour", s.cfg.DeactivationHour),
		zap.Int("window_start_hour", s.cfg.WindowStartHour),
		zap.Int("window_end_hour", s.cfg.WindowEndHour))
}

// Stop halts the trigger loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	activation := time.NewTicker(s.cfg.ActivationInterval)
	defer activation.Stop()

	// The deactivation triggers are clock-driven, so they are evaluated on a
	// short fixed cadence instead of their own tickers.
	clock := time.NewTicker(time.Minute)
	defer clock.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-activation.C:
			s.runActivation(ctx)
		case <-clock.C:
			s.evaluateDeactivation(ctx)
		}
	}
}

func (s *Scheduler) runActivation(ctx context.Context) {
	inv := models.NewTimerInvocation(uuid.NewString(), TriggerActivation)
	result, err := s.engine.Activate(ctx, inv, false)
	if err != nil {
		s.logger.Error("activation sweep failed", zap.Error(err))
		return
	}
	if result.Processed > 0 {
		s.logger.Info("activation sweep completed",
			zap.Int("processed", result.Processed),
			zap.Int("activated", result.Transitions),
			zap.Int("failed", result.Failed))
	}
}

// evaluateDeactivation fires the nightly sweep once per day at the configured
// hour and the window sweep on its interval while inside the night window.
func (s *Scheduler) evaluateDeactivation(ctx context.Context) {
	now := s.now()

	if now.Hour() == s.cfg.DeactivationHour && !sameDay(now, s.lastNightly) {
		s.lastNightly = now
		s.runDeactivation(ctx, TriggerDeactivationNightly)
		return
	}

	if inWindow(now.Hour(), s.cfg.WindowStartHour, s.cfg.WindowEndHour) &&
		now.Sub(s.lastWindow) >= s.cfg.WindowInterval {
		s.lastWindow = now
		s.runDeactivation(ctx, TriggerDeactivationWindow)
	}
}

func (s *Scheduler) runDeactivation(ctx context.Context, trigger string) {
	inv := models.NewTimerInvocation(uuid.NewString(), trigger)
	result, err := s.engine.Deactivate(ctx, inv)
	if err != nil {
		s.logger.Error("deactivation sweep failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if result.Processed > 0 {
		s.logger.Info("deactivation sweep completed",
			zap.String("trigger", trigger),
			zap.Int("processed", result.Processed),
			zap.Int("expired", result.Transitions),
			zap.Int("failed", result.Failed))
	}
}

// inWindow reports whether hour falls inside [start, end), a window that may
// wrap past midnight.
func inWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
