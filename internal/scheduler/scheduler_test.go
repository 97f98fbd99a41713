package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	"github.com/vikarapp/vikar-api/pkg/config"
)

type recordingEngine struct {
	activations   int
	deactivations []string
}

func (e *recordingEngine) Activate(_ context.Context, _ models.Invocation, _ bool) (*service.SweepResult, error) {
	e.activations++
	return &service.SweepResult{Sweep: service.SweepActivation}, nil
}

func (e *recordingEngine) Deactivate(_ context.Context, inv models.Invocation) (*service.SweepResult, error) {
	e.deactivations = append(e.deactivations, inv.Endpoint)
	return &service.SweepResult{Sweep: service.SweepDeactivation}, nil
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		ActivationInterval: 15 * time.Minute,
		DeactivationHour:   23,
		WindowInterval:     15 * time.Minute,
		WindowStartHour:    22,
		WindowEndHour:      2,
	}
}

func TestInWindowWrapsMidnight(t *testing.T) {
	tests := []struct {
		name  string
		hour  int
		start int
		end   int
		want  bool
	}{
		{"before wrapped window", 21, 22, 2, false},
		{"at wrapped start", 22, 22, 2, true},
		{"after midnight inside", 1, 22, 2, true},
		{"at wrapped end", 2, 22, 2, false},
		{"midday outside", 12, 22, 2, false},
		{"plain window inside", 10, 9, 17, true},
		{"plain window outside", 18, 9, 17, false},
		{"empty window", 22, 22, 22, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inWindow(tt.hour, tt.start, tt.end))
		})
	}
}

func TestNightlySweepFiresOncePerDay(t *testing.T) {
	engine := &recordingEngine{}
	s := New(testConfig(), engine, zap.NewNop())
	now := time.Date(2025, time.September, 1, 23, 0, 30, 0, time.UTC)
	s.now = func() time.Time { return now }
	// Outside the window interval so only the nightly trigger fires.
	s.lastWindow = now

	s.evaluateDeactivation(context.Background())
	s.evaluateDeactivation(context.Background())

	assert.Equal(t, []string{TriggerDeactivationNightly}, engine.deactivations)

	// The next evening fires again.
	now = now.Add(24 * time.Hour)
	s.lastWindow = now
	s.evaluateDeactivation(context.Background())
	assert.Len(t, engine.deactivations, 2)
}

func TestWindowSweepHonorsInterval(t *testing.T) {
	engine := &recordingEngine{}
	s := New(testConfig(), engine, zap.NewNop())
	now := time.Date(2025, time.September, 2, 0, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.evaluateDeactivation(context.Background())
	assert.Equal(t, []string{TriggerDeactivationWindow}, engine.deactivations)

	// Within the interval nothing fires.
	now = now.Add(5 * time.Minute)
	s.evaluateDeactivation(context.Background())
	assert.Len(t, engine.deactivations, 1)

	// Past the interval it fires again.
	now = now.Add(15 * time.Minute)
	s.evaluateDeactivation(context.Background())
	assert.Len(t, engine.deactivations, 2)
}

func TestWindowSweepOutsideWindowDoesNothing(t *testing.T) {
	engine := &recordingEngine{}
	s := New(testConfig(), engine, zap.NewNop())
	s.now = func() time.Time {
		return time.Date(2025, time.September, 2, 12, 0, 0, 0, time.UTC)
	}

	s.evaluateDeactivation(context.Background())
	assert.Empty(t, engine.deactivations)
}

func TestDisabledSchedulerNeverStarts(t *testing.T) {
	cfg := testConfig()
	cfg.Disabled = true
	engine := &recordingEngine{}
	s := New(cfg, engine, zap.NewNop())

	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, engine.activations)
	assert.Empty(t, engine.deactivations)
}
