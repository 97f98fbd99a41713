package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/pkg/config"
	"github.com/vikarapp/vikar-api/pkg/jobs"
)

// StatEvent is the payload posted to the external statistics collector.
type StatEvent struct {
	System      string `json:"system"`
	Engine      string `json:"engine"`
	County      string `json:"county"`
	Company     string `json:"company"`
	Department  string `json:"department"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Type        string `json:"type"`
}

// StatsService delivers lifecycle outcomes to the statistics endpoint
// through a background queue. Delivery is best-effort: failed posts are
// retried a few times and then dropped with a log entry, never surfaced to
// the lifecycle operation that produced them.
type StatsService struct {
	cfg    config.StatisticsConfig
	http   *http.Client
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewStatsService constructs a StatsService. Call Start before publishing.
func NewStatsService(cfg config.StatisticsConfig, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatsService{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	s.queue = jobs.NewQueue("statistics", s.deliver, jobs.Options{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery worker.
func (s *StatsService) Start(ctx context.Context) {
	if s.cfg.URL == "" {
		s.logger.Info("statistics collector not configured, events will be dropped")
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the delivery worker.
func (s *StatsService) Stop() {
	if s.cfg.URL == "" {
		return
	}
	s.queue.Stop()
}

// Publish enqueues one statistics event for a substitution transition,
// identified by the affected team.
func (s *StatsService) Publish(_ context.Context, teamID, status, description string) {
	if s.cfg.URL == "" {
		return
	}

	event := StatEvent{
		System:      "VikarApp",
		Engine:      "vikar-api",
		County:      s.cfg.County,
		Company:     s.cfg.Company,
		Department:  teamID,
		Description: description,
		Status:      status,
		Type:        "VikarApp",
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "stat-event",
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("enqueue statistics event failed", zap.String("team_id", teamID), zap.Error(err))
	}
}

func (s *StatsService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(StatEvent)
	if !ok {
		s.logger.Warn("dropping malformed statistics job", zap.String("job_id", job.ID))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("encode statistics event failed", zap.Error(err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/Stats", s.cfg.URL), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build statistics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-functions-key", s.cfg.Key)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post statistics event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statistics collector returned status %d", resp.StatusCode)
	}
	s.logger.Debug("statistics event published", zap.String("department", event.Department), zap.String("status", event.Status))
	return nil
}
