package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

type auditRepository interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// AuditService appends lifecycle outcomes to the audit log. Writes are
// best-effort: a failure is returned as an AUDIT_ERROR which callers log and
// swallow so it never aborts the operation that triggered it.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one audit entry derived from the invocation context.
func (s *AuditService) Record(ctx context.Context, inv models.Invocation, entryType, message string, data interface{}) error {
	entry := &models.AuditEntry{
		Type:      entryType,
		Message:   message,
		SessionID: inv.ID,
		Origin:    inv.Origin,
		Method:    inv.Method,
		Endpoint:  inv.Endpoint,
		URL:       inv.URL,
		StartedAt: inv.StartedAt,
		EndedAt:   time.Now().UTC(),
	}
	if entry.SessionID == "" {
		entry.SessionID = "unknown"
	}
	if entry.Endpoint == "" {
		entry.Endpoint = "unknown"
	}
	if !entry.StartedAt.IsZero() {
		entry.DurationMS = entry.EndedAt.Sub(entry.StartedAt).Milliseconds()
	}

	if inv.Requestor != nil {
		if raw, err := json.Marshal(inv.Requestor); err == nil {
			entry.Requestor = raw
		}
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			entry.Data = raw
		}
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrAudit.Code, appErrors.ErrAudit.Status, "failed to write audit entry")
	}
	return nil
}

// TryRecord is Record with the swallow applied: the failure is logged here
// and never returned.
func (s *AuditService) TryRecord(ctx context.Context, inv models.Invocation, entryType, message string, data interface{}) {
	if err := s.Record(ctx, inv, entryType, message, data); err != nil {
		s.logger.Warn("audit write failed", zap.String("endpoint", inv.Endpoint), zap.Error(err))
	}
}

// List returns audit entries within the time range.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list audit entries")
	}
	return entries, nil
}
