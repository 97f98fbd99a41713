package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

// Sweep names used for metrics and audit messages.
const (
	SweepActivation   = "activation"
	SweepDeactivation = "deactivation"
)

// SweepResult summarises one pass of a lifecycle sweep. Failed records stay
// in their current state and are retried on the next pass.
type SweepResult struct {
	Sweep       string   `json:"sweep"`
	Processed   int      `json:"processed"`
	Transitions int      `json:"transitions"`
	Failed      int      `json:"failed"`
	RecordIDs   []string `json:"recordIds,omitempty"`
}

// Activate grants ownership for pending records and marks them active. When
// onlyFirst is set the sweep stops after the first record, processed or not;
// full passes go through every pending record with per-record failure
// containment.
func (s *SubstitutionService) Activate(ctx context.Context, inv models.Invocation, onlyFirst bool) (*SweepResult, error) {
	started := s.now()
	result := &SweepResult{Sweep: SweepActivation}

	pending, err := s.repo.FindPending(ctx)
	if err != nil {
		s.metrics.CountSweepFailure(SweepActivation)
		wrapped := appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load pending substitutions")
		s.audit.TryRecord(ctx, inv, models.AuditTypeError, "activation sweep failed", nil)
		return nil, wrapped
	}

	for i := range pending {
		sub := pending[i]
		result.Processed++
		if err := s.activateRecord(ctx, &sub); err != nil {
			result.Failed++
			s.metrics.CountSweepFailure(SweepActivation)
			s.logger.Error("activation failed",
				zap.String("id", sub.ID),
				zap.String("team", sub.TeamID),
				zap.String("substitute", sub.SubstituteUPN),
				zap.Error(err))
		} else {
			result.Transitions++
			result.RecordIDs = append(result.RecordIDs, sub.ID)
		}
		if onlyFirst {
			break
		}
	}

	s.metrics.ObserveSweep(SweepActivation, s.now().Sub(started))
	s.audit.TryRecord(ctx, inv, models.AuditTypeInfo, "activation sweep completed", result)
	return result, nil
}

// activateRecord makes the substitute an owner of the team and marks the
// record active. The ownership grant is idempotent; re-running it for an
// existing owner is a no-op.
func (s *SubstitutionService) activateRecord(ctx context.Context, sub *models.Substitution) error {
	if err := s.directory.AddGroupOwner(ctx, sub.TeamID, sub.SubstituteID); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, sub.ID, models.StatusActive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "ownership granted but status update failed")
	}
	sub.Status = models.StatusActive
	s.metrics.CountTransition("activated")
	s.stats.Publish(ctx, sub.TeamID, models.StatusActive, describe(sub))
	return nil
}

// Deactivate revokes access for active records whose expiration has elapsed
// and marks them expired. Records are marked expired even when the substitute
// no longer holds ownership or membership, so a re-run converges instead of
// failing.
func (s *SubstitutionService) Deactivate(ctx context.Context, inv models.Invocation) (*SweepResult, error) {
	subs, err := s.repo.FindExpiredActive(ctx, s.now())
	if err != nil {
		s.metrics.CountSweepFailure(SweepDeactivation)
		wrapped := appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load expired substitutions")
		s.audit.TryRecord(ctx, inv, models.AuditTypeError, "deactivation sweep failed", nil)
		return nil, wrapped
	}
	return s.deactivate(ctx, inv, subs)
}

// DeactivateByIDs revokes access for the named records regardless of their
// expiration. Records that are already expired are converged again.
func (s *SubstitutionService) DeactivateByIDs(ctx context.Context, inv models.Invocation, ids []string) (*SweepResult, error) {
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no substitution ids provided")
	}
	subs, err := s.repo.Find(ctx, models.SubstitutionFilter{IDs: ids})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load substitutions")
	}
	if len(subs) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more substitutions were not found")
	}
	return s.deactivate(ctx, inv, subs)
}

func (s *SubstitutionService) deactivate(ctx context.Context, inv models.Invocation, subs []models.Substitution) (*SweepResult, error) {
	started := s.now()
	result := &SweepResult{Sweep: SweepDeactivation}

	for i := range subs {
		sub := subs[i]
		result.Processed++
		transitioned, err := s.deactivateRecord(ctx, &sub)
		if err != nil {
			result.Failed++
			s.metrics.CountSweepFailure(SweepDeactivation)
			s.logger.Error("deactivation failed",
				zap.String("id", sub.ID),
				zap.String("team", sub.TeamID),
				zap.String("substitute", sub.SubstituteUPN),
				zap.Error(err))
			continue
		}
		if transitioned {
			result.Transitions++
		}
		result.RecordIDs = append(result.RecordIDs, sub.ID)
	}

	s.metrics.ObserveSweep(SweepDeactivation, s.now().Sub(started))
	s.audit.TryRecord(ctx, inv, models.AuditTypeInfo, "deactivation sweep completed", result)
	return result, nil
}

// deactivateRecord removes the substitute's ownership and membership when
// present and marks the record expired either way. It reports whether the
// record actually transitioned; already-expired records converge silently,
// producing no transition and no statistics event.
func (s *SubstitutionService) deactivateRecord(ctx context.Context, sub *models.Substitution) (bool, error) {
	owners, err := s.directory.GetGroupOwners(ctx, sub.TeamID)
	if err != nil {
		return false, err
	}
	if containsUser(owners, sub.SubstituteID) {
		if err := s.directory.RemoveGroupOwner(ctx, sub.TeamID, sub.SubstituteID); err != nil {
			return false, err
		}
	}

	members, err := s.directory.GetGroupMembers(ctx, sub.TeamID)
	if err != nil {
		return false, err
	}
	if containsUser(members, sub.SubstituteID) {
		if err := s.directory.RemoveGroupMember(ctx, sub.TeamID, sub.SubstituteID); err != nil {
			return false, err
		}
	}

	if sub.Status == models.StatusExpired {
		return false, nil
	}
	if err := s.repo.SetStatus(ctx, sub.ID, models.StatusExpired); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "access revoked but status update failed")
	}
	sub.Status = models.StatusExpired
	s.metrics.CountTransition("expired")
	s.stats.Publish(ctx, sub.TeamID, models.StatusExpired, describe(sub))
	return true, nil
}

func containsUser(users []models.DirectoryUser, id string) bool {
	for _, user := range users {
		if strings.EqualFold(user.ID, id) {
			return true
		}
	}
	return false
}
