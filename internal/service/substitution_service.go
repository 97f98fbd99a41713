package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/repository"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

type substitutionRepository interface {
	Find(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error)
	FindPending(ctx context.Context) ([]models.Substitution, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]models.Substitution, error)
	Insert(ctx context.Context, sub *models.Substitution) error
	Renew(ctx context.Context, id string, expiration time.Time, resetToPending bool) error
	SetStatus(ctx context.Context, id, status string) error
}

type reconcileDirectory interface {
	GetUser(ctx context.Context, upn string) (*models.DirectoryUser, error)
	GetOwnedObjects(ctx context.Context, upn string) ([]models.DirectoryObject, error)
	GetGroupOwners(ctx context.Context, groupID string) ([]models.DirectoryUser, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]models.DirectoryUser, error)
	AddGroupOwner(ctx context.Context, groupID, userID string) error
	RemoveGroupOwner(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}

type auditSink interface {
	TryRecord(ctx context.Context, inv models.Invocation, entryType, message string, data interface{})
}

type statsSink interface {
	Publish(ctx context.Context, teamID, status, description string)
}

type lifecycleMetrics interface {
	CountTransition(transition string)
	ObserveSweep(sweep string, duration time.Duration)
	CountSweepFailure(sweep string)
}

type directoryUserCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SubstitutionEntry is one requested grant in a batch.
type SubstitutionEntry struct {
	TeacherUPN    string `json:"teacherUpn" validate:"required,contains=@"`
	SubstituteUPN string `json:"substituteUpn" validate:"required,contains=@"`
	TeamID        string `json:"teamId" validate:"required"`
}

// CreateBatchRequest carries the entries of one substitution request. Every
// entry in the batch shares the same computed expiration.
type CreateBatchRequest struct {
	Substitutions []SubstitutionEntry `json:"substitutions" validate:"required,min=1,dive"`
}

// SubstitutionService owns the substitution lifecycle: batch intake with
// directory validation, the activation and deactivation sweeps, and queries.
// It is the only component that mutates record status.
type SubstitutionService struct {
	repo      substitutionRepository
	directory reconcileDirectory
	locations permittedLocationResolver
	audit     auditSink
	stats     statsSink
	metrics   lifecycleMetrics
	cache     directoryUserCache
	cacheTTL  time.Duration
	validate  *validator.Validate
	logger    *zap.Logger

	expirationOffsetDays int
	expirationHour       int
	now                  func() time.Time
}

// NewSubstitutionService constructs a SubstitutionService.
func NewSubstitutionService(
	repo substitutionRepository,
	directory reconcileDirectory,
	locations permittedLocationResolver,
	audit auditSink,
	stats statsSink,
	metrics lifecycleMetrics,
	cache directoryUserCache,
	cacheTTL time.Duration,
	expirationOffsetDays int,
	expirationHour int,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if expirationOffsetDays <= 0 {
		expirationOffsetDays = 2
	}
	return &SubstitutionService{
		repo:                 repo,
		directory:            directory,
		locations:            locations,
		audit:                audit,
		stats:                stats,
		metrics:              metrics,
		cache:                cache,
		cacheTTL:             cacheTTL,
		validate:             validate,
		logger:               logger,
		expirationOffsetDays: expirationOffsetDays,
		expirationHour:       expirationHour,
		now:                  func() time.Time { return time.Now().UTC() },
	}
}

// CreateBatch validates and persists a batch of substitution requests.
// Validation and authorization gates run for every entry before the first
// insert, so a rejected batch leaves no partial writes. Once persistence
// starts, each entry produces exactly one outcome; a hard persistence
// failure rejects the failing entry and every entry after it, while entries
// already persisted stand.
func (s *SubstitutionService) CreateBatch(ctx context.Context, inv models.Invocation, req CreateBatchRequest) (*models.BatchResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution request")
	}

	requestor := inv.Requestor
	if requestor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no requestor on invocation")
	}

	for _, entry := range req.Substitutions {
		if strings.EqualFold(entry.SubstituteUPN, entry.TeacherUPN) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "substitute and teacher cannot be the same user: "+entry.TeacherUPN)
		}
		if !requestor.IsAdmin() && !strings.EqualFold(entry.SubstituteUPN, requestor.UPN) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "substitutions can only be requested for yourself")
		}
	}

	users, err := s.resolveUsers(ctx, req.Substitutions)
	if err != nil {
		return nil, err
	}

	// Permitted locations come from each substitute's directory profile, not
	// from the requestor's token claims.
	permitted := make(map[string]map[string]struct{})
	if !requestor.IsAdmin() {
		for _, entry := range req.Substitutions {
			key := strings.ToLower(entry.SubstituteUPN)
			if _, ok := permitted[key]; ok {
				continue
			}
			set, err := s.permittedLocationsFor(ctx, users[key])
			if err != nil {
				return nil, err
			}
			permitted[key] = set
		}
	}

	// Ownership lookups are cached per teacher so a batch covering several
	// teams of one teacher resolves the directory once.
	ownedByTeacher := make(map[string][]models.DirectoryObject)

	// Every gate runs before the first insert.
	teams := make([]*models.DirectoryObject, len(req.Substitutions))
	for i, entry := range req.Substitutions {
		teacher := users[strings.ToLower(entry.TeacherUPN)]

		if set, ok := permitted[strings.ToLower(entry.SubstituteUPN)]; ok {
			if _, allowed := set[teacher.CompanyName]; !allowed {
				return nil, appErrors.Clone(appErrors.ErrForbidden, entry.SubstituteUPN+" is not permitted to substitute for "+entry.TeacherUPN)
			}
		}

		team, err := s.verifyTeamOwnership(ctx, teacher, entry.TeamID, ownedByTeacher)
		if err != nil {
			return nil, err
		}
		teams[i] = team
	}

	expiration := s.computeExpiration()
	result := &models.BatchResult{Entries: make([]models.EntryResult, 0, len(req.Substitutions))}

	for i, entry := range req.Substitutions {
		teacher := users[strings.ToLower(entry.TeacherUPN)]
		substitute := users[strings.ToLower(entry.SubstituteUPN)]

		entryResult, err := s.applyEntry(ctx, teacher, substitute, teams[i], expiration)
		if err != nil {
			// Persistence has started; reject this entry and everything
			// after it, leaving already-applied entries in place.
			s.logger.Error("batch entry failed", zap.String("teacher", entry.TeacherUPN), zap.String("team", entry.TeamID), zap.Error(err))
			result.Entries = append(result.Entries, models.EntryResult{Outcome: models.OutcomeRejected, Error: err.Error()})
			for range req.Substitutions[len(result.Entries):] {
				result.Entries = append(result.Entries, models.EntryResult{Outcome: models.OutcomeRejected, Error: "not processed: batch aborted"})
			}
			s.audit.TryRecord(ctx, inv, models.AuditTypeError, "substitution batch aborted", result)
			return result, appErrors.FromError(err)
		}
		result.Entries = append(result.Entries, entryResult)
	}

	s.audit.TryRecord(ctx, inv, models.AuditTypeInfo, "substitution batch processed", result)
	return result, nil
}

// List returns substitution records matching the filter. Non-administrators
// only see records where they are the teacher or the substitute.
func (s *SubstitutionService) List(ctx context.Context, requestor *models.Requestor, filter models.SubstitutionFilter) ([]models.Substitution, error) {
	if !requestor.IsAdmin() {
		if filter.TeacherUPN == "" && filter.SubstituteUPN == "" {
			filter.TeacherUPN = requestor.UPN
		} else {
			if filter.TeacherUPN != "" && !strings.EqualFold(filter.TeacherUPN, requestor.UPN) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only query your own substitutions")
			}
			if filter.SubstituteUPN != "" && !strings.EqualFold(filter.SubstituteUPN, requestor.UPN) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only query your own substitutions")
			}
		}
	}

	subs, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list substitutions")
	}
	return subs, nil
}

// resolveUsers looks up every distinct principal in the batch once. Any
// unresolvable address rejects the batch.
func (s *SubstitutionService) resolveUsers(ctx context.Context, entries []SubstitutionEntry) (map[string]*models.DirectoryUser, error) {
	users := make(map[string]*models.DirectoryUser)
	for _, entry := range entries {
		for _, upn := range []string{entry.TeacherUPN, entry.SubstituteUPN} {
			key := strings.ToLower(upn)
			if _, ok := users[key]; ok {
				continue
			}
			user, err := s.lookupUser(ctx, upn)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "user not found with upn "+upn)
			}
			users[key] = user
		}
	}
	return users, nil
}

func (s *SubstitutionService) lookupUser(ctx context.Context, upn string) (*models.DirectoryUser, error) {
	cacheKey := repository.CacheKeyDirectoryUser + strings.ToLower(upn)
	if s.cache != nil {
		var cached models.DirectoryUser
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.directory.GetUser(ctx, upn)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, user, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache directory user", zap.String("upn", upn), zap.Error(err))
		}
	}
	return user, nil
}

// permittedLocationsFor resolves the school names the substitute may work
// at from the substitute's organizational unit. An empty set rejects the
// substitute outright.
func (s *SubstitutionService) permittedLocationsFor(ctx context.Context, substitute *models.DirectoryUser) (map[string]struct{}, error) {
	if substitute.CompanyName == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "could not determine the organizational unit for "+substitute.UserPrincipalName)
	}
	locations, err := s.locations.PermittedLocations(ctx, substitute.CompanyName)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "substitute "+substitute.UserPrincipalName+" does not have any permitted locations")
	}
	set := make(map[string]struct{}, len(locations))
	for _, location := range locations {
		set[location.Name] = struct{}{}
	}
	return set, nil
}

// verifyTeamOwnership confirms the teacher owns the requested team and that
// the team is a class team.
func (s *SubstitutionService) verifyTeamOwnership(ctx context.Context, teacher *models.DirectoryUser, teamID string, ownedByTeacher map[string][]models.DirectoryObject) (*models.DirectoryObject, error) {
	key := strings.ToLower(teacher.UserPrincipalName)
	owned, ok := ownedByTeacher[key]
	if !ok {
		var err error
		owned, err = s.directory.GetOwnedObjects(ctx, teacher.UserPrincipalName)
		if err != nil {
			return nil, err
		}
		ownedByTeacher[key] = owned
	}

	for i := range owned {
		object := owned[i]
		if object.ID != teamID {
			continue
		}
		if !object.IsGroup() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "resource "+teamID+" is not a group")
		}
		if !object.IsClassTeam() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group "+teamID+" is not a class team")
		}
		return &object, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, teacher.UserPrincipalName+" does not own team "+teamID)
}

// applyEntry routes one entry to create or renew based on the existing record
// for the (teacher, substitute, team) triple.
func (s *SubstitutionService) applyEntry(ctx context.Context, teacher, substitute *models.DirectoryUser, team *models.DirectoryObject, expiration time.Time) (models.EntryResult, error) {
	existing, err := s.findExisting(ctx, teacher.UserPrincipalName, substitute.UserPrincipalName, team.ID)
	if err != nil {
		return models.EntryResult{}, err
	}

	if existing == nil {
		return s.createEntry(ctx, teacher, substitute, team, expiration)
	}

	resetToPending := existing.Status == models.StatusExpired
	if err := s.repo.Renew(ctx, existing.ID, expiration, resetToPending); err != nil {
		return models.EntryResult{}, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to renew substitution")
	}
	existing.ExpirationAt = expiration
	existing.RenewalCount++

	outcome := models.OutcomeRenewed
	if resetToPending {
		outcome = models.OutcomeRenewedExpired
		existing.Status = models.StatusPending
		// Re-grant straight away; the activation sweep covers any failure.
		if err := s.activateRecord(ctx, existing); err != nil {
			s.logger.Warn("immediate re-activation failed, record stays pending",
				zap.String("id", existing.ID), zap.Error(err))
		}
	}
	s.metrics.CountTransition(outcome)
	return models.EntryResult{Outcome: outcome, Substitution: existing}, nil
}

func (s *SubstitutionService) createEntry(ctx context.Context, teacher, substitute *models.DirectoryUser, team *models.DirectoryObject, expiration time.Time) (models.EntryResult, error) {
	sub := &models.Substitution{
		Status:         models.StatusPending,
		TeacherID:      teacher.ID,
		TeacherName:    teacher.DisplayName,
		TeacherUPN:     teacher.UserPrincipalName,
		SubstituteID:   substitute.ID,
		SubstituteName: substitute.DisplayName,
		SubstituteUPN:  substitute.UserPrincipalName,
		TeamID:         team.ID,
		TeamName:       team.DisplayName,
		TeamEmail:      team.Mail,
		TeamSDSID:      team.SDSID(),
		ExpirationAt:   expiration,
	}
	if err := s.repo.Insert(ctx, sub); err != nil {
		return models.EntryResult{}, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create substitution")
	}
	s.metrics.CountTransition(models.OutcomeCreated)

	// Grant ownership immediately so the substitute does not wait for the
	// next sweep. On failure the record stays pending and the sweep retries.
	if err := s.activateRecord(ctx, sub); err != nil {
		s.logger.Warn("immediate activation failed, record stays pending",
			zap.String("id", sub.ID), zap.Error(err))
	}
	return models.EntryResult{Outcome: models.OutcomeCreated, Substitution: sub}, nil
}

// findExisting returns the record for the triple, preferring an active one
// over an expired one when history holds both.
func (s *SubstitutionService) findExisting(ctx context.Context, teacherUPN, substituteUPN, teamID string) (*models.Substitution, error) {
	subs, err := s.repo.Find(ctx, models.SubstitutionFilter{
		TeacherUPN:    teacherUPN,
		SubstituteUPN: substituteUPN,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to look up existing substitution")
	}

	var fallback *models.Substitution
	for i := range subs {
		if subs[i].TeamID != teamID {
			continue
		}
		switch subs[i].Status {
		case models.StatusActive, models.StatusPending:
			return &subs[i], nil
		case models.StatusExpired:
			if fallback == nil {
				fallback = &subs[i]
			}
		}
	}
	return fallback, nil
}

// computeExpiration returns the batch-wide expiration: offsetDays from now at
// the configured hour, in UTC.
func (s *SubstitutionService) computeExpiration() time.Time {
	day := s.now().AddDate(0, 0, s.expirationOffsetDays)
	return time.Date(day.Year(), day.Month(), day.Day(), s.expirationHour, 0, 0, 0, time.UTC)
}

// describe renders the stats description for a record.
func describe(sub *models.Substitution) string {
	return fmt.Sprintf("%s substitutes for %s in %s", sub.SubstituteUPN, sub.TeacherUPN, sub.TeamName)
}
