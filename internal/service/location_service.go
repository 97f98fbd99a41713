package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/repository"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context) ([]models.School, error)
	FindByName(ctx context.Context, name string) (*models.School, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	ReplaceDelegations(ctx context.Context, id string, locations models.LocationList) error
}

type locationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// CreateSchoolRequest is the payload for registering a school.
type CreateSchoolRequest struct {
	Name             string            `json:"name" validate:"required"`
	PermittedSchools []models.Location `json:"permittedSchools" validate:"omitempty,dive"`
}

// LocationService resolves the set of locations an organizational unit may
// act upon and manages the school records behind it.
type LocationService struct {
	repo      schoolRepository
	cache     locationCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLocationService constructs a LocationService.
func NewLocationService(repo schoolRepository, cache locationCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *LocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// PermittedLocations returns the school's own identity plus every location
// in its delegation set, flattened one level. No transitive closure is
// resolved.
func (s *LocationService) PermittedLocations(ctx context.Context, schoolName string) ([]models.Location, error) {
	schoolName = strings.TrimSpace(schoolName)
	if schoolName == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
	}

	cacheKey := repository.CacheKeyLocations + strings.ToLower(schoolName)
	if s.cache != nil {
		var cached []models.Location
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	school, err := s.repo.FindByName(ctx, schoolName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load school")
	}

	locations := make([]models.Location, 0, len(school.PermittedSchools)+1)
	locations = append(locations, models.Location{ID: school.ID, Name: school.Name})
	for _, delegated := range school.PermittedSchools {
		if delegated.ID == "" || delegated.Name == "" {
			continue
		}
		locations = append(locations, delegated)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, locations, s.cacheTTL); err != nil {
			s.logger.Warn("cache permitted locations failed", zap.String("school", schoolName), zap.Error(err))
		}
	}
	return locations, nil
}

// ListSchools returns all registered schools.
func (s *LocationService) ListSchools(ctx context.Context) ([]models.School, error) {
	schools, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list schools")
	}
	return schools, nil
}

// CreateSchool registers a new school.
func (s *LocationService) CreateSchool(ctx context.Context, req CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	school := &models.School{
		Name:             strings.TrimSpace(req.Name),
		PermittedSchools: req.PermittedSchools,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create school")
	}
	return school, nil
}

// ReplaceDelegations overwrites a school's delegation set and drops any
// cached resolutions.
func (s *LocationService) ReplaceDelegations(ctx context.Context, id string, locations []models.Location) (*models.School, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school id is required")
	}

	if err := s.repo.ReplaceDelegations(ctx, id, locations); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update school delegations")
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePrefix(ctx, repository.CacheKeyLocations); err != nil {
			s.logger.Warn("invalidate location cache failed", zap.Error(err))
		}
	}

	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to reload school")
	}
	return school, nil
}
