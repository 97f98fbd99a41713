package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

// Display names with this prefix mark a team as rolled over to a previous
// school year; they are not valid substitution targets.
const expiredTeamPrefix = "exp"

type teacherDirectory interface {
	GetUser(ctx context.Context, upn string) (*models.DirectoryUser, error)
	SearchUsersInGroup(ctx context.Context, searchTerm, groupID string) ([]models.DirectoryUser, error)
	GetOwnedObjects(ctx context.Context, upn string) ([]models.DirectoryObject, error)
}

type permittedLocationResolver interface {
	PermittedLocations(ctx context.Context, schoolName string) ([]models.Location, error)
}

// TeacherService answers teacher search and teacher-team queries against the
// directory, gated by permitted locations for non-administrators.
type TeacherService struct {
	directory     teacherDirectory
	locations     permittedLocationResolver
	searchGroupID string
	logger        *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(directory teacherDirectory, locations permittedLocationResolver, searchGroupID string, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		directory:     directory,
		locations:     locations,
		searchGroupID: searchGroupID,
		logger:        logger,
	}
}

// Search looks up teachers by display name within the scoped population
// group. Non-administrators only see principals in their permitted
// locations, and themselves only when returnSelf is set.
func (s *TeacherService) Search(ctx context.Context, requestor *models.Requestor, searchTerm string, returnSelf bool) ([]models.DirectoryUser, error) {
	if s.searchGroupID == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "no search group configured")
	}
	if strings.TrimSpace(searchTerm) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no search term provided")
	}

	users, err := s.directory.SearchUsersInGroup(ctx, searchTerm, s.searchGroupID)
	if err != nil {
		return nil, err
	}

	if !returnSelf {
		filtered := users[:0]
		for _, user := range users {
			if !strings.EqualFold(user.UserPrincipalName, requestor.UPN) {
				filtered = append(filtered, user)
			}
		}
		users = filtered
	}

	if requestor.IsAdmin() {
		return users, nil
	}

	permitted, err := s.locations.PermittedLocations(ctx, requestor.Company)
	if err != nil || len(permitted) == 0 {
		s.logger.Warn("requestor has no permitted locations", zap.String("upn", requestor.UPN))
		return []models.DirectoryUser{}, nil
	}

	permittedNames := make(map[string]struct{}, len(permitted))
	for _, location := range permitted {
		permittedNames[location.Name] = struct{}{}
	}

	visible := make([]models.DirectoryUser, 0, len(users))
	for _, user := range users {
		if _, ok := permittedNames[user.CompanyName]; ok {
			visible = append(visible, user)
		}
	}
	return visible, nil
}

// Teams returns the class teams a teacher owns: group resources whose
// routing address carries the section prefix and whose display name has not
// been rolled over.
func (s *TeacherService) Teams(ctx context.Context, requestor *models.Requestor, upn string) ([]models.DirectoryObject, error) {
	if strings.TrimSpace(upn) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no teacher address provided")
	}

	if !requestor.IsAdmin() {
		teacher, err := s.directory.GetUser(ctx, upn)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found with upn "+upn)
		}
		if teacher.CompanyName == "" {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "could not determine the organizational unit for "+upn)
		}

		permitted, err := s.locations.PermittedLocations(ctx, requestor.Company)
		if err != nil {
			return nil, err
		}
		allowed := false
		for _, location := range permitted {
			if location.Name == teacher.CompanyName {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not permitted to view teams for "+upn)
		}
	}

	owned, err := s.directory.GetOwnedObjects(ctx, upn)
	if err != nil {
		return nil, err
	}

	teams := make([]models.DirectoryObject, 0, len(owned))
	for _, object := range owned {
		if !object.IsClassTeam() {
			continue
		}
		if strings.HasPrefix(strings.ToLower(object.DisplayName), expiredTeamPrefix) {
			continue
		}
		teams = append(teams, object)
	}
	return teams, nil
}
