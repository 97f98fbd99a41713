package service

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/pkg/config"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

type directoryUserLookup interface {
	GetUser(ctx context.Context, upn string) (*models.DirectoryUser, error)
}

// AuthService validates incoming bearer tokens and builds the requestor
// profile for the invocation.
type AuthService struct {
	cfg       config.AuthConfig
	directory directoryUserLookup
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(cfg config.AuthConfig, directory directoryUserLookup, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{cfg: cfg, directory: directory, logger: logger}
}

// ValidateToken parses and verifies a bearer token.
func (s *AuthService) ValidateToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if s.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(s.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, options...)
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "the token is invalid")
	}
	return claims, nil
}

// Requestor builds the acting principal from validated claims. Profile
// attributes the token does not carry are backfilled from the directory.
func (s *AuthService) Requestor(ctx context.Context, claims *models.JWTClaims) (*models.Requestor, error) {
	requestor := &models.Requestor{
		ID:         claims.ObjectID,
		UPN:        claims.UPN,
		Name:       claims.Name,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Roles:      claims.Roles,
	}
	if requestor.Roles == nil {
		requestor.Roles = []string{}
	}
	if claims.Scope != "" {
		requestor.Scopes = strings.Split(claims.Scope, " ")
	}

	if requestor.Company == "" && s.directory != nil && requestor.UPN != "" {
		profile, err := s.directory.GetUser(ctx, requestor.UPN)
		if err != nil {
			s.logger.Warn("requestor profile backfill failed", zap.String("upn", requestor.UPN), zap.Error(err))
			return requestor, nil
		}
		requestor.JobTitle = profile.JobTitle
		requestor.Department = profile.Department
		requestor.OfficeLocation = profile.OfficeLocation
		requestor.Company = profile.CompanyName
	}

	return requestor, nil
}
