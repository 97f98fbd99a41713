package models

import "github.com/golang-jwt/jwt/v5"

// Application roles carried in token claims.
const (
	RoleAdmin  = "App.Admin"
	RoleConfig = "App.Config"
)

// JWTClaims represents the bearer token payload issued by the identity
// provider.
type JWTClaims struct {
	UPN        string   `json:"upn"`
	Name       string   `json:"name"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Roles      []string `json:"roles"`
	Scope      string   `json:"scp"`
	ObjectID   string   `json:"oid"`
	jwt.RegisteredClaims
}

// Requestor is the acting principal of an invocation, built from validated
// token claims and backfilled from the directory when the token lacks
// profile attributes.
type Requestor struct {
	ID             string   `json:"id"`
	UPN            string   `json:"upn"`
	Name           string   `json:"name"`
	GivenName      string   `json:"givenName"`
	FamilyName     string   `json:"familyName"`
	JobTitle       string   `json:"jobTitle"`
	Department     string   `json:"department"`
	OfficeLocation string   `json:"officeLocation"`
	Company        string   `json:"company"`
	Roles          []string `json:"roles"`
	Scopes         []string `json:"scopes"`
	IP             string   `json:"-"`
}

// HasRole reports whether the requestor carries the given application role.
func (r *Requestor) HasRole(role string) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the requestor holds the administrative capability.
func (r *Requestor) IsAdmin() bool {
	return r.HasRole(RoleAdmin)
}
