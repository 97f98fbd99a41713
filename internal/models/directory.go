package models

import "strings"

// GroupODataType marks a directory object as a group.
const GroupODataType = "#microsoft.graph.group"

// ClassTeamMailPrefix marks a group's routing address as a section/class
// team.
const ClassTeamMailPrefix = "section_"

// DirectoryUser is a principal resolved from the external directory.
// OwnedResources and PermittedLocations are request-scoped augmentations,
// never persisted.
type DirectoryUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	Mail              string `json:"mail"`
	CompanyName       string `json:"companyName"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
	OfficeLocation    string `json:"officeLocation"`

	OwnedResources     []DirectoryObject `json:"-"`
	PermittedLocations []Location        `json:"-"`
}

// DirectoryObject is a resource (typically a group) owned by a principal.
type DirectoryObject struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
	Description string `json:"description"`
	ODataType   string `json:"@odata.type"`
}

// IsGroup reports whether the object is a directory group.
func (o DirectoryObject) IsGroup() bool {
	return strings.EqualFold(o.ODataType, GroupODataType)
}

// IsClassTeam reports whether the group's routing address marks it as a
// section/class team.
func (o DirectoryObject) IsClassTeam() bool {
	return strings.HasPrefix(strings.ToLower(o.Mail), ClassTeamMailPrefix)
}

// SDSID derives the school-data-sync id from the team's routing address:
// everything after the first underscore.
func (o DirectoryObject) SDSID() string {
	if idx := strings.Index(o.Mail, "_"); idx >= 0 {
		return o.Mail[idx+1:]
	}
	return o.Mail
}
