package models

import "time"

// Substitution statuses. Status governs which lifecycle operations are legal
// for a record.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Substitution grants a substitute temporary ownership of a teacher's class
// team. Records are created pending, activated by the sweep and expired once
// the expiration timestamp elapses; they are never deleted by this service.
type Substitution struct {
	ID             string    `db:"id" json:"id"`
	Status         string    `db:"status" json:"status"`
	TeacherID      string    `db:"teacher_id" json:"teacherId"`
	TeacherName    string    `db:"teacher_name" json:"teacherName"`
	TeacherUPN     string    `db:"teacher_upn" json:"teacherUpn"`
	SubstituteID   string    `db:"substitute_id" json:"substituteId"`
	SubstituteName string    `db:"substitute_name" json:"substituteName"`
	SubstituteUPN  string    `db:"substitute_upn" json:"substituteUpn"`
	TeamID         string    `db:"team_id" json:"teamId"`
	TeamName       string    `db:"team_name" json:"teamName"`
	TeamEmail      string    `db:"team_email" json:"teamEmail"`
	TeamSDSID      string    `db:"team_sds_id" json:"teamSdsId"`
	RenewalCount   int       `db:"renewal_count" json:"substitutionUpdated"`
	ExpirationAt   time.Time `db:"expiration_at" json:"expirationTimestamp"`
	CreatedAt      time.Time `db:"created_at" json:"createdTimestamp"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedTimestamp"`
}

// SubstitutionFilter narrows substitution queries. Zero values are ignored;
// the repository composes the remaining predicates with AND, and the year
// ranges with OR.
type SubstitutionFilter struct {
	Status        string
	TeacherUPN    string
	SubstituteUPN string
	IDs           []string
	Years         []int
}

// Entry outcomes for one requested substitution. Exactly one outcome is
// produced per entry.
const (
	OutcomeCreated        = "created"
	OutcomeRenewed        = "renewed"
	OutcomeRenewedExpired = "renewed-expired"
	OutcomeRejected       = "rejected"
)

// EntryResult reports what happened to a single batch entry.
type EntryResult struct {
	Outcome      string        `json:"outcome"`
	Substitution *Substitution `json:"substitution,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// BatchResult aggregates the per-entry results of one substitution request.
type BatchResult struct {
	Entries []EntryResult `json:"entries"`
}

// Rejected reports whether any entry in the batch failed.
func (b BatchResult) Rejected() bool {
	for _, e := range b.Entries {
		if e.Outcome == OutcomeRejected {
			return true
		}
	}
	return false
}
