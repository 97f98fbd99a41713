package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Location identifies an organizational unit a principal may act on behalf
// of.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LocationList is stored as a jsonb column.
type LocationList []Location

// Value implements driver.Valuer.
func (l LocationList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *LocationList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type %T for LocationList", src)
	}
	return json.Unmarshal(raw, l)
}

// School is an organizational unit. PermittedSchools lists the locations this
// school delegates substitute permission to; delegation is asymmetric and
// resolved one level only.
type School struct {
	ID               string       `db:"id" json:"id"`
	Name             string       `db:"name" json:"name"`
	PermittedSchools LocationList `db:"permitted_schools" json:"permittedSchools"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
}
