package models

import (
	"time"

	"github.com/lib/pq"
)

// InstitutionType categorises schools (primary, secondary, higher...).
type InstitutionType struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description *string        `db:"description" json:"description,omitempty"`
	Levels      pq.StringArray `db:"levels" json:"levels"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// InstitutionTypeStats counts schools per institution type.
type InstitutionTypeStats struct {
	InstitutionTypeID string `db:"institution_type_id" json:"institutionTypeId"`
	Name              string `db:"name" json:"name"`
	SchoolCount       int    `db:"school_count" json:"schoolCount"`
}
