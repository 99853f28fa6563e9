package models

import "time"

// School represents an institution owning classrooms, teachers and students.
type School struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Address           string    `db:"address" json:"address"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	Email             *string   `db:"email" json:"email,omitempty"`
	InstitutionTypeID *string   `db:"institution_type_id" json:"institutionTypeId,omitempty"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// SchoolDetail extends School with the institution type name.
type SchoolDetail struct {
	School
	InstitutionTypeName *string `db:"institution_type_name" json:"institutionTypeName,omitempty"`
}

// SchoolStats aggregates entity counts for one school.
type SchoolStats struct {
	Classrooms int `json:"classrooms"`
	Teachers   int `json:"teachers"`
	Students   int `json:"students"`
}

// SchoolFilter defines filter criteria for listing schools.
type SchoolFilter struct {
	ID        string
	TeacherID string
	Search    string
	Active    *bool
	Page      int
	Limit     int
}
