package models

import "time"

// Gender enumerates student genders.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Student represents an enrolled student. UserID links the optional login
// account used to resolve the student principal.
type Student struct {
	ID          string    `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"firstName"`
	LastName    string    `db:"last_name" json:"lastName"`
	Email       string    `db:"email" json:"email"`
	Matricule   string    `db:"matricule" json:"matricule"`
	Gender      Gender    `db:"gender" json:"gender"`
	BirthDate   time.Time `db:"birth_date" json:"birthDate"`
	ClassroomID *string   `db:"classroom_id" json:"classroomId,omitempty"`
	SchoolID    string    `db:"school_id" json:"schoolId"`
	UserID      *string   `db:"user_id" json:"userId,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentName is the minimal projection used to enrich attendance entries.
type StudentName struct {
	ID        string `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
}

// StudentFilter defines filter criteria for listing students.
type StudentFilter struct {
	SchoolID    string
	ClassroomID string
	Search      string
	Page        int
	Limit       int
}
