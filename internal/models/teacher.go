package models

import "time"

// Teacher represents a teacher profile. SchoolID always points at the
// primary school; additional schools live in teacher_school_assignments.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	SchoolID  string    `db:"school_id" json:"schoolId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherSchoolAssignment links a teacher to a school they teach at.
type TeacherSchoolAssignment struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacherId"`
	SchoolID  string    `db:"school_id" json:"schoolId"`
	IsPrimary bool      `db:"is_primary" json:"isPrimary"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TeacherWithSchools bundles a teacher with their school assignments.
type TeacherWithSchools struct {
	Teacher
	SchoolAssignments []TeacherSchoolAssignment `json:"schoolAssignments"`
}

// SchoolTeacher is a teacher row enriched with the isPrimary flag
// relative to the school being queried.
type SchoolTeacher struct {
	Teacher
	IsPrimary bool `db:"is_primary" json:"isPrimary"`
}
