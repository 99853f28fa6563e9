package models

import "time"

// Classroom represents a class section within a school.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Capacity  *int      `db:"capacity" json:"capacity,omitempty"`
	SchoolID  string    `db:"school_id" json:"schoolId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ClassroomDetail extends Classroom with the student headcount.
type ClassroomDetail struct {
	Classroom
	StudentCount int `db:"student_count" json:"studentCount"`
}

// Subject represents a taught discipline owned by a school.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	SchoolID    string    `db:"school_id" json:"schoolId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
