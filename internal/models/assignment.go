package models

import (
	"regexp"
	"time"
)

// Weekday enumerates schedule days.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Valid reports whether the weekday is a supported value.
func (d Weekday) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	default:
		return false
	}
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidTimeOfDay reports whether s is a wall-clock time in HH:MM form.
func ValidTimeOfDay(s string) bool {
	return timeOfDayRe.MatchString(s)
}

// ScheduleSlot is one recurring session window of a classroom assignment.
type ScheduleSlot struct {
	ID                    string  `db:"id" json:"-"`
	ClassroomAssignmentID string  `db:"classroom_assignment_id" json:"-"`
	Day                   Weekday `db:"day" json:"day"`
	StartTime             string  `db:"start_time" json:"startTime"`
	EndTime               string  `db:"end_time" json:"endTime"`
}

// ClassroomAssignment is the (classroom, teacher, subject, school) tuple
// representing a recurring taught session.
type ClassroomAssignment struct {
	ID          string         `db:"id" json:"id"`
	ClassroomID string         `db:"classroom_id" json:"classroomId"`
	TeacherID   string         `db:"teacher_id" json:"teacherId"`
	SubjectID   string         `db:"subject_id" json:"subjectId"`
	SchoolID    string         `db:"school_id" json:"schoolId"`
	Schedule    []ScheduleSlot `json:"schedule"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// ClassroomAssignmentDetail enriches the tuple with display names.
type ClassroomAssignmentDetail struct {
	ClassroomAssignment
	ClassroomName string `db:"classroom_name" json:"classroomName"`
	TeacherName   string `db:"teacher_name" json:"teacherName"`
	SubjectName   string `db:"subject_name" json:"subjectName"`
}

// ClassroomAssignmentFilter scopes listing queries.
type ClassroomAssignmentFilter struct {
	SchoolID    string
	TeacherID   string
	ClassroomID string
	SubjectID   string
	Page        int
	Limit       int
}
