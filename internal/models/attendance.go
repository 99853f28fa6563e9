package models

import "time"

// AttendanceStatus represents the per-student presence status.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceEntry is one student's presence status inside an attendance sheet.
type AttendanceEntry struct {
	ID           string           `db:"id" json:"-"`
	AttendanceID string           `db:"attendance_id" json:"-"`
	StudentID    string           `db:"student_id" json:"studentId"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceEntryDetail enriches an entry with the student's name.
type AttendanceEntryDetail struct {
	AttendanceEntry
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
}

// Attendance is the per-session roster of presence statuses for one
// (date, classroomAssignmentId). The classroom/subject/teacher/school ids
// are copied from the assignment at creation time and never re-synced.
type Attendance struct {
	ID                    string            `db:"id" json:"id"`
	Date                  time.Time         `db:"date" json:"date"`
	ClassroomAssignmentID string            `db:"classroom_assignment_id" json:"classroomAssignmentId"`
	ClassroomID           string            `db:"classroom_id" json:"classroomId"`
	SubjectID             string            `db:"subject_id" json:"subjectId"`
	TeacherID             string            `db:"teacher_id" json:"teacherId"`
	SchoolID              string            `db:"school_id" json:"schoolId"`
	Records               []AttendanceEntry `json:"records"`
	CreatedAt             time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updatedAt"`
}

// AttendanceDetail carries the sheet with name-enriched entries.
type AttendanceDetail struct {
	Attendance
	ClassroomName string                  `db:"classroom_name" json:"classroomName"`
	SubjectName   string                  `db:"subject_name" json:"subjectName"`
	TeacherName   string                  `db:"teacher_name" json:"teacherName"`
	Entries       []AttendanceEntryDetail `json:"records"`
}

// AttendanceFilter scopes attendance listing queries. Scope fields are set
// by the permission evaluator, the rest by the caller.
type AttendanceFilter struct {
	SchoolID    string
	TeacherID   string
	StudentID   string
	ClassroomID string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	Limit       int
}

// StatusTally accumulates per-status counts and derives percentages.
type StatusTally struct {
	TotalPresent int `json:"totalPresent"`
	TotalAbsent  int `json:"totalAbsent"`
	TotalLate    int `json:"totalLate"`
	TotalExcused int `json:"totalExcused"`
	Total        int `json:"total"`

	PresentPercentage float64 `json:"presentPercentage"`
	AbsentPercentage  float64 `json:"absentPercentage"`
	LatePercentage    float64 `json:"latePercentage"`
	ExcusedPercentage float64 `json:"excusedPercentage"`
}

// Add records one status occurrence.
func (t *StatusTally) Add(status AttendanceStatus) {
	switch status {
	case StatusPresent:
		t.TotalPresent++
	case StatusAbsent:
		t.TotalAbsent++
	case StatusLate:
		t.TotalLate++
	case StatusExcused:
		t.TotalExcused++
	default:
		return
	}
	t.Total++
}

// Finalize computes percentages. A zero total yields all-zero percentages.
func (t *StatusTally) Finalize() {
	if t.Total == 0 {
		return
	}
	total := float64(t.Total)
	t.PresentPercentage = float64(t.TotalPresent) / total * 100
	t.AbsentPercentage = float64(t.TotalAbsent) / total * 100
	t.LatePercentage = float64(t.TotalLate) / total * 100
	t.ExcusedPercentage = float64(t.TotalExcused) / total * 100
}

// StudentTally is the per-student block of a classroom stats response.
type StudentTally struct {
	StudentID string      `json:"studentId"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Stats     StatusTally `json:"stats"`
}

// ClassroomStats is the classroom statistics payload.
type ClassroomStats struct {
	Students []StudentTally `json:"students"`
	Global   StatusTally    `json:"global"`
}

// StudentAttendanceDetail is one historical row of a student stats response.
type StudentAttendanceDetail struct {
	Date      time.Time        `db:"date" json:"date"`
	SubjectID string           `db:"subject_id" json:"subjectId"`
	Subject   string           `db:"subject_name" json:"subject"`
	Classroom string           `db:"classroom_name" json:"classroom"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes"`
}

// StudentStats is the student statistics payload.
type StudentStats struct {
	Student StudentName               `json:"student"`
	Stats   StatusTally               `json:"stats"`
	Details []StudentAttendanceDetail `json:"attendanceDetails"`
}
