package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecolehub/presence-api/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a storage-level unique index breach.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// AttendanceRepository handles persistence for attendance sheets and their
// per-student entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance sheets matching the filter, most recent first,
// together with the unfiltered total for pagination.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("a.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("a.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		where = append(where, fmt.Sprintf("a.classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM attendance_entries e WHERE e.attendance_id = a.id AND e.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT a.id, a.date, a.classroom_assignment_id, a.classroom_id, a.subject_id, a.teacher_id, a.school_id, a.created_at, a.updated_at
        FROM attendances a WHERE %s
        ORDER BY a.date DESC
        LIMIT %d OFFSET %d`, whereClause, limit, offset)

	var sheets []models.Attendance
	if err := r.db.SelectContext(ctx, &sheets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendances a WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendances: %w", err)
	}

	if err := r.attachEntries(ctx, sheets); err != nil {
		return nil, 0, err
	}
	return sheets, total, nil
}

// FindByID returns one attendance sheet with its entries, or sql.ErrNoRows.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	var sheet models.Attendance
	query := `SELECT id, date, classroom_assignment_id, classroom_id, subject_id, teacher_id, school_id, created_at, updated_at
FROM attendances WHERE id = $1`
	if err := r.db.GetContext(ctx, &sheet, query, id); err != nil {
		return nil, err
	}
	sheets := []models.Attendance{sheet}
	if err := r.attachEntries(ctx, sheets); err != nil {
		return nil, err
	}
	return &sheets[0], nil
}

// FindDetailByID returns one sheet with display names and name-enriched entries.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	var detail models.AttendanceDetail
	query := `SELECT a.id, a.date, a.classroom_assignment_id, a.classroom_id, a.subject_id, a.teacher_id, a.school_id, a.created_at, a.updated_at,
        c.name AS classroom_name, sub.name AS subject_name, t.first_name || ' ' || t.last_name AS teacher_name
        FROM attendances a
        JOIN classrooms c ON c.id = a.classroom_id
        JOIN subjects sub ON sub.id = a.subject_id
        JOIN teachers t ON t.id = a.teacher_id
        WHERE a.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	entriesQuery := `SELECT e.id, e.attendance_id, e.student_id, e.status, e.notes, s.first_name, s.last_name
FROM attendance_entries e
JOIN students s ON s.id = e.student_id
WHERE e.attendance_id = $1
ORDER BY s.last_name, s.first_name`
	if err := r.db.SelectContext(ctx, &detail.Entries, entriesQuery, id); err != nil {
		return nil, fmt.Errorf("load attendance entries: %w", err)
	}
	return &detail, nil
}

// ExistsForSlot reports whether a sheet already exists for the assignment on
// the calendar day of date.
func (r *AttendanceRepository) ExistsForSlot(ctx context.Context, assignmentID string, date time.Time) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM attendances WHERE classroom_assignment_id = $1 AND date BETWEEN $2 AND $3)`
	if err := r.db.GetContext(ctx, &exists, query, assignmentID, dayStart, dayEnd); err != nil {
		return false, fmt.Errorf("check attendance slot: %w", err)
	}
	return exists, nil
}

// Create inserts the sheet and all entries in one transaction. The unique
// index on (day, classroom_assignment_id) is the final authority for slot
// uniqueness; callers detect it via IsUniqueViolation.
func (r *AttendanceRepository) Create(ctx context.Context, sheet *models.Attendance) error {
	now := time.Now().UTC()
	if sheet.ID == "" {
		sheet.ID = uuid.NewString()
	}
	sheet.CreatedAt = now
	sheet.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO attendances (id, date, classroom_assignment_id, classroom_id, subject_id, teacher_id, school_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, query,
		sheet.ID, sheet.Date, sheet.ClassroomAssignmentID, sheet.ClassroomID,
		sheet.SubjectID, sheet.TeacherID, sheet.SchoolID, sheet.CreatedAt, sheet.UpdatedAt); err != nil {
		return err
	}
	if err := insertEntries(ctx, tx, sheet.ID, sheet.Records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create attendance: %w", err)
	}
	committed = true
	return nil
}

// ReplaceEntries swaps the entry set wholesale and bumps updated_at.
func (r *AttendanceRepository) ReplaceEntries(ctx context.Context, attendanceID string, entries []models.AttendanceEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace entries: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_entries WHERE attendance_id = $1`, attendanceID); err != nil {
		return fmt.Errorf("clear attendance entries: %w", err)
	}
	if err := insertEntries(ctx, tx, attendanceID, entries); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE attendances SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), attendanceID); err != nil {
		return fmt.Errorf("touch attendance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace entries: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a sheet; entries cascade at the storage level.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendances WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// CountForAssignment counts sheets referencing a classroom assignment.
func (r *AttendanceRepository) CountForAssignment(ctx context.Context, assignmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendances WHERE classroom_assignment_id = $1`, assignmentID); err != nil {
		return 0, fmt.Errorf("count attendances for assignment: %w", err)
	}
	return count, nil
}

// ListForClassroom returns all sheets (with entries) for a classroom,
// optionally bounded by a date range.
func (r *AttendanceRepository) ListForClassroom(ctx context.Context, classroomID string, from, to *time.Time) ([]models.Attendance, error) {
	where := []string{"classroom_id = $1"}
	args := []interface{}{classroomID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT id, date, classroom_assignment_id, classroom_id, subject_id, teacher_id, school_id, created_at, updated_at
FROM attendances WHERE %s ORDER BY date DESC`, strings.Join(where, " AND "))
	var sheets []models.Attendance
	if err := r.db.SelectContext(ctx, &sheets, query, args...); err != nil {
		return nil, fmt.Errorf("list classroom attendances: %w", err)
	}
	if err := r.attachEntries(ctx, sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// StudentHistory returns every attendance occurrence for a student in range,
// most recent first.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.StudentAttendanceDetail, error) {
	where := []string{"e.student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT a.date, a.subject_id, sub.name AS subject_name, c.name AS classroom_name, e.status, e.notes
FROM attendance_entries e
JOIN attendances a ON a.id = e.attendance_id
JOIN subjects sub ON sub.id = a.subject_id
JOIN classrooms c ON c.id = a.classroom_id
WHERE %s
ORDER BY a.date DESC`, strings.Join(where, " AND "))
	var rows []models.StudentAttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}

// DeleteEntriesForStudent removes every entry referencing a student. Used
// when a student profile is removed entirely.
func (r *AttendanceRepository) DeleteEntriesForStudent(ctx context.Context, studentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_entries WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("delete student attendance entries: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) attachEntries(ctx context.Context, sheets []models.Attendance) error {
	if len(sheets) == 0 {
		return nil
	}
	ids := make([]string, len(sheets))
	index := make(map[string]*models.Attendance, len(sheets))
	for i := range sheets {
		ids[i] = sheets[i].ID
		index[sheets[i].ID] = &sheets[i]
	}
	var entries []models.AttendanceEntry
	query := `SELECT id, attendance_id, student_id, status, notes FROM attendance_entries WHERE attendance_id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load attendance entries: %w", err)
	}
	for _, entry := range entries {
		if sheet, ok := index[entry.AttendanceID]; ok {
			sheet.Records = append(sheet.Records, entry)
		}
	}
	return nil
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, attendanceID string, entries []models.AttendanceEntry) error {
	query := `INSERT INTO attendance_entries (id, attendance_id, student_id, status, notes) VALUES ($1, $2, $3, $4, $5)`
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.AttendanceID = attendanceID
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.AttendanceID, entry.StudentID, entry.Status, entry.Notes); err != nil {
			return fmt.Errorf("insert attendance entry: %w", err)
		}
	}
	return nil
}
