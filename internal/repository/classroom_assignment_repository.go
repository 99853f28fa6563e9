package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecolehub/presence-api/internal/models"
)

// ClassroomAssignmentRepository persists (classroom, teacher, subject, school)
// tuples and their recurring schedule slots.
type ClassroomAssignmentRepository struct {
	db *sqlx.DB
}

// NewClassroomAssignmentRepository constructs the repository.
func NewClassroomAssignmentRepository(db *sqlx.DB) *ClassroomAssignmentRepository {
	return &ClassroomAssignmentRepository{db: db}
}

// List returns assignment tuples matching the filter with display names.
func (r *ClassroomAssignmentRepository) List(ctx context.Context, filter models.ClassroomAssignmentFilter) ([]models.ClassroomAssignmentDetail, int, error) {
	base := `FROM classroom_assignments ca
JOIN classrooms c ON c.id = ca.classroom_id
JOIN teachers t ON t.id = ca.teacher_id
JOIN subjects s ON s.id = ca.subject_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("ca.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("ca.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		where = append(where, fmt.Sprintf("ca.classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("ca.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT ca.id, ca.classroom_id, ca.teacher_id, ca.subject_id, ca.school_id, ca.created_at, ca.updated_at,
        c.name AS classroom_name, t.first_name || ' ' || t.last_name AS teacher_name, s.name AS subject_name
        %s WHERE %s
        ORDER BY ca.created_at DESC
        LIMIT %d OFFSET %d`, base, whereClause, limit, offset)

	var rows []models.ClassroomAssignmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classroom assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classroom assignments: %w", err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	slots, err := r.loadSchedules(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Schedule = slots[rows[i].ID]
	}
	return rows, total, nil
}

// FindByID returns an assignment with its schedule, or sql.ErrNoRows.
func (r *ClassroomAssignmentRepository) FindByID(ctx context.Context, id string) (*models.ClassroomAssignment, error) {
	var row models.ClassroomAssignment
	query := `SELECT id, classroom_id, teacher_id, subject_id, school_id, created_at, updated_at
FROM classroom_assignments WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	slots, err := r.loadSchedules(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	row.Schedule = slots[id]
	return &row, nil
}

// ExistsTuple reports whether the exact tuple already exists, excluding one id.
func (r *ClassroomAssignmentRepository) ExistsTuple(ctx context.Context, classroomID, teacherID, subjectID, schoolID, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM classroom_assignments
WHERE classroom_id = $1 AND teacher_id = $2 AND subject_id = $3 AND school_id = $4 AND ($5 = '' OR id <> $5))`
	if err := r.db.GetContext(ctx, &exists, query, classroomID, teacherID, subjectID, schoolID, excludeID); err != nil {
		return false, fmt.Errorf("check assignment tuple: %w", err)
	}
	return exists, nil
}

// ExistsForTeacherClassroom reports whether the teacher has any assignment in
// the classroom. Used by the permission evaluator for stats access.
func (r *ClassroomAssignmentRepository) ExistsForTeacherClassroom(ctx context.Context, teacherID, classroomID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM classroom_assignments WHERE teacher_id = $1 AND classroom_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, teacherID, classroomID); err != nil {
		return false, fmt.Errorf("check teacher classroom link: %w", err)
	}
	return exists, nil
}

// CountForTeacher counts assignments held by a teacher.
func (r *ClassroomAssignmentRepository) CountForTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classroom_assignments WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher assignments: %w", err)
	}
	return count, nil
}

// CountForClassroom counts assignments referencing a classroom.
func (r *ClassroomAssignmentRepository) CountForClassroom(ctx context.Context, classroomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classroom_assignments WHERE classroom_id = $1`, classroomID); err != nil {
		return 0, fmt.Errorf("count classroom assignments: %w", err)
	}
	return count, nil
}

// CountForSubject counts assignments referencing a subject.
func (r *ClassroomAssignmentRepository) CountForSubject(ctx context.Context, subjectID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classroom_assignments WHERE subject_id = $1`, subjectID); err != nil {
		return 0, fmt.Errorf("count subject assignments: %w", err)
	}
	return count, nil
}

// Create inserts the tuple and its schedule slots in one transaction.
func (r *ClassroomAssignmentRepository) Create(ctx context.Context, assignment *models.ClassroomAssignment) error {
	now := time.Now().UTC()
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create assignment: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO classroom_assignments (id, classroom_id, teacher_id, subject_id, school_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query,
		assignment.ID, assignment.ClassroomID, assignment.TeacherID,
		assignment.SubjectID, assignment.SchoolID, assignment.CreatedAt, assignment.UpdatedAt); err != nil {
		return err
	}
	if err := insertSchedule(ctx, tx, assignment.ID, assignment.Schedule); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create assignment: %w", err)
	}
	committed = true
	return nil
}

// UpdateSchedule replaces the schedule slots wholesale.
func (r *ClassroomAssignmentRepository) UpdateSchedule(ctx context.Context, assignmentID string, slots []models.ScheduleSlot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update schedule: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM classroom_assignment_schedules WHERE classroom_assignment_id = $1`, assignmentID); err != nil {
		return fmt.Errorf("clear schedule slots: %w", err)
	}
	if err := insertSchedule(ctx, tx, assignmentID, slots); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE classroom_assignments SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), assignmentID); err != nil {
		return fmt.Errorf("touch assignment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update schedule: %w", err)
	}
	committed = true
	return nil
}

// Delete removes the tuple; schedule slots cascade.
func (r *ClassroomAssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classroom_assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete classroom assignment: %w", err)
	}
	return nil
}

func (r *ClassroomAssignmentRepository) loadSchedules(ctx context.Context, assignmentIDs []string) (map[string][]models.ScheduleSlot, error) {
	out := make(map[string][]models.ScheduleSlot, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return out, nil
	}
	var slots []models.ScheduleSlot
	query := `SELECT id, classroom_assignment_id, day, start_time, end_time
FROM classroom_assignment_schedules WHERE classroom_assignment_id = ANY($1) ORDER BY id`
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(assignmentIDs)); err != nil {
		return nil, fmt.Errorf("load schedule slots: %w", err)
	}
	for _, slot := range slots {
		out[slot.ClassroomAssignmentID] = append(out[slot.ClassroomAssignmentID], slot)
	}
	return out, nil
}

func insertSchedule(ctx context.Context, tx *sqlx.Tx, assignmentID string, slots []models.ScheduleSlot) error {
	query := `INSERT INTO classroom_assignment_schedules (id, classroom_assignment_id, day, start_time, end_time)
VALUES ($1, $2, $3, $4, $5)`
	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		slot.ClassroomAssignmentID = assignmentID
		if _, err := tx.ExecContext(ctx, query, slot.ID, slot.ClassroomAssignmentID, slot.Day, slot.StartTime, slot.EndTime); err != nil {
			return fmt.Errorf("insert schedule slot: %w", err)
		}
	}
	return nil
}
