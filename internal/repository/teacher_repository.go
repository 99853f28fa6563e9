package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ecolehub/presence-api/internal/models"
)

// TeacherRepository persists teacher profiles and their school assignments.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers, optionally scoped to a school via the assignment table.
func (r *TeacherRepository) List(ctx context.Context, schoolID, search string, page, limit int) ([]models.Teacher, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if schoolID != "" {
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM teacher_school_assignments tsa WHERE tsa.teacher_id = t.id AND tsa.school_id = $%d)", len(args)+1))
		args = append(args, schoolID)
	}
	if search != "" {
		where = append(where, fmt.Sprintf("(t.first_name ILIKE $%d OR t.last_name ILIKE $%d OR t.email ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT t.id, t.first_name, t.last_name, t.email, t.phone, t.school_id, t.created_at, t.updated_at
FROM teachers t WHERE %s ORDER BY t.last_name, t.first_name LIMIT %d OFFSET %d`, whereClause, limit, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM teachers t WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// ListBySchool returns teachers assigned to a school with the isPrimary flag.
func (r *TeacherRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.SchoolTeacher, error) {
	query := `SELECT t.id, t.first_name, t.last_name, t.email, t.phone, t.school_id, t.created_at, t.updated_at, tsa.is_primary
FROM teachers t
JOIN teacher_school_assignments tsa ON tsa.teacher_id = t.id
WHERE tsa.school_id = $1
ORDER BY t.last_name, t.first_name`
	var teachers []models.SchoolTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school teachers: %w", err)
	}
	return teachers, nil
}

// FindByID returns one teacher, or sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	query := `SELECT id, first_name, last_name, email, phone, school_id, created_at, updated_at FROM teachers WHERE id = $1`
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// SchoolAssignments returns all school links for a teacher.
func (r *TeacherRepository) SchoolAssignments(ctx context.Context, teacherID string) ([]models.TeacherSchoolAssignment, error) {
	query := `SELECT id, teacher_id, school_id, is_primary, created_at
FROM teacher_school_assignments WHERE teacher_id = $1 ORDER BY is_primary DESC, created_at`
	var assignments []models.TeacherSchoolAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher school assignments: %w", err)
	}
	return assignments, nil
}

// IsAssignedToSchool reports whether the teacher has an assignment to schoolID.
func (r *TeacherRepository) IsAssignedToSchool(ctx context.Context, teacherID, schoolID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM teacher_school_assignments WHERE teacher_id = $1 AND school_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, teacherID, schoolID); err != nil {
		return false, fmt.Errorf("check teacher school link: %w", err)
	}
	return exists, nil
}

// CountSchoolAssignments counts how many schools the teacher is assigned to.
func (r *TeacherRepository) CountSchoolAssignments(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teacher_school_assignments WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher school assignments: %w", err)
	}
	return count, nil
}

// Create inserts the teacher and their primary school assignment atomically.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	now := time.Now().UTC()
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.CreatedAt = now
	teacher.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create teacher: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO teachers (id, first_name, last_name, email, phone, school_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, query,
		teacher.ID, teacher.FirstName, teacher.LastName, teacher.Email,
		teacher.Phone, teacher.SchoolID, teacher.CreatedAt, teacher.UpdatedAt); err != nil {
		return err
	}
	assignQuery := `INSERT INTO teacher_school_assignments (id, teacher_id, school_id, is_primary, created_at)
VALUES ($1, $2, $3, TRUE, $4)`
	if _, err := tx.ExecContext(ctx, assignQuery, uuid.NewString(), teacher.ID, teacher.SchoolID, now); err != nil {
		return fmt.Errorf("insert primary school assignment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create teacher: %w", err)
	}
	committed = true
	return nil
}

// Update persists mutable teacher fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	query := `UPDATE teachers SET first_name = $1, last_name = $2, email = $3, phone = $4, school_id = $5, updated_at = $6
WHERE id = $7`
	if _, err := r.db.ExecContext(ctx, query,
		teacher.FirstName, teacher.LastName, teacher.Email, teacher.Phone,
		teacher.SchoolID, teacher.UpdatedAt, teacher.ID); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// ReplaceSchoolAssignments swaps the teacher's full school set in a single
// transaction, marking exactly one school as primary and syncing the
// teacher's primary school column. The transactional swap makes a zero- or
// multi-primary state unreachable.
func (r *TeacherRepository) ReplaceSchoolAssignments(ctx context.Context, teacherID string, schoolIDs []string, primarySchoolID string) ([]models.TeacherSchoolAssignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace school assignments: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_school_assignments WHERE teacher_id = $1`, teacherID); err != nil {
		return nil, fmt.Errorf("clear school assignments: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO teacher_school_assignments (id, teacher_id, school_id, is_primary, created_at)
VALUES ($1, $2, $3, $4, $5)`
	assignments := make([]models.TeacherSchoolAssignment, 0, len(schoolIDs))
	for _, schoolID := range schoolIDs {
		assignment := models.TeacherSchoolAssignment{
			ID:        uuid.NewString(),
			TeacherID: teacherID,
			SchoolID:  schoolID,
			IsPrimary: schoolID == primarySchoolID,
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, query,
			assignment.ID, assignment.TeacherID, assignment.SchoolID, assignment.IsPrimary, assignment.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert school assignment: %w", err)
		}
		assignments = append(assignments, assignment)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE teachers SET school_id = $1, updated_at = $2 WHERE id = $3`, primarySchoolID, now, teacherID); err != nil {
		return nil, fmt.Errorf("sync primary school: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace school assignments: %w", err)
	}
	committed = true
	return assignments, nil
}

// Delete removes the teacher and their school assignments atomically.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete teacher: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_school_assignments WHERE teacher_id = $1`, id); err != nil {
		return fmt.Errorf("delete school assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete teacher: %w", err)
	}
	committed = true
	return nil
}

// CountBySchool counts teachers assigned to a school.
func (r *TeacherRepository) CountBySchool(ctx context.Context, schoolID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teacher_school_assignments WHERE school_id = $1`, schoolID); err != nil {
		return 0, fmt.Errorf("count school teachers: %w", err)
	}
	return count, nil
}
