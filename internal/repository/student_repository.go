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

// StudentRepository persists student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, email, matricule, gender, birth_date, classroom_id, school_id, user_id, created_at, updated_at`

// List returns students matching the filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ClassroomID != "" {
		where = append(where, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR matricule ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s FROM students WHERE %s ORDER BY last_name, first_name LIMIT %d OFFSET %d`,
		studentColumns, whereClause, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns one student, or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID resolves a student profile from a login account id.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	query := fmt.Sprintf(`SELECT %s FROM students WHERE user_id = $1`, studentColumns)
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// CountInClassroom counts how many of the given ids are enrolled in the
// classroom. The attendance engine compares this against the requested
// roster size to detect out-of-class students.
func (r *StudentRepository) CountInClassroom(ctx context.Context, classroomID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	var count int
	query := `SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND id = ANY($2)`
	if err := r.db.GetContext(ctx, &count, query, classroomID, pq.Array(studentIDs)); err != nil {
		return 0, fmt.Errorf("count classroom students: %w", err)
	}
	return count, nil
}

// ListNamesByClassroom returns the enrolled students' name projections.
func (r *StudentRepository) ListNamesByClassroom(ctx context.Context, classroomID string) ([]models.StudentName, error) {
	var names []models.StudentName
	query := `SELECT id, first_name, last_name FROM students WHERE classroom_id = $1 ORDER BY last_name, first_name`
	if err := r.db.SelectContext(ctx, &names, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom students: %w", err)
	}
	return names, nil
}

// ExistsByMatricule reports whether the matricule is taken within a school.
func (r *StudentRepository) ExistsByMatricule(ctx context.Context, schoolID, matricule, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM students WHERE school_id = $1 AND matricule = $2 AND ($3 = '' OR id <> $3))`
	if err := r.db.GetContext(ctx, &exists, query, schoolID, matricule, excludeID); err != nil {
		return false, fmt.Errorf("check matricule: %w", err)
	}
	return exists, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	query := `INSERT INTO students (id, first_name, last_name, email, matricule, gender, birth_date, classroom_id, school_id, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.FirstName, student.LastName, student.Email, student.Matricule,
		student.Gender, student.BirthDate, student.ClassroomID, student.SchoolID,
		student.UserID, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update persists mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET first_name = $1, last_name = $2, email = $3, matricule = $4, gender = $5,
birth_date = $6, classroom_id = $7, school_id = $8, updated_at = $9 WHERE id = $10`
	if _, err := r.db.ExecContext(ctx, query,
		student.FirstName, student.LastName, student.Email, student.Matricule, student.Gender,
		student.BirthDate, student.ClassroomID, student.SchoolID, student.UpdatedAt, student.ID); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// CountByClassroom counts students enrolled in a classroom.
func (r *StudentRepository) CountByClassroom(ctx context.Context, classroomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE classroom_id = $1`, classroomID); err != nil {
		return 0, fmt.Errorf("count classroom students: %w", err)
	}
	return count, nil
}

// CountBySchool counts students owned by a school.
func (r *StudentRepository) CountBySchool(ctx context.Context, schoolID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE school_id = $1`, schoolID); err != nil {
		return 0, fmt.Errorf("count school students: %w", err)
	}
	return count, nil
}
