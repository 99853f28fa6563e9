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

// ClassroomRepository persists classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms with headcounts, optionally scoped to a school.
func (r *ClassroomRepository) List(ctx context.Context, schoolID string, page, limit int) ([]models.ClassroomDetail, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if schoolID != "" {
		where = append(where, fmt.Sprintf("c.school_id = $%d", len(args)+1))
		args = append(args, schoolID)
	}
	whereClause := strings.Join(where, " AND ")

	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT c.id, c.name, c.level, c.capacity, c.school_id, c.created_at, c.updated_at,
        COUNT(s.id) AS student_count
        FROM classrooms c
        LEFT JOIN students s ON s.classroom_id = c.id
        WHERE %s
        GROUP BY c.id
        ORDER BY c.name LIMIT %d OFFSET %d`, whereClause, limit, offset)
	var classrooms []models.ClassroomDetail
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM classrooms c WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return classrooms, total, nil
}

// FindByID returns one classroom, or sql.ErrNoRows.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var classroom models.Classroom
	query := `SELECT id, name, level, capacity, school_id, created_at, updated_at FROM classrooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// Create inserts a classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	now := time.Now().UTC()
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	classroom.CreatedAt = now
	classroom.UpdatedAt = now
	query := `INSERT INTO classrooms (id, name, level, capacity, school_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		classroom.ID, classroom.Name, classroom.Level, classroom.Capacity,
		classroom.SchoolID, classroom.CreatedAt, classroom.UpdatedAt); err != nil {
		return fmt.Errorf("insert classroom: %w", err)
	}
	return nil
}

// Update persists mutable classroom fields.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	query := `UPDATE classrooms SET name = $1, level = $2, capacity = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query,
		classroom.Name, classroom.Level, classroom.Capacity, classroom.UpdatedAt, classroom.ID); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}

// CountBySchool counts classrooms owned by a school.
func (r *ClassroomRepository) CountBySchool(ctx context.Context, schoolID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classrooms WHERE school_id = $1`, schoolID); err != nil {
		return 0, fmt.Errorf("count school classrooms: %w", err)
	}
	return count, nil
}
