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

// SchoolRepository persists schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the filter with institution type names.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.SchoolDetail, int, error) {
	base := `FROM schools s LEFT JOIN institution_types it ON it.id = s.institution_type_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ID != "" {
		where = append(where, fmt.Sprintf("s.id = $%d", len(args)+1))
		args = append(args, filter.ID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("s.id IN (SELECT ts.school_id FROM teacher_schools ts WHERE ts.teacher_id = $%d)", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("s.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf(`SELECT s.id, s.name, s.address, s.phone, s.email, s.institution_type_id, s.active, s.created_at, s.updated_at,
        it.name AS institution_type_name
        %s WHERE %s ORDER BY s.name LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	var schools []models.SchoolDetail
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// FindByID returns one school, or sql.ErrNoRows.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	query := `SELECT id, name, address, phone, email, institution_type_id, active, created_at, updated_at FROM schools WHERE id = $1`
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// Create inserts a school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	now := time.Now().UTC()
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	school.CreatedAt = now
	school.UpdatedAt = now
	query := `INSERT INTO schools (id, name, address, phone, email, institution_type_id, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		school.ID, school.Name, school.Address, school.Phone, school.Email,
		school.InstitutionTypeID, school.Active, school.CreatedAt, school.UpdatedAt); err != nil {
		return fmt.Errorf("insert school: %w", err)
	}
	return nil
}

// Update persists mutable school fields.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	query := `UPDATE schools SET name = $1, address = $2, phone = $3, email = $4, institution_type_id = $5, active = $6, updated_at = $7
WHERE id = $8`
	if _, err := r.db.ExecContext(ctx, query,
		school.Name, school.Address, school.Phone, school.Email,
		school.InstitutionTypeID, school.Active, school.UpdatedAt, school.ID); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// Delete removes a school.
func (r *SchoolRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	return nil
}

// CountByInstitutionType counts schools referencing an institution type.
func (r *SchoolRepository) CountByInstitutionType(ctx context.Context, institutionTypeID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schools WHERE institution_type_id = $1`, institutionTypeID); err != nil {
		return 0, fmt.Errorf("count schools by institution type: %w", err)
	}
	return count, nil
}
