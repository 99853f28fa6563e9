package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ecolehub/presence-api/internal/models"
)

// InstitutionTypeRepository persists institution types.
type InstitutionTypeRepository struct {
	db *sqlx.DB
}

// NewInstitutionTypeRepository constructs the repository.
func NewInstitutionTypeRepository(db *sqlx.DB) *InstitutionTypeRepository {
	return &InstitutionTypeRepository{db: db}
}

// List returns all institution types, optionally only active ones.
func (r *InstitutionTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.InstitutionType, error) {
	query := `SELECT id, name, description, levels, active, created_at, updated_at FROM institution_types`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`
	var types []models.InstitutionType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list institution types: %w", err)
	}
	return types, nil
}

// FindByID returns one institution type, or sql.ErrNoRows.
func (r *InstitutionTypeRepository) FindByID(ctx context.Context, id string) (*models.InstitutionType, error) {
	var it models.InstitutionType
	query := `SELECT id, name, description, levels, active, created_at, updated_at FROM institution_types WHERE id = $1`
	if err := r.db.GetContext(ctx, &it, query, id); err != nil {
		return nil, err
	}
	return &it, nil
}

// ExistsByName reports whether a type with this name exists, excluding one id.
func (r *InstitutionTypeRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM institution_types WHERE LOWER(name) = LOWER($1) AND ($2 = '' OR id <> $2))`
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check institution type name: %w", err)
	}
	return exists, nil
}

// Create inserts an institution type.
func (r *InstitutionTypeRepository) Create(ctx context.Context, it *models.InstitutionType) error {
	now := time.Now().UTC()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.CreatedAt = now
	it.UpdatedAt = now
	query := `INSERT INTO institution_types (id, name, description, levels, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		it.ID, it.Name, it.Description, it.Levels, it.Active, it.CreatedAt, it.UpdatedAt); err != nil {
		return fmt.Errorf("insert institution type: %w", err)
	}
	return nil
}

// Update persists mutable fields.
func (r *InstitutionTypeRepository) Update(ctx context.Context, it *models.InstitutionType) error {
	it.UpdatedAt = time.Now().UTC()
	query := `UPDATE institution_types SET name = $1, description = $2, levels = $3, active = $4, updated_at = $5 WHERE id = $6`
	if _, err := r.db.ExecContext(ctx, query, it.Name, it.Description, it.Levels, it.Active, it.UpdatedAt, it.ID); err != nil {
		return fmt.Errorf("update institution type: %w", err)
	}
	return nil
}

// SetActive flips the active flag.
func (r *InstitutionTypeRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE institution_types SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("toggle institution type: %w", err)
	}
	return nil
}

// Stats counts schools per institution type.
func (r *InstitutionTypeRepository) Stats(ctx context.Context) ([]models.InstitutionTypeStats, error) {
	query := `SELECT it.id AS institution_type_id, it.name, COUNT(s.id) AS school_count
FROM institution_types it
LEFT JOIN schools s ON s.institution_type_id = it.id
GROUP BY it.id, it.name
ORDER BY it.name`
	var stats []models.InstitutionTypeStats
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("institution type stats: %w", err)
	}
	return stats, nil
}
