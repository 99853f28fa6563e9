package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type institutionTypeRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.InstitutionType, error)
	FindByID(ctx context.Context, id string) (*models.InstitutionType, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, it *models.InstitutionType) error
	Update(ctx context.Context, it *models.InstitutionType) error
	SetActive(ctx context.Context, id string, active bool) error
	Stats(ctx context.Context) ([]models.InstitutionTypeStats, error)
}

// InstitutionTypeService manages the school category catalogue.
type InstitutionTypeService struct {
	repo      institutionTypeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstitutionTypeService constructs an InstitutionTypeService.
func NewInstitutionTypeService(repo institutionTypeRepository, validate *validator.Validate, logger *zap.Logger) *InstitutionTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionTypeService{repo: repo, validator: validate, logger: logger}
}

// InstitutionTypeRequest is the create/update payload.
type InstitutionTypeRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Levels      []string `json:"levels" validate:"required,min=1"`
}

// List returns institution types, optionally restricted to active ones.
func (s *InstitutionTypeService) List(ctx context.Context, activeOnly bool) ([]models.InstitutionType, error) {
	types, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institution types")
	}
	return types, nil
}

// Get returns one institution type by id.
func (s *InstitutionTypeService) Get(ctx context.Context, id string) (*models.InstitutionType, error) {
	it, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch institution type")
	}
	return it, nil
}

// Create registers a new institution type. Names are unique.
func (s *InstitutionTypeService) Create(ctx context.Context, req InstitutionTypeRequest) (*models.InstitutionType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and levels fields are required")
	}
	taken, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution type name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an institution type with this name already exists")
	}

	now := time.Now().UTC()
	it := &models.InstitutionType{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Levels:      pq.StringArray(req.Levels),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution type")
	}
	s.logger.Info("institution type created", zap.String("institutionTypeId", it.ID))
	return it, nil
}

// Update modifies an existing institution type.
func (s *InstitutionTypeService) Update(ctx context.Context, id string, req InstitutionTypeRequest) (*models.InstitutionType, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and levels fields are required")
	}
	taken, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution type name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an institution type with this name already exists")
	}

	it.Name = req.Name
	it.Description = req.Description
	it.Levels = pq.StringArray(req.Levels)
	it.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution type")
	}
	return it, nil
}

// ToggleStatus flips the active flag.
func (s *InstitutionTypeService) ToggleStatus(ctx context.Context, id string) (*models.InstitutionType, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	it.Active = !it.Active
	it.UpdatedAt = time.Now().UTC()
	if err := s.repo.SetActive(ctx, id, it.Active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle institution type")
	}
	return it, nil
}

// Stats returns the school count per institution type.
func (s *InstitutionTypeService) Stats(ctx context.Context) ([]models.InstitutionTypeStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution type stats")
	}
	return stats, nil
}
