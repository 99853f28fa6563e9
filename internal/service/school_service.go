package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.SchoolDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id string) error
}

type schoolDependentCounter interface {
	CountBySchool(ctx context.Context, schoolID string) (int, error)
}

type institutionTypeReader interface {
	FindByID(ctx context.Context, id string) (*models.InstitutionType, error)
}

// SchoolService manages schools and their aggregate statistics.
type SchoolService struct {
	repo             schoolRepository
	institutionTypes institutionTypeReader
	classrooms       schoolDependentCounter
	teachers         schoolDependentCounter
	studentsCounter  schoolDependentCounter
	memberships      teacherSchoolReader
	validator        *validator.Validate
	logger           *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(
	repo schoolRepository,
	institutionTypes institutionTypeReader,
	classrooms, teachers, students schoolDependentCounter,
	memberships teacherSchoolReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{
		repo:             repo,
		institutionTypes: institutionTypes,
		classrooms:       classrooms,
		teachers:         teachers,
		studentsCounter:  students,
		memberships:      memberships,
		validator:        validate,
		logger:           logger,
	}
}

// SchoolRequest is the create/update payload.
type SchoolRequest struct {
	Name              string  `json:"name" validate:"required"`
	Address           string  `json:"address" validate:"required"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email" validate:"omitempty,email"`
	InstitutionTypeID *string `json:"institutionTypeId"`
	Active            *bool   `json:"active"`
}

// List returns schools matching the filter and the total row count.
// Admins see only their own school, teachers only the schools they are
// assigned to, students only the school on their token.
func (s *SchoolService) List(ctx context.Context, claims *models.JWTClaims, filter models.SchoolFilter) ([]models.SchoolDetail, int, int, error) {
	if claims == nil {
		return nil, 0, 0, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return nil, 0, 0, appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		filter.ID = *claims.SchoolID
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	case models.RoleStudent:
		if claims.SchoolID != nil && *claims.SchoolID != "" {
			filter.ID = *claims.SchoolID
		}
	default:
		return nil, 0, 0, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	return schools, total, filter.Page, nil
}

// Get returns one school by id, provided it falls inside the principal's
// reach.
func (s *SchoolService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.School, error) {
	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolView(ctx, claims, school.ID, s.memberships); err != nil {
		return nil, err
	}
	return school, nil
}

func (s *SchoolService) findSchool(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	return school, nil
}

// Create registers a new school.
func (s *SchoolService) Create(ctx context.Context, req SchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and address fields are required")
	}
	if req.InstitutionTypeID != nil {
		if err := s.checkInstitutionType(ctx, *req.InstitutionTypeID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	school := &models.School{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Address:           req.Address,
		Phone:             req.Phone,
		Email:             req.Email,
		InstitutionTypeID: req.InstitutionTypeID,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Active != nil {
		school.Active = *req.Active
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.logger.Info("school created", zap.String("schoolId", school.ID))
	return school, nil
}

// Update modifies an existing school. Admins modify only their own.
func (s *SchoolService) Update(ctx context.Context, claims *models.JWTClaims, id string, req SchoolRequest) (*models.School, error) {
	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, school.ID, "you can only update your own school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and address fields are required")
	}
	if req.InstitutionTypeID != nil {
		if err := s.checkInstitutionType(ctx, *req.InstitutionTypeID); err != nil {
			return nil, err
		}
	}

	school.Name = req.Name
	school.Address = req.Address
	school.Phone = req.Phone
	school.Email = req.Email
	school.InstitutionTypeID = req.InstitutionTypeID
	if req.Active != nil {
		school.Active = *req.Active
	}
	school.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// SetInstitutionType changes only the institution type link.
func (s *SchoolService) SetInstitutionType(ctx context.Context, id string, institutionTypeID string) (*models.School, error) {
	school, err := s.findSchool(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkInstitutionType(ctx, institutionTypeID); err != nil {
		return nil, err
	}
	school.InstitutionTypeID = &institutionTypeID
	school.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// Delete removes a school. Blocked while classrooms, teachers or students
// still reference it.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	if _, err := s.findSchool(ctx, id); err != nil {
		return err
	}

	checks := []struct {
		counter schoolDependentCounter
		message string
	}{
		{s.classrooms, "cannot delete a school that still has classrooms"},
		{s.teachers, "cannot delete a school that still has teachers"},
		{s.studentsCounter, "cannot delete a school that still has students"},
	}
	for _, check := range checks {
		count, err := check.counter.CountBySchool(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school dependents")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrValidation, check.message)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	s.logger.Info("school deleted", zap.String("schoolId", id))
	return nil
}

// Stats returns entity counts for one school.
func (s *SchoolService) Stats(ctx context.Context, claims *models.JWTClaims, id string) (*models.SchoolStats, error) {
	if _, err := s.findSchool(ctx, id); err != nil {
		return nil, err
	}
	if err := requireSchoolView(ctx, claims, id, s.memberships); err != nil {
		return nil, err
	}
	classrooms, err := s.classrooms.CountBySchool(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classrooms")
	}
	teachers, err := s.teachers.CountBySchool(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	students, err := s.studentsCounter.CountBySchool(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	return &models.SchoolStats{Classrooms: classrooms, Teachers: teachers, Students: students}, nil
}

func (s *SchoolService) checkInstitutionType(ctx context.Context, id string) error {
	if _, err := s.institutionTypes.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "institution type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch institution type")
	}
	return nil
}
