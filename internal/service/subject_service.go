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

type subjectRepository interface {
	List(ctx context.Context, schoolID, search string, page, limit int) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectAssignmentCounter interface {
	CountForSubject(ctx context.Context, subjectID string) (int, error)
}

// SubjectService manages taught disciplines.
type SubjectService struct {
	repo        subjectRepository
	schools     schoolReader
	assignments subjectAssignmentCounter
	memberships teacherSchoolReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, schools schoolReader, assignments subjectAssignmentCounter, memberships teacherSchoolReader, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, schools: schools, assignments: assignments, memberships: memberships, validator: validate, logger: logger}
}

// SubjectRequest is the create/update payload.
type SubjectRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	SchoolID    string  `json:"schoolId" validate:"required"`
}

// List returns subjects scoped to what the principal may see, with an
// optional name search.
func (s *SubjectService) List(ctx context.Context, claims *models.JWTClaims, schoolID, search string, page, limit int) ([]models.Subject, int, int, error) {
	schoolID, err := listSchoolScope(claims, schoolID)
	if err != nil {
		return nil, 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	subjects, total, err := s.repo.List(ctx, schoolID, search, page, limit)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, total, page, nil
}

// ListBySchool returns every subject of one school.
func (s *SubjectService) ListBySchool(ctx context.Context, claims *models.JWTClaims, schoolID string) ([]models.Subject, int, error) {
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	if err := requireSchoolView(ctx, claims, schoolID, s.memberships); err != nil {
		return nil, 0, err
	}
	subjects, total, err := s.repo.List(ctx, schoolID, "", 1, 1000)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, total, nil
}

// Get returns one subject by id.
func (s *SubjectService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Subject, error) {
	subject, err := s.findSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolView(ctx, claims, subject.SchoolID, s.memberships); err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *SubjectService) findSubject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	return subject, nil
}

// Create registers a new subject in its school.
func (s *SubjectService) Create(ctx context.Context, claims *models.JWTClaims, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and schoolId fields are required")
	}
	if err := requireSchoolManage(claims, req.SchoolID, "you can only create subjects in your own school"); err != nil {
		return nil, err
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}

	now := time.Now().UTC()
	subject := &models.Subject{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		SchoolID:    req.SchoolID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.logger.Info("subject created", zap.String("subjectId", subject.ID))
	return subject, nil
}

// Update modifies an existing subject. The school link is immutable.
func (s *SubjectService) Update(ctx context.Context, claims *models.JWTClaims, id string, req SubjectRequest) (*models.Subject, error) {
	subject, err := s.findSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, subject.SchoolID, "this subject does not belong to your school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name and schoolId fields are required")
	}
	if req.SchoolID != subject.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a subject cannot change school")
	}

	subject.Name = req.Name
	subject.Description = req.Description
	subject.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject. Blocked while classroom assignments reference it.
func (s *SubjectService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	subject, err := s.findSubject(ctx, id)
	if err != nil {
		return err
	}
	if err := requireSchoolManage(claims, subject.SchoolID, "this subject does not belong to your school"); err != nil {
		return err
	}
	assignments, err := s.assignments.CountForSubject(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignments")
	}
	if assignments > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete a subject that still has course assignments")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.logger.Info("subject deleted", zap.String("subjectId", id))
	return nil
}
