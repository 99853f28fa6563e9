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

type classroomRepository interface {
	List(ctx context.Context, schoolID string, page, limit int) ([]models.ClassroomDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Update(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
}

type classroomStudentCounter interface {
	CountByClassroom(ctx context.Context, classroomID string) (int, error)
}

type classroomAssignmentCounter interface {
	CountForClassroom(ctx context.Context, classroomID string) (int, error)
}

type schoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// ClassroomService manages class sections.
type ClassroomService struct {
	repo        classroomRepository
	schools     schoolReader
	students    classroomStudentCounter
	assignments classroomAssignmentCounter
	memberships teacherSchoolReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassroomService constructs a ClassroomService.
func NewClassroomService(
	repo classroomRepository,
	schools schoolReader,
	students classroomStudentCounter,
	assignments classroomAssignmentCounter,
	memberships teacherSchoolReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{
		repo:        repo,
		schools:     schools,
		students:    students,
		assignments: assignments,
		memberships: memberships,
		validator:   validate,
		logger:      logger,
	}
}

// ClassroomRequest is the create/update payload.
type ClassroomRequest struct {
	Name     string `json:"name" validate:"required"`
	Level    string `json:"level" validate:"required"`
	Capacity *int   `json:"capacity" validate:"omitempty,min=1"`
	SchoolID string `json:"schoolId" validate:"required"`
}

// List returns classrooms with headcounts. The school filter is narrowed
// to the principal's own school before it reaches storage.
func (s *ClassroomService) List(ctx context.Context, claims *models.JWTClaims, schoolID string, page, limit int) ([]models.ClassroomDetail, int, int, error) {
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
	classrooms, total, err := s.repo.List(ctx, schoolID, page, limit)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, total, page, nil
}

// ListBySchool returns every classroom of one school. The school must exist
// and fall inside the principal's reach.
func (s *ClassroomService) ListBySchool(ctx context.Context, claims *models.JWTClaims, schoolID string) ([]models.ClassroomDetail, int, error) {
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	if err := requireSchoolView(ctx, claims, schoolID, s.memberships); err != nil {
		return nil, 0, err
	}
	classrooms, total, err := s.repo.List(ctx, schoolID, 1, 1000)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, total, nil
}

// Get returns one classroom by id.
func (s *ClassroomService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Classroom, error) {
	classroom, err := s.findClassroom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolView(ctx, claims, classroom.SchoolID, s.memberships); err != nil {
		return nil, err
	}
	return classroom, nil
}

func (s *ClassroomService) findClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom")
	}
	return classroom, nil
}

// Create registers a new classroom in its school.
func (s *ClassroomService) Create(ctx context.Context, claims *models.JWTClaims, req ClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name, level and schoolId fields are required")
	}
	if err := requireSchoolManage(claims, req.SchoolID, "you can only create classrooms in your own school"); err != nil {
		return nil, err
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}

	now := time.Now().UTC()
	classroom := &models.Classroom{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Level:     req.Level,
		Capacity:  req.Capacity,
		SchoolID:  req.SchoolID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	s.logger.Info("classroom created", zap.String("classroomId", classroom.ID))
	return classroom, nil
}

// Update modifies an existing classroom. The school link is immutable.
func (s *ClassroomService) Update(ctx context.Context, claims *models.JWTClaims, id string, req ClassroomRequest) (*models.Classroom, error) {
	classroom, err := s.findClassroom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, classroom.SchoolID, "this classroom does not belong to your school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the name, level and schoolId fields are required")
	}
	if req.SchoolID != classroom.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a classroom cannot change school")
	}

	classroom.Name = req.Name
	classroom.Level = req.Level
	classroom.Capacity = req.Capacity
	classroom.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return classroom, nil
}

// Delete removes a classroom. Blocked while students are enrolled or
// classroom assignments reference it.
func (s *ClassroomService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	classroom, err := s.findClassroom(ctx, id)
	if err != nil {
		return err
	}
	if err := requireSchoolManage(claims, classroom.SchoolID, "this classroom does not belong to your school"); err != nil {
		return err
	}
	students, err := s.students.CountByClassroom(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolled students")
	}
	if students > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete a classroom that still has students")
	}
	assignments, err := s.assignments.CountForClassroom(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom assignments")
	}
	if assignments > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete a classroom that still has course assignments")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	s.logger.Info("classroom deleted", zap.String("classroomId", id))
	return nil
}
