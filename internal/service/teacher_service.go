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

type teacherRepository interface {
	List(ctx context.Context, schoolID, search string, page, limit int) ([]models.Teacher, int, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.SchoolTeacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	IsAssignedToSchool(ctx context.Context, teacherID, schoolID string) (bool, error)
	SchoolAssignments(ctx context.Context, teacherID string) ([]models.TeacherSchoolAssignment, error)
	CountSchoolAssignments(ctx context.Context, teacherID string) (int, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	ReplaceSchoolAssignments(ctx context.Context, teacherID string, schoolIDs []string, primarySchoolID string) ([]models.TeacherSchoolAssignment, error)
	Delete(ctx context.Context, id string) error
}

type teacherAssignmentCounter interface {
	CountForTeacher(ctx context.Context, teacherID string) (int, error)
}

// TeacherService manages teacher profiles and their school assignments.
type TeacherService struct {
	repo        teacherRepository
	schools     schoolReader
	assignments teacherAssignmentCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, schools schoolReader, assignments teacherAssignmentCounter, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, schools: schools, assignments: assignments, validator: validate, logger: logger}
}

// TeacherRequest is the create/update payload. SchoolID designates the
// primary school.
type TeacherRequest struct {
	FirstName string  `json:"firstName" validate:"required"`
	LastName  string  `json:"lastName" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone"`
	SchoolID  string  `json:"schoolId" validate:"required"`
}

// ManageSchoolsRequest reassigns a teacher's full school set. The primary
// school must be a member of the set.
type ManageSchoolsRequest struct {
	TeacherID       string   `json:"teacherId" validate:"required"`
	SchoolIDs       []string `json:"schoolIds" validate:"required,min=1"`
	PrimarySchoolID string   `json:"primarySchoolId" validate:"required"`
}

// List returns teachers. The school filter is narrowed to the principal's
// own school before it reaches storage.
func (s *TeacherService) List(ctx context.Context, claims *models.JWTClaims, schoolID, search string, page, limit int) ([]models.Teacher, int, int, error) {
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
	teachers, total, err := s.repo.List(ctx, schoolID, search, page, limit)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, total, page, nil
}

// ListBySchool returns the teachers assigned to a school with their
// isPrimary flag.
func (s *TeacherService) ListBySchool(ctx context.Context, claims *models.JWTClaims, schoolID string) ([]models.SchoolTeacher, error) {
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	if err := requireSchoolView(ctx, claims, schoolID, s.repo); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school teachers")
	}
	return teachers, nil
}

// Get returns a teacher with their school assignments. Teachers read only
// their own profile; admins only teachers assigned to their school.
func (s *TeacherService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.TeacherWithSchools, error) {
	teacher, err := s.findTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin, models.RoleStudent:
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		assigned, err := s.repo.IsAssignedToSchool(ctx, id, *claims.SchoolID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school membership")
		}
		if !assigned {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this teacher does not belong to your school")
		}
	case models.RoleTeacher:
		if claims.UserID != id {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own profile")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	assignments, err := s.repo.SchoolAssignments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school assignments")
	}
	return &models.TeacherWithSchools{Teacher: *teacher, SchoolAssignments: assignments}, nil
}

// Create registers a teacher and their primary school assignment in one
// transaction.
func (s *TeacherService) Create(ctx context.Context, claims *models.JWTClaims, req TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the firstName, lastName, email and schoolId fields are required")
	}
	if err := requireSchoolManage(claims, req.SchoolID, "you can only create teachers in your own school"); err != nil {
		return nil, err
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}

	now := time.Now().UTC()
	teacher := &models.Teacher{
		ID:        uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		SchoolID:  req.SchoolID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created",
		zap.String("teacherId", teacher.ID),
		zap.String("schoolId", teacher.SchoolID))
	return teacher, nil
}

// Update modifies a teacher's profile fields. School membership changes go
// through ManageSchools.
func (s *TeacherService) Update(ctx context.Context, claims *models.JWTClaims, id string, req TeacherRequest) (*models.Teacher, error) {
	teacher, err := s.findTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, teacher.SchoolID, "this teacher does not belong to your school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the firstName, lastName, email and schoolId fields are required")
	}
	if req.SchoolID != teacher.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "use manage-schools to change a teacher's schools")
	}

	teacher.FirstName = req.FirstName
	teacher.LastName = req.LastName
	teacher.Email = req.Email
	teacher.Phone = req.Phone
	teacher.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// ManageSchools replaces a teacher's school set atomically. Exactly one
// assignment ends up primary, and the teacher's primary school column is
// synced in the same transaction.
func (s *TeacherService) ManageSchools(ctx context.Context, claims *models.JWTClaims, req ManageSchoolsRequest) (*models.TeacherWithSchools, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the teacherId, schoolIds and primarySchoolId fields are required")
	}
	for _, schoolID := range req.SchoolIDs {
		if err := requireSchoolManage(claims, schoolID, "you can only manage school assignments within your own school"); err != nil {
			return nil, err
		}
	}

	primaryInSet := false
	seen := make(map[string]bool, len(req.SchoolIDs))
	for _, schoolID := range req.SchoolIDs {
		if seen[schoolID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "schoolIds must not contain duplicates")
		}
		seen[schoolID] = true
		if schoolID == req.PrimarySchoolID {
			primaryInSet = true
		}
	}
	if !primaryInSet {
		return nil, appErrors.Clone(appErrors.ErrValidation, "primarySchoolId must be one of schoolIds")
	}

	teacher, err := s.findTeacher(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, teacher.SchoolID, "this teacher does not belong to your school"); err != nil {
		return nil, err
	}
	for _, schoolID := range req.SchoolIDs {
		if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
		}
	}

	if _, err := s.repo.ReplaceSchoolAssignments(ctx, req.TeacherID, req.SchoolIDs, req.PrimarySchoolID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign teacher schools")
	}
	s.logger.Info("teacher schools reassigned",
		zap.String("teacherId", req.TeacherID),
		zap.Int("schools", len(req.SchoolIDs)))
	return s.Get(ctx, claims, req.TeacherID)
}

// Delete removes a teacher and their school assignments. Blocked while
// classroom assignments exist; admins additionally cannot delete a teacher
// assigned to more than one school.
func (s *TeacherService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	teacher, err := s.findTeacher(ctx, id)
	if err != nil {
		return err
	}
	if err := requireSchoolManage(claims, teacher.SchoolID, "this teacher does not belong to your school"); err != nil {
		return err
	}

	courses, err := s.assignments.CountForTeacher(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course assignments")
	}
	if courses > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete a teacher that still has course assignments")
	}

	if claims != nil && claims.Role == models.RoleAdmin {
		schools, err := s.repo.CountSchoolAssignments(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school assignments")
		}
		if schools > 1 {
			return appErrors.Clone(appErrors.ErrForbidden, "only a superAdmin can delete a teacher assigned to multiple schools")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.logger.Info("teacher deleted", zap.String("teacherId", id))
	return nil
}

func (s *TeacherService) findTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	return teacher, nil
}
