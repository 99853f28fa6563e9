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

type classroomAssignmentRepository interface {
	List(ctx context.Context, filter models.ClassroomAssignmentFilter) ([]models.ClassroomAssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassroomAssignment, error)
	ExistsTuple(ctx context.Context, classroomID, teacherID, subjectID, schoolID, excludeID string) (bool, error)
	Create(ctx context.Context, assignment *models.ClassroomAssignment) error
	UpdateSchedule(ctx context.Context, assignmentID string, slots []models.ScheduleSlot) error
	Delete(ctx context.Context, id string) error
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type assignmentTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	IsAssignedToSchool(ctx context.Context, teacherID, schoolID string) (bool, error)
}

type assignmentAttendanceCounter interface {
	CountForAssignment(ctx context.Context, assignmentID string) (int, error)
}

// ClassroomAssignmentService manages the (classroom, teacher, subject,
// school) tuples and their weekly schedules.
type ClassroomAssignmentService struct {
	repo        classroomAssignmentRepository
	classrooms  classroomReader
	subjects    subjectReader
	teachers    assignmentTeacherReader
	attendances assignmentAttendanceCounter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassroomAssignmentService constructs a ClassroomAssignmentService.
func NewClassroomAssignmentService(
	repo classroomAssignmentRepository,
	classrooms classroomReader,
	subjects subjectReader,
	teachers assignmentTeacherReader,
	attendances assignmentAttendanceCounter,
	validate *validator.Validate,
	logger *zap.Logger,
) *ClassroomAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomAssignmentService{
		repo:        repo,
		classrooms:  classrooms,
		subjects:    subjects,
		teachers:    teachers,
		attendances: attendances,
		validator:   validate,
		logger:      logger,
	}
}

// ScheduleSlotRequest is one recurring session window in a payload.
type ScheduleSlotRequest struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// CreateAssignmentRequest is the create payload.
type CreateAssignmentRequest struct {
	ClassroomID string                `json:"classroomId" validate:"required"`
	TeacherID   string                `json:"teacherId" validate:"required"`
	SubjectID   string                `json:"subjectId" validate:"required"`
	SchoolID    string                `json:"schoolId" validate:"required"`
	Schedule    []ScheduleSlotRequest `json:"schedule" validate:"omitempty,dive"`
}

// UpdateScheduleRequest replaces the schedule wholesale.
type UpdateScheduleRequest struct {
	Schedule []ScheduleSlotRequest `json:"schedule" validate:"required,min=1,dive"`
}

// List returns assignments with display names. Admins only ever see their
// own school's rows; teachers only their own assignments, whatever filter
// the request carried.
func (s *ClassroomAssignmentService) List(ctx context.Context, claims *models.JWTClaims, filter models.ClassroomAssignmentFilter) ([]models.ClassroomAssignmentDetail, int, int, error) {
	if claims == nil {
		return nil, 0, 0, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return nil, 0, 0, appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		filter.SchoolID = *claims.SchoolID
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	case models.RoleStudent:
		if claims.SchoolID != nil && *claims.SchoolID != "" {
			filter.SchoolID = *claims.SchoolID
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
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classroom assignments")
	}
	return assignments, total, filter.Page, nil
}

// Get returns one assignment by id. Admins read only their own school's
// assignments, teachers only their own.
func (s *ClassroomAssignmentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.ClassroomAssignment, error) {
	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin, models.RoleStudent:
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID != assignment.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this course assignment does not belong to your school")
		}
	case models.RoleTeacher:
		if assignment.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own course assignments")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	return assignment, nil
}

func (s *ClassroomAssignmentService) findAssignment(ctx context.Context, id string) (*models.ClassroomAssignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom assignment")
	}
	return assignment, nil
}

// Create registers a new assignment tuple. The classroom and subject must
// belong to the given school, and the teacher must be assigned to it.
func (s *ClassroomAssignmentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateAssignmentRequest) (*models.ClassroomAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the classroomId, teacherId, subjectId and schoolId fields are required")
	}
	if err := requireSchoolManage(claims, req.SchoolID, "you can only create course assignments for your own school"); err != nil {
		return nil, err
	}

	classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subject")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}

	if classroom.SchoolID != req.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the classroom does not belong to this school")
	}
	if subject.SchoolID != req.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the subject does not belong to this school")
	}
	assigned, err := s.teachers.IsAssignedToSchool(ctx, req.TeacherID, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher school membership")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the teacher is not assigned to this school")
	}

	slots, err := buildSchedule(req.Schedule)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsTuple(ctx, req.ClassroomID, req.TeacherID, req.SubjectID, req.SchoolID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this course assignment already exists")
	}

	now := time.Now().UTC()
	assignment := &models.ClassroomAssignment{
		ID:          uuid.NewString(),
		ClassroomID: req.ClassroomID,
		TeacherID:   req.TeacherID,
		SubjectID:   req.SubjectID,
		SchoolID:    req.SchoolID,
		Schedule:    slots,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom assignment")
	}
	s.logger.Info("classroom assignment created",
		zap.String("assignmentId", assignment.ID),
		zap.String("classroomId", assignment.ClassroomID))
	return assignment, nil
}

// UpdateSchedule replaces the assignment's weekly schedule.
func (s *ClassroomAssignmentService) UpdateSchedule(ctx context.Context, claims *models.JWTClaims, id string, req UpdateScheduleRequest) (*models.ClassroomAssignment, error) {
	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, assignment.SchoolID, "this course assignment does not belong to your school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the schedule field is required and must be a non-empty array")
	}
	slots, err := buildSchedule(req.Schedule)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSchedule(ctx, id, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	assignment.Schedule = slots
	return assignment, nil
}

// Delete removes an assignment. Blocked while attendance references it.
func (s *ClassroomAssignmentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	assignment, err := s.findAssignment(ctx, id)
	if err != nil {
		return err
	}
	if err := requireSchoolManage(claims, assignment.SchoolID, "this course assignment does not belong to your school"); err != nil {
		return err
	}
	count, err := s.attendances.CountForAssignment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance records")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete a course assignment that has attendance records")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom assignment")
	}
	s.logger.Info("classroom assignment deleted", zap.String("assignmentId", id))
	return nil
}

// buildSchedule validates slot payloads. End must fall strictly after start
// within the same day.
func buildSchedule(slots []ScheduleSlotRequest) ([]models.ScheduleSlot, error) {
	out := make([]models.ScheduleSlot, 0, len(slots))
	for _, slot := range slots {
		day := models.Weekday(slot.Day)
		if !day.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "day must be a lowercase weekday name")
		}
		if !models.ValidTimeOfDay(slot.StartTime) || !models.ValidTimeOfDay(slot.EndTime) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "startTime and endTime must be HH:MM wall-clock times")
		}
		if slot.EndTime <= slot.StartTime {
			return nil, appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
		}
		out = append(out, models.ScheduleSlot{
			Day:       day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	return out, nil
}
