package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
	"github.com/ecolehub/presence-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ExistsByMatricule(ctx context.Context, schoolID, matricule, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type studentAttendanceCleaner interface {
	DeleteEntriesForStudent(ctx context.Context, studentID string) error
}

// StudentService manages student enrolment.
type StudentService struct {
	repo        studentRepository
	schools     schoolReader
	classrooms  classroomReader
	attendances studentAttendanceCleaner
	csv         *export.CSVExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(
	repo studentRepository,
	schools schoolReader,
	classrooms classroomReader,
	attendances studentAttendanceCleaner,
	validate *validator.Validate,
	logger *zap.Logger,
) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        repo,
		schools:     schools,
		classrooms:  classrooms,
		attendances: attendances,
		csv:         export.NewCSVExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// StudentRequest is the create/update payload.
type StudentRequest struct {
	FirstName   string  `json:"firstName" validate:"required"`
	LastName    string  `json:"lastName" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Matricule   string  `json:"matricule" validate:"required"`
	Gender      string  `json:"gender" validate:"required,oneof=M F"`
	BirthDate   string  `json:"birthDate" validate:"required"`
	ClassroomID *string `json:"classroomId"`
	SchoolID    string  `json:"schoolId" validate:"required"`
	UserID      *string `json:"userId"`
}

// List returns students matching the filter. Admins only ever see their
// own school's students; a student principal sees just their own record.
func (s *StudentService) List(ctx context.Context, claims *models.JWTClaims, filter models.StudentFilter) ([]models.Student, int, int, error) {
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
		if claims.SchoolID != nil && *claims.SchoolID != "" {
			filter.SchoolID = *claims.SchoolID
		}
	case models.RoleStudent:
		self, err := s.findSelf(ctx, claims)
		if err != nil {
			return nil, 0, 0, err
		}
		return []models.Student{*self}, 1, 1, nil
	default:
		return nil, 0, 0, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, filter.Page, nil
}

// ListByClass returns the roster of one classroom. Admins are held to
// classrooms of their own school; students have no roster view.
func (s *StudentService) ListByClass(ctx context.Context, claims *models.JWTClaims, classroomID string) ([]models.Student, int, error) {
	classroom, err := s.findClassroom(ctx, classroomID)
	if err != nil {
		return nil, 0, err
	}
	if claims != nil && claims.Role == models.RoleStudent {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	if err := requireSchoolView(ctx, claims, classroom.SchoolID, nil); err != nil {
		return nil, 0, err
	}
	students, total, err := s.repo.List(ctx, models.StudentFilter{ClassroomID: classroomID, Page: 1, Limit: 1000})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classroom students")
	}
	return students, total, nil
}

// ListBySchool returns every student of one school.
func (s *StudentService) ListBySchool(ctx context.Context, claims *models.JWTClaims, schoolID string) ([]models.Student, int, error) {
	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	if claims != nil && claims.Role == models.RoleStudent {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	if err := requireSchoolView(ctx, claims, schoolID, nil); err != nil {
		return nil, 0, err
	}
	students, total, err := s.repo.List(ctx, models.StudentFilter{SchoolID: schoolID, Page: 1, Limit: 1000})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school students")
	}
	return students, total, nil
}

// Get returns one student by id. A student principal reads only their own
// record; admins only students of their own school.
func (s *StudentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Student, error) {
	student, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID != student.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this student does not belong to your school")
		}
	case models.RoleTeacher:
		if claims.SchoolID != nil && *claims.SchoolID != "" && *claims.SchoolID != student.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this student does not belong to your school")
		}
	case models.RoleStudent:
		self, err := s.findSelf(ctx, claims)
		if err != nil {
			return nil, err
		}
		if self.ID != id {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only access your own profile")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	return student, nil
}

func (s *StudentService) findStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

func (s *StudentService) findSelf(ctx context.Context, claims *models.JWTClaims) (*models.Student, error) {
	self, err := s.repo.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student profile")
	}
	return self, nil
}

// Create enrols a student. The matricule is unique within its school, and
// the classroom, when given, must belong to the same school.
func (s *StudentService) Create(ctx context.Context, claims *models.JWTClaims, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the firstName, lastName, email, matricule, gender, birthDate and schoolId fields are required")
	}
	if err := requireSchoolManage(claims, req.SchoolID, "you can only enrol students in your own school"); err != nil {
		return nil, err
	}
	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birthDate format, expected YYYY-MM-DD")
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	if err := s.checkClassroom(ctx, req.ClassroomID, req.SchoolID); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByMatricule(ctx, req.SchoolID, req.Matricule, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matricule")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matricule already exists in this school")
	}

	now := time.Now().UTC()
	student := &models.Student{
		ID:          uuid.NewString(),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Matricule:   req.Matricule,
		Gender:      models.Gender(req.Gender),
		BirthDate:   birthDate,
		ClassroomID: req.ClassroomID,
		SchoolID:    req.SchoolID,
		UserID:      req.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student enrolled",
		zap.String("studentId", student.ID),
		zap.String("schoolId", student.SchoolID))
	return student, nil
}

// Update modifies a student. The school link is immutable; the classroom
// may change within the same school.
func (s *StudentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req StudentRequest) (*models.Student, error) {
	student, err := s.findStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolManage(claims, student.SchoolID, "this student does not belong to your school"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the firstName, lastName, email, matricule, gender, birthDate and schoolId fields are required")
	}
	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birthDate format, expected YYYY-MM-DD")
	}
	if req.SchoolID != student.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a student cannot change school")
	}
	if err := s.checkClassroom(ctx, req.ClassroomID, student.SchoolID); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByMatricule(ctx, student.SchoolID, req.Matricule, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matricule")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matricule already exists in this school")
	}

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Email = req.Email
	student.Matricule = req.Matricule
	student.Gender = models.Gender(req.Gender)
	student.BirthDate = birthDate
	student.ClassroomID = req.ClassroomID
	student.UserID = req.UserID
	student.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student and cleans up their attendance entries.
func (s *StudentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	student, err := s.findStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := requireSchoolManage(claims, student.SchoolID, "this student does not belong to your school"); err != nil {
		return err
	}
	if err := s.attendances.DeleteEntriesForStudent(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove attendance entries")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("studentId", id))
	return nil
}

// ExportClassRoster renders the classroom roster as CSV.
func (s *StudentService) ExportClassRoster(ctx context.Context, claims *models.JWTClaims, classroomID string) ([]byte, string, error) {
	classroom, err := s.findClassroom(ctx, classroomID)
	if err != nil {
		return nil, "", err
	}
	if err := requireSchoolView(ctx, claims, classroom.SchoolID, nil); err != nil {
		return nil, "", err
	}

	students, _, err := s.repo.List(ctx, models.StudentFilter{ClassroomID: classroomID, Page: 1, Limit: 1000})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classroom students")
	}

	dataset := export.Dataset{
		Headers: []string{"Matricule", "First Name", "Last Name", "Email", "Gender", "Birth Date"},
	}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Matricule":  student.Matricule,
			"First Name": student.FirstName,
			"Last Name":  student.LastName,
			"Email":      student.Email,
			"Gender":     string(student.Gender),
			"Birth Date": student.BirthDate.Format("2006-01-02"),
		})
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}
	filename := fmt.Sprintf("roster-%s.csv", classroom.Name)
	return payload, filename, nil
}

func (s *StudentService) checkClassroom(ctx context.Context, classroomID *string, schoolID string) error {
	if classroomID == nil {
		return nil
	}
	classroom, err := s.findClassroom(ctx, *classroomID)
	if err != nil {
		return err
	}
	if classroom.SchoolID != schoolID {
		return appErrors.Clone(appErrors.ErrValidation, "the classroom does not belong to this school")
	}
	return nil
}

func (s *StudentService) findClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.classrooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom")
	}
	return classroom, nil
}
