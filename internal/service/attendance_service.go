package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	ExistsForSlot(ctx context.Context, assignmentID string, date time.Time) (bool, error)
	Create(ctx context.Context, sheet *models.Attendance) error
	ReplaceEntries(ctx context.Context, attendanceID string, entries []models.AttendanceEntry) error
	Delete(ctx context.Context, id string) error
	ListForClassroom(ctx context.Context, classroomID string, from, to *time.Time) ([]models.Attendance, error)
	StudentHistory(ctx context.Context, studentID string, from, to *time.Time) ([]models.StudentAttendanceDetail, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassroomAssignment, error)
	ExistsForTeacherClassroom(ctx context.Context, teacherID, classroomID string) (bool, error)
}

type attendanceStudentReader interface {
	studentResolver
	FindByID(ctx context.Context, id string) (*models.Student, error)
	CountInClassroom(ctx context.Context, classroomID string, studentIDs []string) (int, error)
	ListNamesByClassroom(ctx context.Context, classroomID string) ([]models.StudentName, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type teacherSchoolReader interface {
	IsAssignedToSchool(ctx context.Context, teacherID, schoolID string) (bool, error)
}

// uniqueViolationDetector lets the service recognise the storage-level slot
// constraint firing under a concurrent create race.
type uniqueViolationDetector func(error) bool

// AttendanceService implements the attendance sheet lifecycle and the
// presence statistics aggregations.
type AttendanceService struct {
	repo        attendanceRepository
	assignments assignmentReader
	students    attendanceStudentReader
	classrooms  classroomReader
	schools     teacherSchoolReader
	cache       *CacheService
	isUnique    uniqueViolationDetector
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	repo attendanceRepository,
	assignments assignmentReader,
	students attendanceStudentReader,
	classrooms classroomReader,
	schools teacherSchoolReader,
	cache *CacheService,
	isUnique uniqueViolationDetector,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &AttendanceService{
		repo:        repo,
		assignments: assignments,
		students:    students,
		classrooms:  classrooms,
		schools:     schools,
		cache:       cache,
		isUnique:    isUnique,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AttendanceEntryRequest is one student's status in a create/update payload.
type AttendanceEntryRequest struct {
	StudentID string  `json:"studentId" validate:"required"`
	Status    string  `json:"status" validate:"required"`
	Notes     *string `json:"notes"`
}

// CreateAttendanceRequest is the create payload.
type CreateAttendanceRequest struct {
	Date                  string                   `json:"date" validate:"required"`
	ClassroomAssignmentID string                   `json:"classroomAssignmentId" validate:"required"`
	Records               []AttendanceEntryRequest `json:"records" validate:"required,min=1,dive"`
}

// UpdateAttendanceRequest replaces the records array wholesale.
type UpdateAttendanceRequest struct {
	Records []AttendanceEntryRequest `json:"records" validate:"required,min=1,dive"`
}

// ListAttendanceRequest carries caller filters for listing.
type ListAttendanceRequest struct {
	ClassroomID string
	TeacherID   string
	Date        string
	Page        int
	Limit       int
}

// StatsRequest bounds a statistics query to a date range.
type StatsRequest struct {
	StartDate string
	EndDate   string
}

// List returns the attendance sheets visible to the principal, most recent
// first. A teacher's teacherId filter is overridden with their own id so the
// caller cannot widen their scope.
func (s *AttendanceService) List(ctx context.Context, claims *models.JWTClaims, req ListAttendanceRequest) ([]models.Attendance, int, int, error) {
	scope, err := resolveScope(ctx, claims, s.students)
	if err != nil {
		return nil, 0, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	filter := models.AttendanceFilter{
		SchoolID:    scope.SchoolID,
		TeacherID:   scope.TeacherID,
		StudentID:   scope.StudentID,
		ClassroomID: req.ClassroomID,
		Page:        page,
		Limit:       limit,
	}
	if req.TeacherID != "" && scope.TeacherID == "" {
		filter.TeacherID = req.TeacherID
	}
	if req.Date != "" {
		day, err := parseDate(req.Date)
		if err != nil {
			return nil, 0, 0, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
		}
		from := startOfDay(day)
		to := endOfDay(day)
		filter.DateFrom = &from
		filter.DateTo = &to
	}

	sheets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	return sheets, total, page, nil
}

// Get returns a single sheet with name-enriched entries. Out-of-scope access
// on an existing sheet is FORBIDDEN, a missing sheet NOT_FOUND.
func (s *AttendanceService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AttendanceDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance record")
	}

	scope, err := resolveScope(ctx, claims, s.students)
	if err != nil {
		return nil, err
	}
	sheet := detail.Attendance
	for _, entry := range detail.Entries {
		sheet.Records = append(sheet.Records, entry.AttendanceEntry)
	}
	if !scope.Covers(&sheet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this attendance record")
	}
	return detail, nil
}

// Create records attendance for one class session. Check order is part of
// the contract: assignment existence, permission, slot conflict, roster
// membership, status validity.
func (s *AttendanceService) Create(ctx context.Context, claims *models.JWTClaims, req CreateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the date, classroom assignment and records fields are required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	// Sheets are stored at midnight so the storage-level slot constraint
	// compares whole days.
	date = startOfDay(date)

	assignment, err := s.assignments.FindByID(ctx, req.ClassroomAssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom assignment")
	}

	scope, err := resolveScope(ctx, claims, s.students)
	if err != nil {
		return nil, err
	}
	if !scope.CanRecord(assignment) {
		if scope.TeacherID != "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this course")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this assignment does not belong to your school")
	}

	// Friendly pre-check; the unique index remains the final authority.
	exists, err := s.repo.ExistsForSlot(ctx, assignment.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an attendance record already exists for this date and course")
	}

	if err := s.validateRoster(ctx, assignment.ClassroomID, req.Records); err != nil {
		return nil, err
	}

	sheet := &models.Attendance{
		Date:                  date,
		ClassroomAssignmentID: assignment.ID,
		ClassroomID:           assignment.ClassroomID,
		SubjectID:             assignment.SubjectID,
		TeacherID:             assignment.TeacherID,
		SchoolID:              assignment.SchoolID,
		Records:               toEntries(req.Records),
	}
	if err := s.repo.Create(ctx, sheet); err != nil {
		if s.isUnique(err) {
			// A concurrent writer claimed the slot between the pre-check
			// and the insert; surface the same conflict outcome.
			return nil, appErrors.Clone(appErrors.ErrConflict, "an attendance record already exists for this date and course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance record")
	}

	s.invalidateStats(ctx, sheet.ClassroomID)
	return sheet, nil
}

// Update replaces the records array wholesale. Membership is revalidated
// against the stored classroom, not the assignment.
func (s *AttendanceService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	sheet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance record")
	}

	scope, err := resolveScope(ctx, claims, s.students)
	if err != nil {
		return nil, err
	}
	if !scope.CanMutate(sheet) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this attendance record")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the records field is required and must be a non-empty array")
	}
	if err := s.validateRoster(ctx, sheet.ClassroomID, req.Records); err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceEntries(ctx, sheet.ID, toEntries(req.Records)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance record")
	}

	updated, err := s.repo.FindByID(ctx, sheet.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload attendance record")
	}
	s.invalidateStats(ctx, sheet.ClassroomID)
	return updated, nil
}

// Delete removes a sheet. Teachers are held to the 24 hour window measured
// from the recorded date; admins and superAdmins are not.
func (s *AttendanceService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	sheet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance record")
	}

	scope, err := resolveScope(ctx, claims, s.students)
	if err != nil {
		return err
	}
	if ok, reason := scope.CanDelete(sheet, s.now()); !ok {
		return appErrors.Clone(appErrors.ErrForbidden, reason)
	}

	if err := s.repo.Delete(ctx, sheet.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	s.invalidateStats(ctx, sheet.ClassroomID)
	return nil
}

// ClassroomStats aggregates per-student and global presence tallies for a
// classroom, optionally bounded by a date range.
func (s *AttendanceService) ClassroomStats(ctx context.Context, claims *models.JWTClaims, classroomID string, req StatsRequest) (*models.ClassroomStats, error) {
	classroom, err := s.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch classroom")
	}
	if err := s.checkClassroomAccess(ctx, claims, classroom); err != nil {
		return nil, err
	}

	from, to, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	cacheKey := statsCacheKey("classroom", classroomID, req)
	var cached models.ClassroomStats
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	sheets, err := s.repo.ListForClassroom(ctx, classroomID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}
	roster, err := s.students.ListNamesByClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom students")
	}

	stats := &models.ClassroomStats{Students: make([]models.StudentTally, 0, len(roster))}
	for _, student := range roster {
		tally := models.StudentTally{StudentID: student.ID, FirstName: student.FirstName, LastName: student.LastName}
		for _, sheet := range sheets {
			for _, entry := range sheet.Records {
				if entry.StudentID == student.ID {
					tally.Stats.Add(entry.Status)
					break
				}
			}
		}
		tally.Stats.Finalize()
		stats.Students = append(stats.Students, tally)
	}
	for _, sheet := range sheets {
		for _, entry := range sheet.Records {
			stats.Global.Add(entry.Status)
		}
	}
	stats.Global.Finalize()

	s.cache.Set(ctx, cacheKey, stats)
	return stats, nil
}

// StudentStats aggregates one student's presence tallies and history.
func (s *AttendanceService) StudentStats(ctx context.Context, claims *models.JWTClaims, studentID string, req StatsRequest) (*models.StudentStats, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if err := s.checkStudentAccess(ctx, claims, student); err != nil {
		return nil, err
	}

	from, to, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	cacheKey := statsCacheKey("student", studentID, req)
	var cached models.StudentStats
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	history, err := s.repo.StudentHistory(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	stats := &models.StudentStats{
		Student: models.StudentName{ID: student.ID, FirstName: student.FirstName, LastName: student.LastName},
		Details: history,
	}
	for _, row := range history {
		stats.Stats.Add(row.Status)
	}
	stats.Stats.Finalize()

	s.cache.Set(ctx, cacheKey, stats)
	return stats, nil
}

// checkClassroomAccess applies the stats visibility rule: admins are bound
// to their school; teachers qualify through a direct classroom assignment or
// any assignment to the classroom's school.
func (s *AttendanceService) checkClassroomAccess(ctx context.Context, claims *models.JWTClaims, classroom *models.Classroom) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID != classroom.SchoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "this classroom does not belong to your school")
		}
		return nil
	case models.RoleTeacher:
		assigned, err := s.assignments.ExistsForTeacherClassroom(ctx, claims.UserID, classroom.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom access")
		}
		if assigned {
			return nil
		}
		inSchool, err := s.schools.IsAssignedToSchool(ctx, claims.UserID, classroom.SchoolID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school access")
		}
		if !inSchool {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this classroom")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this classroom")
	}
}

// checkStudentAccess applies the student stats visibility rule.
func (s *AttendanceService) checkStudentAccess(ctx context.Context, claims *models.JWTClaims, student *models.Student) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID != student.SchoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "this student does not belong to your school")
		}
		return nil
	case models.RoleTeacher:
		if student.ClassroomID != nil {
			teaches, err := s.assignments.ExistsForTeacherClassroom(ctx, claims.UserID, *student.ClassroomID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom access")
			}
			if teaches {
				return nil
			}
		}
		inSchool, err := s.schools.IsAssignedToSchool(ctx, claims.UserID, student.SchoolID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school access")
		}
		if !inSchool {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this student")
		}
		return nil
	case models.RoleStudent:
		self, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil || self.ID != student.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "you can only access your own statistics")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this student")
	}
}

// validateRoster checks every record references an enrolled student and a
// known status. Membership is compared by cardinality: any extra, missing or
// duplicated student fails validation.
func (s *AttendanceService) validateRoster(ctx context.Context, classroomID string, records []AttendanceEntryRequest) error {
	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.StudentID
	}
	enrolled, err := s.students.CountInClassroom(ctx, classroomID, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify classroom roster")
	}
	if enrolled != len(ids) {
		return appErrors.Clone(appErrors.ErrValidation, "some students do not belong to this classroom")
	}
	for _, record := range records {
		if !models.AttendanceStatus(record.Status).Valid() {
			return appErrors.Clone(appErrors.ErrValidation, `status must be "present", "absent", "late" or "excused"`)
		}
	}
	return nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, classroomID string) {
	s.cache.Invalidate(ctx, "stats:classroom:"+classroomID+":*")
	s.cache.Invalidate(ctx, "stats:student:*")
}

func statsCacheKey(kind, id string, req StatsRequest) string {
	return fmt.Sprintf("stats:%s:%s:%s:%s", kind, id, req.StartDate, req.EndDate)
}

func parseRange(req StatsRequest) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if req.StartDate != "" {
		day, err := parseDate(req.StartDate)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid startDate format, expected YYYY-MM-DD")
		}
		start := startOfDay(day)
		from = &start
	}
	if req.EndDate != "" {
		day, err := parseDate(req.EndDate)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid endDate format, expected YYYY-MM-DD")
		}
		end := endOfDay(day)
		to = &end
	}
	return from, to, nil
}

// parseDate accepts a plain day or an RFC3339 timestamp. Zoned timestamps
// are normalized to UTC before callers bucket them into days, so the same
// calendar day always lands on the same stored midnight.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func toEntries(records []AttendanceEntryRequest) []models.AttendanceEntry {
	entries := make([]models.AttendanceEntry, len(records))
	for i, record := range records {
		entries[i] = models.AttendanceEntry{
			StudentID: record.StudentID,
			Status:    models.AttendanceStatus(record.Status),
			Notes:     record.Notes,
		}
	}
	return entries
}
