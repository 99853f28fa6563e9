package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type mockAttendanceRepo struct {
	sheets      map[string]*models.Attendance
	detail      *models.AttendanceDetail
	slotTaken   bool
	createErr   error
	created     *models.Attendance
	replaced    []models.AttendanceEntry
	deleted     []string
	forClass    []models.Attendance
	history     []models.StudentAttendanceDetail
	listResult  []models.Attendance
	listTotal   int
	listFilter  models.AttendanceFilter
	createCalls int
}

func (m *mockAttendanceRepo) List(_ context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	m.listFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockAttendanceRepo) FindByID(_ context.Context, id string) (*models.Attendance, error) {
	sheet, ok := m.sheets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sheet, nil
}

func (m *mockAttendanceRepo) FindDetailByID(_ context.Context, id string) (*models.AttendanceDetail, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockAttendanceRepo) ExistsForSlot(_ context.Context, _ string, _ time.Time) (bool, error) {
	return m.slotTaken, nil
}

func (m *mockAttendanceRepo) Create(_ context.Context, sheet *models.Attendance) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.created = sheet
	return nil
}

func (m *mockAttendanceRepo) ReplaceEntries(_ context.Context, _ string, entries []models.AttendanceEntry) error {
	m.replaced = entries
	return nil
}

func (m *mockAttendanceRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAttendanceRepo) ListForClassroom(_ context.Context, _ string, _, _ *time.Time) ([]models.Attendance, error) {
	return m.forClass, nil
}

func (m *mockAttendanceRepo) StudentHistory(_ context.Context, _ string, _, _ *time.Time) ([]models.StudentAttendanceDetail, error) {
	return m.history, nil
}

type mockAssignmentReader struct {
	assignment *models.ClassroomAssignment
	teaches    bool
}

func (m *mockAssignmentReader) FindByID(_ context.Context, id string) (*models.ClassroomAssignment, error) {
	if m.assignment == nil || m.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.assignment, nil
}

func (m *mockAssignmentReader) ExistsForTeacherClassroom(_ context.Context, _, _ string) (bool, error) {
	return m.teaches, nil
}

type mockStudentReader struct {
	byUser   *models.Student
	byID     *models.Student
	enrolled int
	roster   []models.StudentName
}

func (m *mockStudentReader) FindByUserID(_ context.Context, _ string) (*models.Student, error) {
	if m.byUser == nil {
		return nil, sql.ErrNoRows
	}
	return m.byUser, nil
}

func (m *mockStudentReader) FindByID(_ context.Context, id string) (*models.Student, error) {
	if m.byID == nil || m.byID.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockStudentReader) CountInClassroom(_ context.Context, _ string, ids []string) (int, error) {
	if m.enrolled >= 0 {
		return m.enrolled, nil
	}
	return len(ids), nil
}

func (m *mockStudentReader) ListNamesByClassroom(_ context.Context, _ string) ([]models.StudentName, error) {
	return m.roster, nil
}

type mockClassroomReader struct {
	classroom *models.Classroom
}

func (m *mockClassroomReader) FindByID(_ context.Context, id string) (*models.Classroom, error) {
	if m.classroom == nil || m.classroom.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.classroom, nil
}

type mockSchoolMembership struct {
	assigned bool
}

func (m *mockSchoolMembership) IsAssignedToSchool(_ context.Context, _, _ string) (bool, error) {
	return m.assigned, nil
}

type fixture struct {
	repo        *mockAttendanceRepo
	assignments *mockAssignmentReader
	students    *mockStudentReader
	classrooms  *mockClassroomReader
	schools     *mockSchoolMembership
	svc         *AttendanceService
}

func newFixture() *fixture {
	f := &fixture{
		repo: &mockAttendanceRepo{sheets: map[string]*models.Attendance{}},
		assignments: &mockAssignmentReader{assignment: &models.ClassroomAssignment{
			ID:          "assign-1",
			ClassroomID: "class-1",
			TeacherID:   "teacher-1",
			SubjectID:   "subject-1",
			SchoolID:    "school-1",
		}},
		students:   &mockStudentReader{enrolled: -1},
		classrooms: &mockClassroomReader{},
		schools:    &mockSchoolMembership{},
	}
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop())
	f.svc = NewAttendanceService(f.repo, f.assignments, f.students, f.classrooms, f.schools, cache, nil, nil, zap.NewNop())
	return f
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func validCreateRequest() CreateAttendanceRequest {
	return CreateAttendanceRequest{
		Date:                  "2026-03-09",
		ClassroomAssignmentID: "assign-1",
		Records: []AttendanceEntryRequest{
			{StudentID: "student-1", Status: "present"},
			{StudentID: "student-2", Status: "absent"},
		},
	}
}

func TestCreateAttendanceHappyPath(t *testing.T) {
	f := newFixture()
	sheet, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "assign-1", sheet.ClassroomAssignmentID)
	assert.Equal(t, "class-1", sheet.ClassroomID)
	assert.Equal(t, "school-1", sheet.SchoolID)
	assert.Len(t, sheet.Records, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), sheet.Date)
	require.NotNil(t, f.repo.created)
}

func TestCreateAttendanceUnknownAssignment(t *testing.T) {
	f := newFixture()
	req := validCreateRequest()
	req.ClassroomAssignmentID = "missing"
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), req)
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestCreateAttendanceForeignTeacherForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-2"), validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "not assigned to this course")
	assert.Zero(t, f.repo.createCalls)
}

func TestCreateAttendanceAdminWrongSchoolForbidden(t *testing.T) {
	f := newFixture()
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, SchoolID: strPtr("school-2")}
	_, err := f.svc.Create(context.Background(), claims, validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "school")
}

func TestCreateAttendanceSlotConflict(t *testing.T) {
	f := newFixture()
	f.repo.slotTaken = true
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Zero(t, f.repo.createCalls)
}

func TestCreateAttendanceConflictOnInsertRace(t *testing.T) {
	f := newFixture()
	raceErr := sql.ErrTxDone
	f.repo.createErr = raceErr
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop())
	f.svc = NewAttendanceService(f.repo, f.assignments, f.students, f.classrooms, f.schools, cache,
		func(err error) bool { return err == raceErr }, nil, zap.NewNop())

	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), validCreateRequest())
	require.Error(t, err)
	// The race surfaces the same conflict outcome as the pre-check.
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestCreateAttendanceRosterMismatch(t *testing.T) {
	f := newFixture()
	f.students.enrolled = 1
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), validCreateRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Message, "do not belong to this classroom")
}

func TestCreateAttendanceInvalidStatus(t *testing.T) {
	f := newFixture()
	req := validCreateRequest()
	req.Records[1].Status = "sick"
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), req)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestCreateAttendanceBadDate(t *testing.T) {
	f := newFixture()
	req := validCreateRequest()
	req.Date = "09/03/2026"
	_, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), req)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestUpdateAttendanceReplacesRecords(t *testing.T) {
	f := newFixture()
	f.repo.sheets["att-1"] = &models.Attendance{
		ID:          "att-1",
		TeacherID:   "teacher-1",
		ClassroomID: "class-1",
		SchoolID:    "school-1",
	}
	req := UpdateAttendanceRequest{Records: []AttendanceEntryRequest{
		{StudentID: "student-1", Status: "late"},
	}}
	_, err := f.svc.Update(context.Background(), teacherClaims("teacher-1"), "att-1", req)
	require.NoError(t, err)
	require.Len(t, f.repo.replaced, 1)
	assert.Equal(t, models.StatusLate, f.repo.replaced[0].Status)
}

func TestUpdateAttendanceForeignTeacherForbidden(t *testing.T) {
	f := newFixture()
	f.repo.sheets["att-1"] = &models.Attendance{ID: "att-1", TeacherID: "teacher-1", ClassroomID: "class-1"}
	req := UpdateAttendanceRequest{Records: []AttendanceEntryRequest{{StudentID: "student-1", Status: "present"}}}
	_, err := f.svc.Update(context.Background(), teacherClaims("teacher-2"), "att-1", req)
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteAttendanceTeacherWindow(t *testing.T) {
	f := newFixture()
	f.svc.now = func() time.Time { return time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC) }
	f.repo.sheets["old"] = &models.Attendance{
		ID:        "old",
		TeacherID: "teacher-1",
		Date:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	f.repo.sheets["fresh"] = &models.Attendance{
		ID:        "fresh",
		TeacherID: "teacher-1",
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	}

	err := f.svc.Delete(context.Background(), teacherClaims("teacher-1"), "old")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	require.NoError(t, f.svc.Delete(context.Background(), teacherClaims("teacher-1"), "fresh"))
	assert.Equal(t, []string{"fresh"}, f.repo.deleted)
}

func TestDeleteAttendanceAdminIgnoresWindow(t *testing.T) {
	f := newFixture()
	f.svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	f.repo.sheets["old"] = &models.Attendance{
		ID:       "old",
		SchoolID: "school-1",
		Date:     time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, SchoolID: strPtr("school-1")}
	require.NoError(t, f.svc.Delete(context.Background(), claims, "old"))
}

func TestListTeacherFilterOverride(t *testing.T) {
	f := newFixture()
	_, _, _, err := f.svc.List(context.Background(), teacherClaims("teacher-1"), ListAttendanceRequest{TeacherID: "teacher-9"})
	require.NoError(t, err)
	// A teacher cannot widen their scope through the teacherId filter.
	assert.Equal(t, "teacher-1", f.repo.listFilter.TeacherID)
}

func TestListAdminTeacherFilterHonored(t *testing.T) {
	f := newFixture()
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, SchoolID: strPtr("school-1")}
	_, _, _, err := f.svc.List(context.Background(), claims, ListAttendanceRequest{TeacherID: "teacher-9"})
	require.NoError(t, err)
	assert.Equal(t, "teacher-9", f.repo.listFilter.TeacherID)
	assert.Equal(t, "school-1", f.repo.listFilter.SchoolID)
}

func TestListDefaultsPagination(t *testing.T) {
	f := newFixture()
	_, _, page, err := f.svc.List(context.Background(), teacherClaims("teacher-1"), ListAttendanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, f.repo.listFilter.Limit)
}

func TestGetAttendanceOutOfScopeForbidden(t *testing.T) {
	f := newFixture()
	f.repo.detail = &models.AttendanceDetail{
		Attendance: models.Attendance{ID: "att-1", TeacherID: "teacher-1", SchoolID: "school-1"},
	}
	_, err := f.svc.Get(context.Background(), teacherClaims("teacher-2"), "att-1")
	require.Error(t, err)
	// Existence was revealed by the fetch, so the answer is forbidden.
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestClassroomStatsTallies(t *testing.T) {
	f := newFixture()
	f.classrooms.classroom = &models.Classroom{ID: "class-1", SchoolID: "school-1"}
	f.assignments.teaches = true
	f.students.roster = []models.StudentName{
		{ID: "student-1", FirstName: "Awa", LastName: "Diop"},
		{ID: "student-2", FirstName: "Moussa", LastName: "Ndiaye"},
	}
	f.repo.forClass = []models.Attendance{
		{ID: "a1", Records: []models.AttendanceEntry{
			{StudentID: "student-1", Status: models.StatusPresent},
			{StudentID: "student-2", Status: models.StatusAbsent},
		}},
		{ID: "a2", Records: []models.AttendanceEntry{
			{StudentID: "student-1", Status: models.StatusPresent},
			{StudentID: "student-2", Status: models.StatusLate},
		}},
	}

	stats, err := f.svc.ClassroomStats(context.Background(), teacherClaims("teacher-1"), "class-1", StatsRequest{})
	require.NoError(t, err)
	require.Len(t, stats.Students, 2)

	first := stats.Students[0]
	assert.Equal(t, 2, first.Stats.TotalPresent)
	assert.InDelta(t, 100.0, first.Stats.PresentPercentage, 0.001)

	second := stats.Students[1]
	assert.Equal(t, 1, second.Stats.TotalAbsent)
	assert.Equal(t, 1, second.Stats.TotalLate)
	assert.InDelta(t, 50.0, second.Stats.AbsentPercentage, 0.001)

	assert.Equal(t, 4, stats.Global.Total)
	assert.InDelta(t, 50.0, stats.Global.PresentPercentage, 0.001)
}

func TestClassroomStatsZeroTotalPercentages(t *testing.T) {
	f := newFixture()
	f.classrooms.classroom = &models.Classroom{ID: "class-1", SchoolID: "school-1"}
	f.assignments.teaches = true
	f.students.roster = []models.StudentName{{ID: "student-1"}}

	stats, err := f.svc.ClassroomStats(context.Background(), teacherClaims("teacher-1"), "class-1", StatsRequest{})
	require.NoError(t, err)
	require.Len(t, stats.Students, 1)
	assert.Zero(t, stats.Students[0].Stats.Total)
	assert.Zero(t, stats.Students[0].Stats.PresentPercentage)
	assert.Zero(t, stats.Global.PresentPercentage)
}

func TestClassroomStatsTeacherSameSchoolFallback(t *testing.T) {
	f := newFixture()
	f.classrooms.classroom = &models.Classroom{ID: "class-1", SchoolID: "school-1"}
	f.assignments.teaches = false
	f.schools.assigned = true

	_, err := f.svc.ClassroomStats(context.Background(), teacherClaims("teacher-1"), "class-1", StatsRequest{})
	require.NoError(t, err)

	f.schools.assigned = false
	_, err = f.svc.ClassroomStats(context.Background(), teacherClaims("teacher-1"), "class-1", StatsRequest{})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestStudentStatsSelfAccessOnly(t *testing.T) {
	f := newFixture()
	f.students.byID = &models.Student{ID: "student-1", SchoolID: "school-1"}
	f.students.byUser = &models.Student{ID: "student-1"}
	f.repo.history = []models.StudentAttendanceDetail{
		{Status: models.StatusPresent},
		{Status: models.StatusExcused},
	}

	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	stats, err := f.svc.StudentStats(context.Background(), claims, "student-1", StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stats.TotalPresent)
	assert.Equal(t, 1, stats.Stats.TotalExcused)
	assert.Len(t, stats.Details, 2)

	f.students.byUser = &models.Student{ID: "student-2"}
	_, err = f.svc.StudentStats(context.Background(), claims, "student-1", StatsRequest{})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestStatsInvalidRange(t *testing.T) {
	f := newFixture()
	f.classrooms.classroom = &models.Classroom{ID: "class-1", SchoolID: "school-1"}
	f.assignments.teaches = true
	_, err := f.svc.ClassroomStats(context.Background(), teacherClaims("teacher-1"), "class-1", StatsRequest{StartDate: "last week"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestCreateAttendanceZonedDateStoredAsUTCDay(t *testing.T) {
	f := newFixture()
	req := validCreateRequest()
	req.Date = "2026-03-09T10:00:00+02:00"
	sheet, err := f.svc.Create(context.Background(), teacherClaims("teacher-1"), req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), sheet.Date)

	// The same day recorded with a different offset lands on the same
	// stored midnight, so the one-sheet-per-day constraint can hold.
	g := newFixture()
	req2 := validCreateRequest()
	req2.Date = "2026-03-09T23:30:00-05:00"
	sheet2, err := g.svc.Create(context.Background(), teacherClaims("teacher-1"), req2)
	require.NoError(t, err)
	assert.True(t, sheet.Date.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
	assert.True(t, sheet2.Date.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}
