package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/middleware"
	"github.com/ecolehub/presence-api/internal/models"
	"github.com/ecolehub/presence-api/internal/service"
	"github.com/ecolehub/presence-api/pkg/response"
)

type stubAttendanceRepo struct {
	sheets    map[string]*models.Attendance
	listTotal int
}

func (s *stubAttendanceRepo) List(_ context.Context, _ models.AttendanceFilter) ([]models.Attendance, int, error) {
	return nil, s.listTotal, nil
}

func (s *stubAttendanceRepo) FindByID(_ context.Context, id string) (*models.Attendance, error) {
	sheet, ok := s.sheets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return sheet, nil
}

func (s *stubAttendanceRepo) FindDetailByID(_ context.Context, _ string) (*models.AttendanceDetail, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAttendanceRepo) ExistsForSlot(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (s *stubAttendanceRepo) Create(_ context.Context, sheet *models.Attendance) error {
	s.sheets[sheet.ID] = sheet
	return nil
}

func (s *stubAttendanceRepo) ReplaceEntries(_ context.Context, _ string, _ []models.AttendanceEntry) error {
	return nil
}

func (s *stubAttendanceRepo) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *stubAttendanceRepo) ListForClassroom(_ context.Context, _ string, _, _ *time.Time) ([]models.Attendance, error) {
	return nil, nil
}

func (s *stubAttendanceRepo) StudentHistory(_ context.Context, _ string, _, _ *time.Time) ([]models.StudentAttendanceDetail, error) {
	return nil, nil
}

type stubAssignmentReader struct {
	assignment *models.ClassroomAssignment
}

func (s *stubAssignmentReader) FindByID(_ context.Context, id string) (*models.ClassroomAssignment, error) {
	if s.assignment == nil || s.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.assignment, nil
}

func (s *stubAssignmentReader) ExistsForTeacherClassroom(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type stubStudentReader struct{}

func (stubStudentReader) FindByUserID(_ context.Context, _ string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (stubStudentReader) FindByID(_ context.Context, _ string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (stubStudentReader) CountInClassroom(_ context.Context, _ string, ids []string) (int, error) {
	return len(ids), nil
}

func (stubStudentReader) ListNamesByClassroom(_ context.Context, _ string) ([]models.StudentName, error) {
	return nil, nil
}

type stubClassroomReader struct{}

func (stubClassroomReader) FindByID(_ context.Context, _ string) (*models.Classroom, error) {
	return nil, sql.ErrNoRows
}

type stubSchoolMembership struct{}

func (stubSchoolMembership) IsAssignedToSchool(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func newAttendanceHandlerFixture() (*AttendanceHandler, *stubAttendanceRepo) {
	repo := &stubAttendanceRepo{sheets: map[string]*models.Attendance{}}
	cache := service.NewCacheService(nil, nil, time.Minute, zap.NewNop())
	svc := service.NewAttendanceService(
		repo,
		&stubAssignmentReader{assignment: &models.ClassroomAssignment{
			ID:          "assign-1",
			ClassroomID: "class-1",
			TeacherID:   "teacher-1",
			SubjectID:   "subject-1",
			SchoolID:    "school-1",
		}},
		stubStudentReader{},
		stubClassroomReader{},
		stubSchoolMembership{},
		cache, nil, nil, zap.NewNop(),
	)
	return NewAttendanceHandler(svc), repo
}

func performWithClaims(handler gin.HandlerFunc, claims *models.JWTClaims, method, target, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	handler(c)
	return w
}

func TestAttendanceHandlerCreateSuccessEnvelope(t *testing.T) {
	handler, repo := newAttendanceHandlerFixture()
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	body := `{"date":"2026-03-09","classroomAssignmentId":"assign-1","records":[{"studentId":"student-1","status":"present"}]}`

	w := performWithClaims(handler.Create, claims, http.MethodPost, "/attendances", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "attendance recorded", envelope.Message)
	assert.NotNil(t, envelope.Data)
	assert.Len(t, repo.sheets, 1)
}

func TestAttendanceHandlerCreateMalformedJSON(t *testing.T) {
	handler, _ := newAttendanceHandlerFixture()
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

	w := performWithClaims(handler.Create, claims, http.MethodPost, "/attendances", `{"date":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.NotEmpty(t, envelope.Message)
}

func TestAttendanceHandlerCreateForeignTeacherForbidden(t *testing.T) {
	handler, _ := newAttendanceHandlerFixture()
	claims := &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher}
	body := `{"date":"2026-03-09","classroomAssignmentId":"assign-1","records":[{"studentId":"student-1","status":"present"}]}`

	w := performWithClaims(handler.Create, claims, http.MethodPost, "/attendances", body)
	require.Equal(t, http.StatusForbidden, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Message, "not assigned to this course")
}

func TestAttendanceHandlerGetNotFound(t *testing.T) {
	handler, _ := newAttendanceHandlerFixture()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendances/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleSuperAdmin})

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerListPaginationEnvelope(t *testing.T) {
	handler, _ := newAttendanceHandlerFixture()
	claims := &models.JWTClaims{UserID: "admin", Role: models.RoleSuperAdmin}

	w := performWithClaims(handler.List, claims, http.MethodGet, "/attendances?page=2&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	require.NotNil(t, envelope.CurrentPage)
	assert.Equal(t, 2, *envelope.CurrentPage)
	require.NotNil(t, envelope.Total)
	assert.Equal(t, 0, *envelope.Total)
}

func TestAttendanceHandlerListUnparseableLimitDefaults(t *testing.T) {
	handler, repo := newAttendanceHandlerFixture()
	repo.listTotal = 25
	claims := &models.JWTClaims{UserID: "admin", Role: models.RoleSuperAdmin}

	w := performWithClaims(handler.List, claims, http.MethodGet, "/attendances?page=abc&limit=abc", "")
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.TotalPages)
	assert.Equal(t, 3, *envelope.TotalPages)
	require.NotNil(t, envelope.CurrentPage)
	assert.Equal(t, 1, *envelope.CurrentPage)
}

func TestRequireRolesDeniesUnlistedRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/attendances/att-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, c.IsAborted())
}
