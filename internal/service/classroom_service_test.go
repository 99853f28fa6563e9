package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type mockClassroomRepo struct {
	classroom  *models.Classroom
	created    *models.Classroom
	deleted    []string
	listSchool string
}

func (m *mockClassroomRepo) List(_ context.Context, schoolID string, _, _ int) ([]models.ClassroomDetail, int, error) {
	m.listSchool = schoolID
	return nil, 0, nil
}

func (m *mockClassroomRepo) FindByID(_ context.Context, id string) (*models.Classroom, error) {
	if m.classroom == nil || m.classroom.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.classroom, nil
}

func (m *mockClassroomRepo) Create(_ context.Context, classroom *models.Classroom) error {
	m.created = classroom
	return nil
}

func (m *mockClassroomRepo) Update(_ context.Context, classroom *models.Classroom) error {
	m.classroom = classroom
	return nil
}

func (m *mockClassroomRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockClassroomStudents struct {
	count int
}

func (m *mockClassroomStudents) CountByClassroom(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type mockClassroomCourses struct {
	count int
}

func (m *mockClassroomCourses) CountForClassroom(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type classroomFixture struct {
	repo        *mockClassroomRepo
	schools     *mockSchoolStore
	memberships *mockTeacherReader
	svc         *ClassroomService
}

func newClassroomFixture() *classroomFixture {
	f := &classroomFixture{
		repo: &mockClassroomRepo{classroom: &models.Classroom{ID: "class-1", Name: "6e A", Level: "6e", SchoolID: "school-1"}},
		schools: &mockSchoolStore{schools: map[string]*models.School{
			"school-1": {ID: "school-1"},
			"school-2": {ID: "school-2"},
		}},
		memberships: &mockTeacherReader{assigned: true},
	}
	f.svc = NewClassroomService(f.repo, f.schools, &mockClassroomStudents{}, &mockClassroomCourses{}, f.memberships, nil, zap.NewNop())
	return f
}

func classroomRequest(schoolID string) ClassroomRequest {
	return ClassroomRequest{Name: "6e A", Level: "6e", SchoolID: schoolID}
}

func TestCreateClassroomAdminOtherSchoolForbidden(t *testing.T) {
	f := newClassroomFixture()
	_, err := f.svc.Create(context.Background(), adminClaims("school-2"), classroomRequest("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "your own school")
	assert.Nil(t, f.repo.created)
}

func TestCreateClassroomAdminOwnSchool(t *testing.T) {
	f := newClassroomFixture()
	classroom, err := f.svc.Create(context.Background(), adminClaims("school-1"), classroomRequest("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "school-1", classroom.SchoolID)
	require.NotNil(t, f.repo.created)
}

func TestUpdateClassroomAdminOtherSchoolForbidden(t *testing.T) {
	f := newClassroomFixture()
	_, err := f.svc.Update(context.Background(), adminClaims("school-2"), "class-1", classroomRequest("school-1"))
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteClassroomAdminOtherSchoolForbidden(t *testing.T) {
	f := newClassroomFixture()
	err := f.svc.Delete(context.Background(), adminClaims("school-2"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}

func TestGetClassroomAdminOtherSchoolForbidden(t *testing.T) {
	f := newClassroomFixture()
	_, err := f.svc.Get(context.Background(), adminClaims("school-2"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	_, err = f.svc.Get(context.Background(), adminClaims("school-1"), "class-1")
	require.NoError(t, err)
}

func TestGetClassroomTeacherNeedsMembership(t *testing.T) {
	f := newClassroomFixture()
	f.memberships.assigned = false
	_, err := f.svc.Get(context.Background(), teacherClaims("teacher-1"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	f.memberships.assigned = true
	_, err = f.svc.Get(context.Background(), teacherClaims("teacher-1"), "class-1")
	require.NoError(t, err)
}

func TestListClassroomsAdminPinnedToOwnSchool(t *testing.T) {
	f := newClassroomFixture()
	_, _, _, err := f.svc.List(context.Background(), adminClaims("school-1"), "school-9", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "school-1", f.repo.listSchool)
}

func TestListClassroomsBySchoolUnknownSchool(t *testing.T) {
	f := newClassroomFixture()
	_, _, err := f.svc.ListBySchool(context.Background(), superAdminClaims(), "ghost")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestListClassroomsBySchoolAdminOtherForbidden(t *testing.T) {
	f := newClassroomFixture()
	_, _, err := f.svc.ListBySchool(context.Background(), adminClaims("school-1"), "school-2")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteClassroomBlockedByStudents(t *testing.T) {
	f := newClassroomFixture()
	students := &mockClassroomStudents{count: 12}
	f.svc = NewClassroomService(f.repo, f.schools, students, &mockClassroomCourses{}, f.memberships, nil, zap.NewNop())
	err := f.svc.Delete(context.Background(), superAdminClaims(), "class-1")
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}
