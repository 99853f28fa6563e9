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

type mockTeacherRepo struct {
	teacher        *models.Teacher
	assigned       bool
	assignments    []models.TeacherSchoolAssignment
	schoolCount    int
	replacedIDs    []string
	replacedPrim   string
	deleted        []string
	replaceCalls   int
	createdTeacher *models.Teacher
	listSchool     string
}

func (m *mockTeacherRepo) List(_ context.Context, schoolID, _ string, _, _ int) ([]models.Teacher, int, error) {
	m.listSchool = schoolID
	return nil, 0, nil
}

func (m *mockTeacherRepo) ListBySchool(_ context.Context, _ string) ([]models.SchoolTeacher, error) {
	return nil, nil
}

func (m *mockTeacherRepo) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if m.teacher == nil || m.teacher.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.teacher, nil
}

func (m *mockTeacherRepo) IsAssignedToSchool(_ context.Context, _, _ string) (bool, error) {
	return m.assigned, nil
}

func (m *mockTeacherRepo) SchoolAssignments(_ context.Context, _ string) ([]models.TeacherSchoolAssignment, error) {
	return m.assignments, nil
}

func (m *mockTeacherRepo) CountSchoolAssignments(_ context.Context, _ string) (int, error) {
	return m.schoolCount, nil
}

func (m *mockTeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	m.createdTeacher = teacher
	return nil
}

func (m *mockTeacherRepo) Update(_ context.Context, teacher *models.Teacher) error {
	m.teacher = teacher
	return nil
}

func (m *mockTeacherRepo) ReplaceSchoolAssignments(_ context.Context, _ string, schoolIDs []string, primarySchoolID string) ([]models.TeacherSchoolAssignment, error) {
	m.replaceCalls++
	m.replacedIDs = schoolIDs
	m.replacedPrim = primarySchoolID
	return m.assignments, nil
}

func (m *mockTeacherRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSchoolStore struct {
	schools map[string]*models.School
}

func (m *mockSchoolStore) FindByID(_ context.Context, id string) (*models.School, error) {
	school, ok := m.schools[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return school, nil
}

type mockCourseCounter struct {
	count int
}

func (m *mockCourseCounter) CountForTeacher(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type teacherFixture struct {
	repo    *mockTeacherRepo
	schools *mockSchoolStore
	courses *mockCourseCounter
	svc     *TeacherService
}

func newTeacherFixture() *teacherFixture {
	f := &teacherFixture{
		repo: &mockTeacherRepo{
			teacher:  &models.Teacher{ID: "teacher-1", SchoolID: "school-1", Email: "awa@example.com"},
			assigned: true,
		},
		schools: &mockSchoolStore{schools: map[string]*models.School{
			"school-1": {ID: "school-1"},
			"school-2": {ID: "school-2"},
		}},
		courses: &mockCourseCounter{},
	}
	f.svc = NewTeacherService(f.repo, f.schools, f.courses, nil, zap.NewNop())
	return f
}

func TestCreateTeacherUnknownSchool(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Create(context.Background(), superAdminClaims(), TeacherRequest{
		FirstName: "Awa", LastName: "Diop", Email: "awa@example.com", SchoolID: "missing",
	})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
	assert.Nil(t, f.repo.createdTeacher)
}

func TestCreateTeacherAdminOtherSchoolForbidden(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Create(context.Background(), adminClaims("school-2"), TeacherRequest{
		FirstName: "Awa", LastName: "Diop", Email: "awa@example.com", SchoolID: "school-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "your own school")
	assert.Nil(t, f.repo.createdTeacher)
}

func TestUpdateTeacherRejectsSchoolChange(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Update(context.Background(), superAdminClaims(), "teacher-1", TeacherRequest{
		FirstName: "Awa", LastName: "Diop", Email: "awa@example.com", SchoolID: "school-2",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Message, "manage-schools")
}

func TestUpdateTeacherAdminOtherSchoolForbidden(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Update(context.Background(), adminClaims("school-2"), "teacher-1", TeacherRequest{
		FirstName: "Awa", LastName: "Diop", Email: "awa@example.com", SchoolID: "school-1",
	})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestGetTeacherSelfOnly(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Get(context.Background(), teacherClaims("teacher-2"), "teacher-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "own profile")

	_, err = f.svc.Get(context.Background(), teacherClaims("teacher-1"), "teacher-1")
	require.NoError(t, err)
}

func TestGetTeacherAdminOtherSchoolForbidden(t *testing.T) {
	f := newTeacherFixture()
	f.repo.assigned = false
	_, err := f.svc.Get(context.Background(), adminClaims("school-2"), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestListTeachersAdminPinnedToOwnSchool(t *testing.T) {
	f := newTeacherFixture()
	_, _, _, err := f.svc.List(context.Background(), adminClaims("school-1"), "school-9", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "school-1", f.repo.listSchool)
}

func TestManageSchoolsPrimaryMustBeInSet(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.ManageSchools(context.Background(), superAdminClaims(), ManageSchoolsRequest{
		TeacherID:       "teacher-1",
		SchoolIDs:       []string{"school-1"},
		PrimarySchoolID: "school-2",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "primarySchoolId must be one of schoolIds")
	assert.Zero(t, f.repo.replaceCalls)
}

func TestManageSchoolsRejectsDuplicates(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.ManageSchools(context.Background(), superAdminClaims(), ManageSchoolsRequest{
		TeacherID:       "teacher-1",
		SchoolIDs:       []string{"school-1", "school-1"},
		PrimarySchoolID: "school-1",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "duplicates")
}

func TestManageSchoolsUnknownSchool(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.ManageSchools(context.Background(), superAdminClaims(), ManageSchoolsRequest{
		TeacherID:       "teacher-1",
		SchoolIDs:       []string{"school-1", "ghost"},
		PrimarySchoolID: "school-1",
	})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestManageSchoolsAdminConfinedToOwnSchool(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.ManageSchools(context.Background(), adminClaims("school-1"), ManageSchoolsRequest{
		TeacherID:       "teacher-1",
		SchoolIDs:       []string{"school-1", "school-2"},
		PrimarySchoolID: "school-1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "within your own school")
	assert.Zero(t, f.repo.replaceCalls)
}

func TestManageSchoolsReplacesSet(t *testing.T) {
	f := newTeacherFixture()
	f.repo.assignments = []models.TeacherSchoolAssignment{
		{SchoolID: "school-1", IsPrimary: false},
		{SchoolID: "school-2", IsPrimary: true},
	}
	result, err := f.svc.ManageSchools(context.Background(), superAdminClaims(), ManageSchoolsRequest{
		TeacherID:       "teacher-1",
		SchoolIDs:       []string{"school-1", "school-2"},
		PrimarySchoolID: "school-2",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.replaceCalls)
	assert.Equal(t, []string{"school-1", "school-2"}, f.repo.replacedIDs)
	assert.Equal(t, "school-2", f.repo.replacedPrim)
	assert.Len(t, result.SchoolAssignments, 2)
}

func TestDeleteTeacherBlockedByCourses(t *testing.T) {
	f := newTeacherFixture()
	f.courses.count = 2
	err := f.svc.Delete(context.Background(), superAdminClaims(), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}

func TestDeleteTeacherAdminOtherSchoolForbidden(t *testing.T) {
	f := newTeacherFixture()
	err := f.svc.Delete(context.Background(), adminClaims("school-2"), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}

func TestDeleteMultiSchoolTeacherRequiresSuperAdmin(t *testing.T) {
	f := newTeacherFixture()
	f.repo.schoolCount = 2
	admin := adminClaims("school-1")

	err := f.svc.Delete(context.Background(), admin, "teacher-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "superAdmin")

	require.NoError(t, f.svc.Delete(context.Background(), superAdminClaims(), "teacher-1"))
	assert.Equal(t, []string{"teacher-1"}, f.repo.deleted)
}
