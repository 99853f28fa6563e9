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

type mockStudentRepo struct {
	students   map[string]*models.Student
	byUser     map[string]*models.Student
	taken      bool
	created    *models.Student
	deleted    []string
	listFilter models.StudentFilter
}

func (m *mockStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.listFilter = filter
	return nil, 0, nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	student, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) ExistsByMatricule(_ context.Context, _, _, _ string) (bool, error) {
	return m.taken, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockEntryCleaner struct {
	cleaned []string
}

func (m *mockEntryCleaner) DeleteEntriesForStudent(_ context.Context, studentID string) error {
	m.cleaned = append(m.cleaned, studentID)
	return nil
}

type studentFixture struct {
	repo    *mockStudentRepo
	cleaner *mockEntryCleaner
	svc     *StudentService
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func newStudentFixture() *studentFixture {
	enrolled := &models.Student{
		ID:        "student-1",
		FirstName: "Awa",
		LastName:  "Diop",
		Email:     "awa.diop@example.org",
		Matricule: "MAT-001",
		Gender:    models.GenderFemale,
		BirthDate: time.Date(2010, 5, 14, 0, 0, 0, 0, time.UTC),
		SchoolID:  "school-1",
		UserID:    strPtr("user-1"),
	}
	f := &studentFixture{
		repo: &mockStudentRepo{
			students: map[string]*models.Student{"student-1": enrolled},
			byUser:   map[string]*models.Student{"user-1": enrolled},
		},
		cleaner: &mockEntryCleaner{},
	}
	schools := &mockSchoolStore{schools: map[string]*models.School{
		"school-1": {ID: "school-1"},
		"school-2": {ID: "school-2"},
	}}
	classrooms := &mockClassroomReader{classroom: &models.Classroom{ID: "class-1", SchoolID: "school-1"}}
	f.svc = NewStudentService(f.repo, schools, classrooms, f.cleaner, nil, zap.NewNop())
	return f
}

func validStudentRequest(schoolID string) StudentRequest {
	return StudentRequest{
		FirstName: "Moussa",
		LastName:  "Ndiaye",
		Email:     "moussa.ndiaye@example.org",
		Matricule: "MAT-002",
		Gender:    "M",
		BirthDate: "2011-02-20",
		SchoolID:  schoolID,
	}
}

func TestCreateStudentAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, err := f.svc.Create(context.Background(), adminClaims("school-2"), validStudentRequest("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "your own school")
	assert.Nil(t, f.repo.created)
}

func TestCreateStudentAdminOwnSchool(t *testing.T) {
	f := newStudentFixture()
	student, err := f.svc.Create(context.Background(), adminClaims("school-1"), validStudentRequest("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "school-1", student.SchoolID)
	require.NotNil(t, f.repo.created)
}

func TestUpdateStudentAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, err := f.svc.Update(context.Background(), adminClaims("school-2"), "student-1", validStudentRequest("school-1"))
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteStudentAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	err := f.svc.Delete(context.Background(), adminClaims("school-2"), "student-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
	assert.Empty(t, f.cleaner.cleaned)
}

func TestGetStudentAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, err := f.svc.Get(context.Background(), adminClaims("school-2"), "student-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestGetStudentSelfOnly(t *testing.T) {
	f := newStudentFixture()
	other := &models.Student{ID: "student-2", SchoolID: "school-1"}
	f.repo.students["student-2"] = other

	_, err := f.svc.Get(context.Background(), studentClaims("user-1"), "student-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "own profile")

	self, err := f.svc.Get(context.Background(), studentClaims("user-1"), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", self.ID)
}

func TestListStudentsAdminPinnedToOwnSchool(t *testing.T) {
	f := newStudentFixture()
	_, _, _, err := f.svc.List(context.Background(), adminClaims("school-1"), models.StudentFilter{SchoolID: "school-9", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "school-1", f.repo.listFilter.SchoolID)
}

func TestListStudentsStudentSeesOnlySelf(t *testing.T) {
	f := newStudentFixture()
	students, total, _, err := f.svc.List(context.Background(), studentClaims("user-1"), models.StudentFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, students, 1)
	assert.Equal(t, "student-1", students[0].ID)
}

func TestListStudentsByClassAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, _, err := f.svc.ListByClass(context.Background(), adminClaims("school-2"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestListStudentsByClassStudentForbidden(t *testing.T) {
	f := newStudentFixture()
	_, _, err := f.svc.ListByClass(context.Background(), studentClaims("user-1"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestListStudentsBySchoolAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, _, err := f.svc.ListBySchool(context.Background(), adminClaims("school-1"), "school-2")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestExportClassRosterAdminOtherSchoolForbidden(t *testing.T) {
	f := newStudentFixture()
	_, _, err := f.svc.ExportClassRoster(context.Background(), adminClaims("school-2"), "class-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}
