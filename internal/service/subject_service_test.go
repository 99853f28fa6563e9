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

type mockSubjectRepo struct {
	subject    *models.Subject
	created    *models.Subject
	deleted    []string
	listSchool string
}

func (m *mockSubjectRepo) List(_ context.Context, schoolID, _ string, _, _ int) ([]models.Subject, int, error) {
	m.listSchool = schoolID
	return nil, 0, nil
}

func (m *mockSubjectRepo) FindByID(_ context.Context, id string) (*models.Subject, error) {
	if m.subject == nil || m.subject.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.subject, nil
}

func (m *mockSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	m.created = subject
	return nil
}

func (m *mockSubjectRepo) Update(_ context.Context, subject *models.Subject) error {
	m.subject = subject
	return nil
}

func (m *mockSubjectRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSubjectCourses struct {
	count int
}

func (m *mockSubjectCourses) CountForSubject(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type subjectFixture struct {
	repo        *mockSubjectRepo
	memberships *mockTeacherReader
	svc         *SubjectService
}

func newSubjectFixture() *subjectFixture {
	f := &subjectFixture{
		repo:        &mockSubjectRepo{subject: &models.Subject{ID: "subject-1", Name: "Mathématiques", SchoolID: "school-1"}},
		memberships: &mockTeacherReader{assigned: true},
	}
	schools := &mockSchoolStore{schools: map[string]*models.School{
		"school-1": {ID: "school-1"},
		"school-2": {ID: "school-2"},
	}}
	f.svc = NewSubjectService(f.repo, schools, &mockSubjectCourses{}, f.memberships, nil, zap.NewNop())
	return f
}

func TestCreateSubjectAdminOtherSchoolForbidden(t *testing.T) {
	f := newSubjectFixture()
	_, err := f.svc.Create(context.Background(), adminClaims("school-2"), SubjectRequest{Name: "Histoire", SchoolID: "school-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 403, appErr.Status)
	assert.Contains(t, appErr.Message, "your own school")
	assert.Nil(t, f.repo.created)
}

func TestCreateSubjectAdminOwnSchool(t *testing.T) {
	f := newSubjectFixture()
	subject, err := f.svc.Create(context.Background(), adminClaims("school-1"), SubjectRequest{Name: "Histoire", SchoolID: "school-1"})
	require.NoError(t, err)
	assert.Equal(t, "school-1", subject.SchoolID)
}

func TestUpdateSubjectAdminOtherSchoolForbidden(t *testing.T) {
	f := newSubjectFixture()
	_, err := f.svc.Update(context.Background(), adminClaims("school-2"), "subject-1", SubjectRequest{Name: "Maths", SchoolID: "school-1"})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteSubjectAdminOtherSchoolForbidden(t *testing.T) {
	f := newSubjectFixture()
	err := f.svc.Delete(context.Background(), adminClaims("school-2"), "subject-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}

func TestGetSubjectAdminOtherSchoolForbidden(t *testing.T) {
	f := newSubjectFixture()
	_, err := f.svc.Get(context.Background(), adminClaims("school-2"), "subject-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)

	_, err = f.svc.Get(context.Background(), adminClaims("school-1"), "subject-1")
	require.NoError(t, err)
}

func TestGetSubjectTeacherNeedsMembership(t *testing.T) {
	f := newSubjectFixture()
	f.memberships.assigned = false
	_, err := f.svc.Get(context.Background(), teacherClaims("teacher-1"), "subject-1")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestListSubjectsAdminPinnedToOwnSchool(t *testing.T) {
	f := newSubjectFixture()
	_, _, _, err := f.svc.List(context.Background(), adminClaims("school-1"), "school-9", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "school-1", f.repo.listSchool)
}

func TestListSubjectsBySchoolAdminOtherForbidden(t *testing.T) {
	f := newSubjectFixture()
	_, _, err := f.svc.ListBySchool(context.Background(), adminClaims("school-1"), "school-2")
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
}

func TestDeleteSubjectBlockedByAssignments(t *testing.T) {
	f := newSubjectFixture()
	schools := &mockSchoolStore{schools: map[string]*models.School{"school-1": {ID: "school-1"}}}
	f.svc = NewSubjectService(f.repo, schools, &mockSubjectCourses{count: 3}, f.memberships, nil, zap.NewNop())
	err := f.svc.Delete(context.Background(), superAdminClaims(), "subject-1")
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.deleted)
}
