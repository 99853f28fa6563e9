package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

type mockUserRepo struct {
	byEmail map[string]*models.User
	created *models.User
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.created = user
	return nil
}

func newAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "presence-api",
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginSuccess(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"admin@example.com": {
			ID:           "user-1",
			Email:        "admin@example.com",
			PasswordHash: hashPassword(t, "s3cret-pass"),
			Role:         models.RoleAdmin,
			SchoolID:     strPtr("school-1"),
			Active:       true,
		},
	}}
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	require.NotNil(t, claims.SchoolID)
	assert.Equal(t, "school-1", *claims.SchoolID)
}

func TestLoginTeacherTokenCarriesTeacherID(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"prof@example.com": {
			ID:           "user-2",
			Email:        "prof@example.com",
			PasswordHash: hashPassword(t, "s3cret-pass"),
			Role:         models.RoleTeacher,
			TeacherID:    strPtr("teacher-9"),
			Active:       true,
		},
	}}
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "prof@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	// Ownership checks compare the principal directly to attendance rows.
	assert.Equal(t, "teacher-9", claims.UserID)
	assert.Equal(t, "user-2", claims.Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"admin@example.com": {
			Email:        "admin@example.com",
			PasswordHash: hashPassword(t, "correct"),
			Active:       true,
		},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc := newAuthService(&mockUserRepo{byEmail: map[string]*models.User{}})
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", appErrors.FromError(err).Message)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"old@example.com": {
			Email:        "old@example.com",
			PasswordHash: hashPassword(t, "s3cret-pass"),
			Active:       false,
		},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "old@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRegisterRoleConstraints(t *testing.T) {
	svc := newAuthService(&mockUserRepo{byEmail: map[string]*models.User{}})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "a@example.com", Password: "longenough", FullName: "A", Role: "admin",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "schoolId")

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email: "b@example.com", Password: "longenough", FullName: "B", Role: "teacher",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "teacherId")

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email: "c@example.com", Password: "longenough", FullName: "C", Role: "principal",
	})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"taken@example.com": {Email: "taken@example.com"},
	}}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "taken@example.com", Password: "longenough", FullName: "T", Role: "student",
	})
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{}}
	svc := newAuthService(repo)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "new@example.com", Password: "longenough", FullName: "New User", Role: "student",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "longenough", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
	assert.True(t, user.Active)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"admin@example.com": {
			ID:           "user-1",
			Email:        "admin@example.com",
			PasswordHash: hashPassword(t, "s3cret-pass"),
			Role:         models.RoleAdmin,
			SchoolID:     strPtr("school-1"),
			Active:       true,
		},
	}}
	svc := newAuthService(repo)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{TokenSecret: "other-secret", TokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.Equal(t, 401, appErrors.FromError(err).Status)

	_, err = svc.ValidateToken(resp.Token + "x")
	require.Error(t, err)
}
