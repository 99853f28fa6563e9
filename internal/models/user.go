package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
// The string values are part of the token contract with the clients.
type UserRole string

const (
	RoleSuperAdmin UserRole = "superAdmin"
	RoleAdmin      UserRole = "admin"
	RoleTeacher    UserRole = "teacher"
	RoleStudent    UserRole = "student"
)

// Valid reports whether the role is one of the supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
// TeacherID links the account to its teacher profile when the role is
// teacher; student accounts are linked from the students table instead.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"fullName"`
	Role         UserRole  `db:"role" json:"role"`
	SchoolID     *string   `db:"school_id" json:"schoolId,omitempty"`
	TeacherID    *string   `db:"teacher_id" json:"teacherId,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a new user account. Only superAdmins and admins
// may call the endpoint; the handler enforces that.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FullName  string  `json:"fullName" validate:"required"`
	Role      string  `json:"role" validate:"required"`
	SchoolID  *string `json:"schoolId"`
	TeacherID *string `json:"teacherId"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	User      UserInfo  `json:"user"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
	SchoolID *string  `json:"schoolId,omitempty"`
}

// JWTClaims is the resolved principal attached to every request.
// For teachers UserID carries the teacher entity id, so that ownership
// checks compare it directly against denormalized teacher references.
type JWTClaims struct {
	UserID   string   `json:"userId"`
	Role     UserRole `json:"role"`
	SchoolID *string  `json:"schoolId,omitempty"`
	Email    string   `json:"email"`
	jwt.RegisteredClaims
}
