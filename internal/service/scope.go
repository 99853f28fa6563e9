package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
)

// studentResolver maps a login account to its student profile.
type studentResolver interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// attendanceScope is the row visibility a principal holds over attendance
// sheets. Exactly one variant applies per role; an unhandled role resolves
// to no scope at all rather than falling through to unrestricted access.
type attendanceScope struct {
	All       bool
	SchoolID  string
	TeacherID string
	StudentID string
}

// resolveScope derives the attendance scope for a principal. Student
// principals require a resolvable student profile; its absence is a
// NOT_FOUND, matching the API contract.
func resolveScope(ctx context.Context, claims *models.JWTClaims, students studentResolver) (attendanceScope, error) {
	if claims == nil {
		return attendanceScope{}, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return attendanceScope{All: true}, nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return attendanceScope{}, appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		return attendanceScope{SchoolID: *claims.SchoolID}, nil
	case models.RoleTeacher:
		return attendanceScope{TeacherID: claims.UserID}, nil
	case models.RoleStudent:
		student, err := students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return attendanceScope{}, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
			}
			return attendanceScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student profile")
		}
		return attendanceScope{StudentID: student.ID}, nil
	default:
		return attendanceScope{}, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

// Covers reports whether an already-fetched sheet falls inside the scope.
// Callers translate a false result into FORBIDDEN, never NOT_FOUND: the
// sheet's existence has already been revealed by the fetch.
func (s attendanceScope) Covers(sheet *models.Attendance) bool {
	switch {
	case s.All:
		return true
	case s.SchoolID != "":
		return sheet.SchoolID == s.SchoolID
	case s.TeacherID != "":
		return sheet.TeacherID == s.TeacherID
	case s.StudentID != "":
		for _, entry := range sheet.Records {
			if entry.StudentID == s.StudentID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CanRecord reports whether the principal may create a sheet for the
// given classroom assignment.
func (s attendanceScope) CanRecord(assignment *models.ClassroomAssignment) bool {
	switch {
	case s.All:
		return true
	case s.SchoolID != "":
		return assignment.SchoolID == s.SchoolID
	case s.TeacherID != "":
		return assignment.TeacherID == s.TeacherID
	default:
		return false
	}
}

// CanMutate reports whether the principal may update a fetched sheet.
// Students never mutate attendance.
func (s attendanceScope) CanMutate(sheet *models.Attendance) bool {
	if s.StudentID != "" {
		return false
	}
	return s.Covers(sheet)
}

// teacherDeleteWindow bounds how old a sheet a teacher may still delete.
const teacherDeleteWindow = 24 * time.Hour

// CanDelete reports whether the principal may delete a fetched sheet at
// time now. Teachers are additionally held to the 24 hour window measured
// from the recorded date.
func (s attendanceScope) CanDelete(sheet *models.Attendance, now time.Time) (bool, string) {
	if !s.CanMutate(sheet) {
		return false, "you do not have access to this attendance record"
	}
	if s.TeacherID != "" && now.Sub(sheet.Date) > teacherDeleteWindow {
		return false, "teachers can only delete attendance records less than 24 hours old"
	}
	return true, ""
}

// requireSchoolManage authorizes a mutation on a resource owned by
// schoolID. Admins are confined to their own school; message is the
// FORBIDDEN text returned on a school mismatch.
func requireSchoolManage(claims *models.JWTClaims, schoolID, message string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		if *claims.SchoolID != schoolID {
			return appErrors.Clone(appErrors.ErrForbidden, message)
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
}

// requireSchoolView authorizes reading resources owned by schoolID.
// Teachers qualify through a membership row when a reader is supplied and
// fall back to the school on their token otherwise; students are held to
// the school on their token.
func requireSchoolView(ctx context.Context, claims *models.JWTClaims, schoolID string, memberships teacherSchoolReader) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		if *claims.SchoolID != schoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this school")
		}
		return nil
	case models.RoleTeacher:
		if memberships != nil {
			assigned, err := memberships.IsAssignedToSchool(ctx, claims.UserID, schoolID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school membership")
			}
			if !assigned {
				return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this school")
			}
			return nil
		}
		if claims.SchoolID != nil && *claims.SchoolID != "" && *claims.SchoolID != schoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this school")
		}
		return nil
	case models.RoleStudent:
		if claims.SchoolID != nil && *claims.SchoolID != "" && *claims.SchoolID != schoolID {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this school")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

// listSchoolScope narrows a school filter to what the principal may list.
// Admins always list their own school regardless of the requested filter;
// teachers and students are pinned to the school on their token when the
// token carries one.
func listSchoolScope(claims *models.JWTClaims, requested string) (string, error) {
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return requested, nil
	case models.RoleAdmin:
		if claims.SchoolID == nil || *claims.SchoolID == "" {
			return "", appErrors.Clone(appErrors.ErrForbidden, "admin account has no school")
		}
		return *claims.SchoolID, nil
	case models.RoleTeacher, models.RoleStudent:
		if claims.SchoolID != nil && *claims.SchoolID != "" {
			return *claims.SchoolID, nil
		}
		return requested, nil
	default:
		return "", appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

// startOfDay truncates t to midnight in its location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay expands t to the last second of its calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
