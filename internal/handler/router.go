package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ecolehub/presence-api/internal/middleware"
	"github.com/ecolehub/presence-api/internal/models"
	"github.com/ecolehub/presence-api/internal/service"
)

// Handlers bundles every HTTP handler mounted by the router.
type Handlers struct {
	Auth                 *AuthHandler
	Attendances          *AttendanceHandler
	Schools              *SchoolHandler
	InstitutionTypes     *InstitutionTypeHandler
	Classrooms           *ClassroomHandler
	Subjects             *SubjectHandler
	Teachers             *TeacherHandler
	Students             *StudentHandler
	ClassroomAssignments *ClassroomAssignmentHandler
	Metrics              *MetricsHandler
}

// RegisterRoutes mounts the API surface under the given prefix. Role gates
// mirror the client contract: students are read-only, teachers may record
// and correct attendance, admins manage their school, superAdmins manage
// everything.
func RegisterRoutes(r *gin.Engine, prefix string, auth *service.AuthService, h Handlers) {
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	recorders := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	superOnly := middleware.RequireRoles(models.RoleSuperAdmin)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/register", middleware.JWT(auth), staff, h.Auth.Register)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	institutionTypes := protected.Group("/institution-types")
	{
		institutionTypes.GET("", h.InstitutionTypes.List)
		institutionTypes.GET("/stats", staff, h.InstitutionTypes.Stats)
		institutionTypes.GET("/:id", h.InstitutionTypes.Get)
		institutionTypes.POST("", superOnly, h.InstitutionTypes.Create)
		institutionTypes.PUT("/:id", superOnly, h.InstitutionTypes.Update)
		institutionTypes.PATCH("/:id/toggle-status", superOnly, h.InstitutionTypes.ToggleStatus)
	}

	schools := protected.Group("/schools")
	{
		schools.GET("", h.Schools.List)
		schools.GET("/:id", h.Schools.Get)
		schools.GET("/:id/stats", h.Schools.Stats)
		schools.POST("", superOnly, h.Schools.Create)
		schools.PUT("/:id", staff, h.Schools.Update)
		schools.PUT("/:id/institution-type", superOnly, h.Schools.SetInstitutionType)
		schools.DELETE("/:id", superOnly, h.Schools.Delete)
	}

	classrooms := protected.Group("/classrooms")
	{
		classrooms.GET("", h.Classrooms.List)
		classrooms.GET("/school/:schoolId", h.Classrooms.ListBySchool)
		classrooms.GET("/:id", h.Classrooms.Get)
		classrooms.POST("", staff, h.Classrooms.Create)
		classrooms.PUT("/:id", staff, h.Classrooms.Update)
		classrooms.DELETE("/:id", staff, h.Classrooms.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", h.Subjects.List)
		subjects.GET("/school/:schoolId", h.Subjects.ListBySchool)
		subjects.GET("/:id", h.Subjects.Get)
		subjects.POST("", staff, h.Subjects.Create)
		subjects.PUT("/:id", staff, h.Subjects.Update)
		subjects.DELETE("/:id", staff, h.Subjects.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", h.Teachers.List)
		teachers.GET("/school/:schoolId", h.Teachers.ListBySchool)
		teachers.GET("/:id", h.Teachers.Get)
		teachers.POST("", staff, h.Teachers.Create)
		teachers.POST("/manage-schools", staff, h.Teachers.ManageSchools)
		teachers.PUT("/:id", staff, h.Teachers.Update)
		teachers.DELETE("/:id", staff, h.Teachers.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", h.Students.List)
		students.GET("/class/:classId", h.Students.ListByClass)
		students.GET("/school/:schoolId", h.Students.ListBySchool)
		students.GET("/export/class/:classId", recorders, h.Students.ExportClassRoster)
		students.GET("/:id", h.Students.Get)
		students.POST("", staff, h.Students.Create)
		students.PUT("/:id", staff, h.Students.Update)
		students.DELETE("/:id", staff, h.Students.Delete)
	}

	assignments := protected.Group("/classroom-assignments")
	{
		assignments.GET("", h.ClassroomAssignments.List)
		assignments.GET("/teacher/:teacherId", h.ClassroomAssignments.ListByTeacher)
		assignments.GET("/classroom/:classroomId", h.ClassroomAssignments.ListByClassroom)
		assignments.GET("/:id", h.ClassroomAssignments.Get)
		assignments.POST("", staff, h.ClassroomAssignments.Create)
		assignments.PUT("/:id/schedule", staff, h.ClassroomAssignments.UpdateSchedule)
		assignments.DELETE("/:id", staff, h.ClassroomAssignments.Delete)
	}

	attendances := protected.Group("/attendances")
	{
		attendances.GET("", h.Attendances.List)
		attendances.GET("/classroom/:classroomId/stats", h.Attendances.ClassroomStats)
		attendances.GET("/classroom/:classroomId/report", recorders, h.Attendances.ClassroomReport)
		attendances.GET("/student/:studentId/stats", h.Attendances.StudentStats)
		attendances.GET("/:id", h.Attendances.Get)
		attendances.POST("", recorders, h.Attendances.Create)
		attendances.PUT("/:id", recorders, h.Attendances.Update)
		attendances.DELETE("/:id", recorders, h.Attendances.Delete)
	}
}
