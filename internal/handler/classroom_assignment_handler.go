package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ecolehub/presence-api/internal/models"
	"github.com/ecolehub/presence-api/internal/service"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
	"github.com/ecolehub/presence-api/pkg/response"
)

// ClassroomAssignmentHandler exposes course assignment endpoints.
type ClassroomAssignmentHandler struct {
	assignments *service.ClassroomAssignmentService
}

// NewClassroomAssignmentHandler constructs ClassroomAssignmentHandler.
func NewClassroomAssignmentHandler(assignments *service.ClassroomAssignmentService) *ClassroomAssignmentHandler {
	return &ClassroomAssignmentHandler{assignments: assignments}
}

// List godoc
// @Summary List course assignments
// @Tags ClassroomAssignments
// @Produce json
// @Security BearerAuth
// @Param schoolId query string false "Filter by school"
// @Param teacherId query string false "Filter by teacher"
// @Param classroomId query string false "Filter by classroom"
// @Param subjectId query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments [get]
func (h *ClassroomAssignmentHandler) List(c *gin.Context) {
	var filter models.ClassroomAssignmentFilter
	filter.SchoolID = c.Query("schoolId")
	filter.TeacherID = c.Query("teacherId")
	filter.ClassroomID = c.Query("classroomId")
	filter.SubjectID = c.Query("subjectId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.Limit = limit
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	assignments, total, page, err := h.assignments.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, assignments, len(assignments), total, page, filter.Limit)
}

// ListByTeacher godoc
// @Summary List course assignments of a teacher
// @Tags ClassroomAssignments
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments/teacher/{teacherId} [get]
func (h *ClassroomAssignmentHandler) ListByTeacher(c *gin.Context) {
	assignments, total, page, err := h.assignments.List(c.Request.Context(), claimsFromContext(c), models.ClassroomAssignmentFilter{
		TeacherID: c.Param("teacherId"),
		Page:      1,
		Limit:     1000,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, assignments, len(assignments), total, page, 1000)
}

// ListByClassroom godoc
// @Summary List course assignments of a classroom
// @Tags ClassroomAssignments
// @Produce json
// @Security BearerAuth
// @Param classroomId path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments/classroom/{classroomId} [get]
func (h *ClassroomAssignmentHandler) ListByClassroom(c *gin.Context) {
	assignments, total, page, err := h.assignments.List(c.Request.Context(), claimsFromContext(c), models.ClassroomAssignmentFilter{
		ClassroomID: c.Param("classroomId"),
		Page:        1,
		Limit:       1000,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, assignments, len(assignments), total, page, 1000)
}

// Get godoc
// @Summary Get a course assignment
// @Tags ClassroomAssignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments/{id} [get]
func (h *ClassroomAssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignments.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// Create godoc
// @Summary Create a course assignment
// @Tags ClassroomAssignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classroom-assignments [post]
func (h *ClassroomAssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment, "course assignment created")
}

// UpdateSchedule godoc
// @Summary Replace a course assignment's weekly schedule
// @Tags ClassroomAssignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments/{id}/schedule [put]
func (h *ClassroomAssignmentHandler) UpdateSchedule(c *gin.Context) {
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.UpdateSchedule(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// Delete godoc
// @Summary Delete a course assignment
// @Tags ClassroomAssignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /classroom-assignments/{id} [delete]
func (h *ClassroomAssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nil, "course assignment deleted")
}
