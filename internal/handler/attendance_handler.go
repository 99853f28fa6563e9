package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ecolehub/presence-api/internal/service"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
	"github.com/ecolehub/presence-api/pkg/response"
)

// AttendanceHandler exposes attendance sheet and statistics endpoints.
type AttendanceHandler struct {
	attendances *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendances *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendances: attendances}
}

// List godoc
// @Summary List attendance records
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param classroomId query string false "Filter by classroom"
// @Param teacherId query string false "Filter by teacher"
// @Param date query string false "Filter by day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendances [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req := service.ListAttendanceRequest{
		ClassroomID: c.Query("classroomId"),
		TeacherID:   c.Query("teacherId"),
		Date:        c.Query("date"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		req.Limit = limit
	}
	// An unparseable page or limit falls back to the defaults so the
	// pagination envelope never divides by zero.
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 10
	}

	sheets, total, page, err := h.attendances.List(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, sheets, len(sheets), total, page, req.Limit)
}

// Get godoc
// @Summary Get one attendance record
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendances/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	detail, err := h.attendances.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Create godoc
// @Summary Record attendance for a class session
// @Tags Attendances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendances [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	var req service.CreateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sheet, err := h.attendances.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sheet, "attendance recorded")
}

// Update godoc
// @Summary Replace the records of an attendance sheet
// @Tags Attendances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Records payload"
// @Success 200 {object} response.Envelope
// @Router /attendances/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sheet, err := h.attendances.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheet)
}

// Delete godoc
// @Summary Delete an attendance sheet
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendances/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendances.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nil, "attendance record deleted")
}

// ClassroomStats godoc
// @Summary Presence statistics for a classroom
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param classroomId path string true "Classroom ID"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendances/classroom/{classroomId}/stats [get]
func (h *AttendanceHandler) ClassroomStats(c *gin.Context) {
	req := service.StatsRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	stats, err := h.attendances.ClassroomStats(c.Request.Context(), claimsFromContext(c), c.Param("classroomId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// StudentStats godoc
// @Summary Presence statistics for a student
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendances/student/{studentId}/stats [get]
func (h *AttendanceHandler) StudentStats(c *gin.Context) {
	req := service.StatsRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	stats, err := h.attendances.StudentStats(c.Request.Context(), claimsFromContext(c), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ClassroomReport godoc
// @Summary Export a classroom presence report
// @Tags Attendances
// @Produce octet-stream
// @Security BearerAuth
// @Param classroomId path string true "Classroom ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /attendances/classroom/{classroomId}/report [get]
func (h *AttendanceHandler) ClassroomReport(c *gin.Context) {
	req := service.StatsRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	format := c.DefaultQuery("format", "csv")
	payload, filename, contentType, err := h.attendances.ClassroomReport(c.Request.Context(), claimsFromContext(c), c.Param("classroomId"), format, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
