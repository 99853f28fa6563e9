package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecolehub/presence-api/internal/service"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
	"github.com/ecolehub/presence-api/pkg/response"
)

// InstitutionTypeHandler exposes institution type endpoints.
type InstitutionTypeHandler struct {
	types *service.InstitutionTypeService
}

// NewInstitutionTypeHandler constructs InstitutionTypeHandler.
func NewInstitutionTypeHandler(types *service.InstitutionTypeService) *InstitutionTypeHandler {
	return &InstitutionTypeHandler{types: types}
}

// List godoc
// @Summary List institution types
// @Tags InstitutionTypes
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active types"
// @Success 200 {object} response.Envelope
// @Router /institution-types [get]
func (h *InstitutionTypeHandler) List(c *gin.Context) {
	types, err := h.types.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, types)
}

// Get godoc
// @Summary Get institution type detail
// @Tags InstitutionTypes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution type ID"
// @Success 200 {object} response.Envelope
// @Router /institution-types/{id} [get]
func (h *InstitutionTypeHandler) Get(c *gin.Context) {
	it, err := h.types.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, it)
}

// Create godoc
// @Summary Create institution type
// @Tags InstitutionTypes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.InstitutionTypeRequest true "Institution type payload"
// @Success 201 {object} response.Envelope
// @Router /institution-types [post]
func (h *InstitutionTypeHandler) Create(c *gin.Context) {
	var req service.InstitutionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	it, err := h.types.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, it, "institution type created")
}

// Update godoc
// @Summary Update institution type
// @Tags InstitutionTypes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution type ID"
// @Param payload body service.InstitutionTypeRequest true "Institution type payload"
// @Success 200 {object} response.Envelope
// @Router /institution-types/{id} [put]
func (h *InstitutionTypeHandler) Update(c *gin.Context) {
	var req service.InstitutionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	it, err := h.types.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, it)
}

// ToggleStatus godoc
// @Summary Toggle an institution type's active flag
// @Tags InstitutionTypes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution type ID"
// @Success 200 {object} response.Envelope
// @Router /institution-types/{id}/toggle-status [patch]
func (h *InstitutionTypeHandler) ToggleStatus(c *gin.Context) {
	it, err := h.types.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, it)
}

// Stats godoc
// @Summary School counts per institution type
// @Tags InstitutionTypes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /institution-types/stats [get]
func (h *InstitutionTypeHandler) Stats(c *gin.Context) {
	stats, err := h.types.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
