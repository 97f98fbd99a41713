package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
	"github.com/vikarapp/vikar-api/pkg/response"
)

// SchoolHandler manages school records and their delegation lists.
type SchoolHandler struct {
	locations *service.LocationService
	logger    *zap.Logger
}

// NewSchoolHandler constructs a SchoolHandler.
func NewSchoolHandler(locations *service.LocationService, logger *zap.Logger) *SchoolHandler {
	return &SchoolHandler{locations: locations, logger: logger}
}

// RegisterRoutes mounts the school routes on the router group. Mutations
// require the configuration role.
func (h *SchoolHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/schools", h.List)
	r.POST("/schools", middleware.RequireRole(models.RoleConfig), h.Create)
	r.PUT("/schools/:id/delegations", middleware.RequireRole(models.RoleConfig), h.ReplaceDelegations)
}

// List godoc
//
//	@Summary	List schools
//	@Tags		schools
//	@Produce	json
//	@Success	200	{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	schools, err := h.locations.ListSchools(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, map[string]interface{}{"count": len(schools)})
}

// Create godoc
//
//	@Summary	Create a school
//	@Tags		schools
//	@Accept		json
//	@Produce	json
//	@Param		request	body		service.CreateSchoolRequest	true	"school to create"
//	@Success	201		{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req service.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	school, err := h.locations.CreateSchool(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

type replaceDelegationsRequest struct {
	PermittedSchools []models.Location `json:"permittedSchools" binding:"required"`
}

// ReplaceDelegations godoc
//
//	@Summary	Replace a school's delegation list
//	@Tags		schools
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string						true	"school id"
//	@Param		request	body		replaceDelegationsRequest	true	"new delegation list"
//	@Success	200		{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/schools/{id}/delegations [put]
func (h *SchoolHandler) ReplaceDelegations(c *gin.Context) {
	var req replaceDelegationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	school, err := h.locations.ReplaceDelegations(c.Request.Context(), c.Param("id"), req.PermittedSchools)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school)
}
