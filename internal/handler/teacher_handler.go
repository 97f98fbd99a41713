package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/service"
	"github.com/vikarapp/vikar-api/pkg/response"
)

// TeacherHandler exposes teacher search and teacher-team lookups.
type TeacherHandler struct {
	teachers *service.TeacherService
	logger   *zap.Logger
}

// NewTeacherHandler constructs a TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService, logger *zap.Logger) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, logger: logger}
}

// RegisterRoutes mounts the teacher routes on the router group.
func (h *TeacherHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/teachers", h.Search)
	r.GET("/teachers/:upn/teams", h.Teams)
}

// Search godoc
//
//	@Summary	Search teachers by display name
//	@Tags		teachers
//	@Produce	json
//	@Param		search		query	string	true	"display name prefix"
//	@Param		returnSelf	query	bool	false	"include the requestor in results"
//	@Success	200	{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/teachers [get]
func (h *TeacherHandler) Search(c *gin.Context) {
	returnSelf := c.Query("returnSelf") == "true"
	users, err := h.teachers.Search(c.Request.Context(), middleware.RequestorFrom(c), c.Query("search"), returnSelf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, map[string]interface{}{"count": len(users)})
}

// Teams godoc
//
//	@Summary	List the class teams a teacher owns
//	@Tags		teachers
//	@Produce	json
//	@Param		upn	path	string	true	"teacher principal name"
//	@Success	200	{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/teachers/{upn}/teams [get]
func (h *TeacherHandler) Teams(c *gin.Context) {
	teams, err := h.teachers.Teams(c.Request.Context(), middleware.RequestorFrom(c), c.Param("upn"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, map[string]interface{}{"count": len(teams)})
}
