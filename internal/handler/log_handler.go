package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
	"github.com/vikarapp/vikar-api/pkg/response"
)

// LogHandler exposes the audit log to administrators.
type LogHandler struct {
	audit  *service.AuditService
	logger *zap.Logger
}

// NewLogHandler constructs a LogHandler.
func NewLogHandler(audit *service.AuditService, logger *zap.Logger) *LogHandler {
	return &LogHandler{audit: audit, logger: logger}
}

// RegisterRoutes mounts the audit log routes on the router group.
func (h *LogHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/logs", middleware.RequireRole(models.RoleAdmin), h.List)
}

// List godoc
//
//	@Summary	List audit log entries
//	@Tags		logs
//	@Produce	json
//	@Param		from	query	string	false	"RFC3339 start of range"
//	@Param		to		query	string	false	"RFC3339 end of range"
//	@Success	200	{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/logs [get]
func (h *LogHandler) List(c *gin.Context) {
	var filter models.AuditFilter
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
			return
		}
		filter.To = &to
	}

	entries, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}
