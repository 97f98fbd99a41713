package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/middleware"
	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/internal/service"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
	"github.com/vikarapp/vikar-api/pkg/export"
	"github.com/vikarapp/vikar-api/pkg/response"
)

// SubstitutionHandler exposes the substitution lifecycle over HTTP.
type SubstitutionHandler struct {
	substitutions *service.SubstitutionService
	logger        *zap.Logger
}

// NewSubstitutionHandler constructs a SubstitutionHandler.
func NewSubstitutionHandler(substitutions *service.SubstitutionService, logger *zap.Logger) *SubstitutionHandler {
	return &SubstitutionHandler{substitutions: substitutions, logger: logger}
}

// RegisterRoutes mounts the substitution routes on the router group.
func (h *SubstitutionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/substitutions", h.List)
	r.POST("/substitutions", h.Create)
	r.GET("/substitutions/export", middleware.RequireRole(models.RoleAdmin), h.Export)
	r.PUT("/substitutions/deactivate", middleware.RequireRole(models.RoleConfig), h.Deactivate)
}

// List godoc
//
//	@Summary	List substitutions
//	@Tags		substitutions
//	@Produce	json
//	@Param		status			query	string	false	"pending, active or expired"
//	@Param		teacherUpn		query	string	false	"filter by teacher"
//	@Param		substituteUpn	query	string	false	"filter by substitute"
//	@Param		years			query	string	false	"comma-separated creation years"
//	@Success	200	{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/substitutions [get]
func (h *SubstitutionHandler) List(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	subs, err := h.substitutions.List(c.Request.Context(), middleware.RequestorFrom(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, map[string]interface{}{"count": len(subs)})
}

// Create godoc
//
//	@Summary	Request a batch of substitutions
//	@Tags		substitutions
//	@Accept		json
//	@Produce	json
//	@Param		request	body		service.CreateBatchRequest	true	"batch of requested grants"
//	@Success	201		{object}	response.Envelope
//	@Failure	400		{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/substitutions [post]
func (h *SubstitutionHandler) Create(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.substitutions.CreateBatch(c.Request.Context(), invocationFrom(c), req)
	if err != nil {
		if result != nil {
			// Partial batch: some entries were applied before the failure.
			appErr := appErrors.FromError(err)
			c.JSON(appErr.Status, response.Envelope{Data: result, Error: appErr})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Export godoc
//
//	@Summary	Export substitutions as CSV or PDF
//	@Tags		substitutions
//	@Produce	text/csv
//	@Produce	application/pdf
//	@Param		format	query	string	false	"csv (default) or pdf"
//	@Success	200
//	@Security	BearerAuth
//	@Router		/substitutions/export [get]
func (h *SubstitutionHandler) Export(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	subs, err := h.substitutions.List(c.Request.Context(), middleware.RequestorFrom(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	dataset := substitutionDataset(subs)

	switch strings.ToLower(c.DefaultQuery("format", "csv")) {
	case "pdf":
		raw, err := export.NewPDFExporter().Render(dataset)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="substitutions.pdf"`)
		c.Data(http.StatusOK, "application/pdf", raw)
	case "csv":
		raw, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="substitutions.csv"`)
		c.Data(http.StatusOK, "text/csv", raw)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
	}
}

type deactivateRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// Deactivate godoc
//
//	@Summary	Deactivate substitutions by id
//	@Tags		substitutions
//	@Accept		json
//	@Produce	json
//	@Param		request	body		deactivateRequest	true	"record ids to deactivate"
//	@Success	200		{object}	response.Envelope
//	@Security	BearerAuth
//	@Router		/substitutions/deactivate [put]
func (h *SubstitutionHandler) Deactivate(c *gin.Context) {
	var req deactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.substitutions.DeactivateByIDs(c.Request.Context(), invocationFrom(c), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func filterFromQuery(c *gin.Context) (models.SubstitutionFilter, error) {
	filter := models.SubstitutionFilter{
		Status:        c.Query("status"),
		TeacherUPN:    c.Query("teacherUpn"),
		SubstituteUPN: c.Query("substituteUpn"),
	}
	if raw := c.Query("years"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			year, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return filter, appErrors.Clone(appErrors.ErrValidation, "invalid year: "+part)
			}
			filter.Years = append(filter.Years, year)
		}
	}
	switch filter.Status {
	case "", models.StatusPending, models.StatusActive, models.StatusExpired:
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status: "+filter.Status)
	}
	return filter, nil
}

func substitutionDataset(subs []models.Substitution) export.Dataset {
	columns := []string{"Status", "Teacher", "Substitute", "Team", "Renewals", "Expires", "Created"}
	rows := make([]map[string]string, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, map[string]string{
			"Status":     sub.Status,
			"Teacher":    sub.TeacherUPN,
			"Substitute": sub.SubstituteUPN,
			"Team":       sub.TeamName,
			"Renewals":   fmt.Sprintf("%d", sub.RenewalCount),
			"Expires":    sub.ExpirationAt.Format(time.RFC3339),
			"Created":    sub.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Title: "Substitutions", Columns: columns, Rows: rows}
}
