package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/service"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/response"
	"github.com/schedura/console-gateway/pkg/storage"
)

// ScheduleHandler exposes the schedule coordinator over HTTP.
type ScheduleHandler struct {
	service *service.ScheduleService
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(svc *service.ScheduleService, files *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{service: svc, files: files, signer: signer, logger: logger}
}

// List godoc
// @Summary List schedules
// @Description Schedule summaries with loading and error state
// @Tags Schedules
// @Produce json
// @Param force query bool false "Bypass the cache"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	force := c.Query("force") == "true"
	if _, err := h.service.FetchSchedules(c.Request.Context(), force); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.State(), nil)
}

// Current godoc
// @Summary Fetch the active schedule
// @Description Load the active schedule with sessions and make it the displayed one
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/current [get]
func (h *ScheduleHandler) Current(c *gin.Context) {
	schedule, err := h.service.FetchCurrentSchedule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// ActiveID godoc
// @Summary Active schedule id
// @Description Resolve just the id of the active schedule
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/active-id [get]
func (h *ScheduleHandler) ActiveID(c *gin.Context) {
	id, err := h.service.ActiveScheduleID(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"schedule_id": id}, nil)
}

// Activate godoc
// @Summary Activate a schedule
// @Description Flip the active flag optimistically and confirm upstream
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/activate [post]
func (h *ScheduleHandler) Activate(c *gin.Context) {
	if err := h.service.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.State(), nil)
}

// Delete godoc
// @Summary Delete a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule id"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.State(), nil)
}

// Generate godoc
// @Summary Generate a schedule
// @Description Pass solver parameters through to the timetable platform
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body upstream.GenerateParams true "Generation parameters"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var params upstream.GenerateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	schedule, err := h.service.Generate(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, schedule)
}

// Search godoc
// @Summary Search sessions
// @Description Filtered session search within one schedule; the result becomes the working set
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body models.SessionSearchParams true "Search filters"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/sessions/search [post]
func (h *ScheduleHandler) Search(c *gin.Context) {
	var params models.SessionSearchParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
		return
	}

	sessions, err := h.service.FilterSessions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// WeekLayout godoc
// @Summary Weekly calendar layout
// @Description Sessions positioned into weighted day columns for calendar rendering
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule id"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/layout [get]
func (h *ScheduleHandler) WeekLayout(c *gin.Context) {
	columns, err := h.service.WeekLayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, columns, nil)
}

// Export godoc
// @Summary Export a schedule as PDF
// @Description Render the week grid to PDF and return a signed download token
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule id"
// @Param title query string false "Document title"
// @Success 201 {object} response.Envelope
// @Router /schedules/{id}/export [post]
func (h *ScheduleHandler) Export(c *gin.Context) {
	result, err := h.service.ExportPDF(c.Request.Context(), c.Param("id"), c.Query("title"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		h.logger.Info("schedule exported", zap.String("schedule_id", c.Param("id")), zap.String("user_id", claims.UserID))
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an exported PDF
// @Description Stream a previously exported file; the token must be valid and unexpired
// @Tags Schedules
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /schedules/exports/download [get]
func (h *ScheduleHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+relPath+`"`)
	c.Header("Content-Type", "application/pdf")
	c.File(file.Name())
}
