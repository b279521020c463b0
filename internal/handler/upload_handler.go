package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/service"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/response"
)

// UploadHandler exposes the CSV ingestion workflow over HTTP.
type UploadHandler struct {
	service *service.IngestService
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(svc *service.IngestService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Statuses godoc
// @Summary Per-category upload status
// @Description Workflow state for all data categories in fixed order
// @Tags Data Upload
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /upload/status [get]
func (h *UploadHandler) Statuses(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"categories": h.service.Statuses(),
		"readiness":  h.service.Readiness(),
	}, nil)
}

// Upload godoc
// @Summary Upload one CSV file
// @Description Submit a CSV for a category; inferred from the filename when no category field is sent
// @Tags Data Upload
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV file"
// @Param category formData string false "Data category"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a csv file is required"))
		return
	}

	category := models.Category(c.PostForm("category"))
	if category == "" {
		inferred, ok := service.InferCategory(fileHeader.Filename)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnknownCategory, "category could not be inferred from the filename"))
			return
		}
		category = inferred
	}

	data, err := readMultipartFile(fileHeader)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "read uploaded file"))
		return
	}

	taskID, err := h.service.Upload(c.Request.Context(), category, fileHeader.Filename, c.PostForm("description"), data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"task_id": taskID, "category": category})
}

// BulkUpload godoc
// @Summary Upload multiple CSV files
// @Description Infer a category per file and queue the matched ones in dependency order
// @Tags Data Upload
// @Accept mpfd
// @Produce json
// @Param files formData file true "CSV files"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /upload/bulk [post]
func (h *UploadHandler) BulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form required"))
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	files := make([]service.BulkFile, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		data, err := readMultipartFile(fileHeader)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "read uploaded file"))
			return
		}
		files = append(files, service.BulkFile{Name: fileHeader.Filename, Data: data})
	}

	report, err := h.service.EnqueueBulk(files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, report)
}

// Reset godoc
// @Summary Reset a queued category
// @Description Return a category to its empty state; only allowed while queued
// @Tags Data Upload
// @Produce json
// @Param category path string true "Data category"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /upload/{category} [delete]
func (h *UploadHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(models.Category(c.Param("category"))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Template godoc
// @Summary Download a category CSV template
// @Tags Data Upload
// @Produce text/csv
// @Param category path string true "Data category"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /upload/{category}/template [get]
func (h *UploadHandler) Template(c *gin.Context) {
	data, name, err := h.service.Template(models.Category(c.Param("category")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// Tasks godoc
// @Summary List upload tasks
// @Description Last reconciled validation task list
// @Tags Data Upload
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /upload/tasks [get]
func (h *UploadHandler) Tasks(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Tasks(), nil)
}

// TaskDetail godoc
// @Summary Upload task detail
// @Description One validation task with its row-level findings
// @Tags Data Upload
// @Produce json
// @Param id path string true "Task id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /upload/tasks/{id} [get]
func (h *UploadHandler) TaskDetail(c *gin.Context) {
	detail, err := h.service.TaskDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// DeleteTask godoc
// @Summary Delete an upload task
// @Tags Data Upload
// @Produce json
// @Param id path string true "Task id"
// @Success 204 {object} response.Envelope
// @Router /upload/tasks/{id} [delete]
func (h *UploadHandler) DeleteTask(c *gin.Context) {
	if err := h.service.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reconcile godoc
// @Summary Force a task reconciliation pass
// @Description Re-fetch the task list and fold server verdicts into category state
// @Tags Data Upload
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /upload/reconcile [post]
func (h *UploadHandler) Reconcile(c *gin.Context) {
	if err := h.service.Reconcile(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	h.Statuses(c)
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck
	return io.ReadAll(file)
}
