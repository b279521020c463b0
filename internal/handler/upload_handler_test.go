package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/service"
	"github.com/schedura/console-gateway/internal/upstream"
)

type fakeUploadClient struct {
	uploads []models.Category
	tasks   []models.UploadTask
}

func (f *fakeUploadClient) UploadCSV(_ context.Context, category models.Category, _, _ string, _ []byte) (string, error) {
	f.uploads = append(f.uploads, category)
	return "task-1", nil
}

func (f *fakeUploadClient) ListTasks(context.Context, int, int) ([]models.UploadTask, *upstream.Pagination, error) {
	return f.tasks, nil, nil
}

func (f *fakeUploadClient) TaskDetail(_ context.Context, taskID string) (*models.UploadTaskDetail, error) {
	return &models.UploadTaskDetail{UploadTask: models.UploadTask{ID: taskID}}, nil
}

func (f *fakeUploadClient) DeleteTask(context.Context, string) error {
	return nil
}

func newUploadTestRouter(client *fakeUploadClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewIngestService(client, service.IngestConfig{
		PollInterval: time.Second,
		UploadDelay:  time.Millisecond,
	}, nil, nil)
	h := NewUploadHandler(svc)

	r := gin.New()
	r.GET("/upload/status", h.Statuses)
	r.POST("/upload", h.Upload)
	r.GET("/upload/:category/template", h.Template)
	return r
}

func multipartBody(t *testing.T, fileName string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte("code,name\nCS,Computer Science\n"))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestUploadHandlerInfersCategoryFromFilename(t *testing.T) {
	client := &fakeUploadClient{}
	r := newUploadTestRouter(client)

	body, contentType := multipartBody(t, "departments.csv", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, client.uploads, 1)
	assert.Equal(t, models.CategoryDepartment, client.uploads[0])
}

func TestUploadHandlerRejectsUnmetDependencies(t *testing.T) {
	client := &fakeUploadClient{}
	r := newUploadTestRouter(client)

	body, contentType := multipartBody(t, "teachers.csv", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, client.uploads)
}

func TestUploadHandlerUnknownFilename(t *testing.T) {
	r := newUploadTestRouter(&fakeUploadClient{})

	body, contentType := multipartBody(t, "mystery.csv", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerExplicitCategoryWins(t *testing.T) {
	client := &fakeUploadClient{}
	r := newUploadTestRouter(client)

	body, contentType := multipartBody(t, "mystery.csv", map[string]string{"category": "DEPARTMENT"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, client.uploads, 1)
	assert.Equal(t, models.CategoryDepartment, client.uploads[0])
}

func TestUploadHandlerStatuses(t *testing.T) {
	r := newUploadTestRouter(&fakeUploadClient{})

	req := httptest.NewRequest(http.MethodGet, "/upload/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Categories []models.CategoryStatus `json:"categories"`
			Readiness  float64                 `json:"readiness"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Categories, len(models.CategoryOrder))
	assert.Zero(t, envelope.Data.Readiness)
}

func TestUploadHandlerTemplateDownload(t *testing.T) {
	r := newUploadTestRouter(&fakeUploadClient{})

	req := httptest.NewRequest(http.MethodGet, "/upload/DEPARTMENT/template", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "department-template.csv")
	assert.Contains(t, rec.Body.String(), "code,name")
}
