package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/jobs"
)

type mockUploadClient struct {
	mu       sync.Mutex
	uploads  []models.Category
	uploadFn func(category models.Category, fileName string) (string, error)
	tasks    []models.UploadTask
	tasksErr error
	detail   *models.UploadTaskDetail
	deleted  []string
}

func (m *mockUploadClient) UploadCSV(_ context.Context, category models.Category, fileName, _ string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, category)
	if m.uploadFn != nil {
		return m.uploadFn(category, fileName)
	}
	return fmt.Sprintf("task-%d", len(m.uploads)), nil
}

func (m *mockUploadClient) ListTasks(_ context.Context, _, _ int) ([]models.UploadTask, *upstream.Pagination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks, nil, m.tasksErr
}

func (m *mockUploadClient) TaskDetail(_ context.Context, _ string) (*models.UploadTaskDetail, error) {
	return m.detail, nil
}

func (m *mockUploadClient) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, taskID)
	return nil
}

func (m *mockUploadClient) uploadedCategories() []models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Category, len(m.uploads))
	copy(out, m.uploads)
	return out
}

func newTestIngestService(client *mockUploadClient) *IngestService {
	return NewIngestService(client, IngestConfig{
		PollInterval: 50 * time.Millisecond,
		UploadDelay:  time.Millisecond,
	}, nil, nil)
}

func TestUploadBlockedUntilDependenciesSatisfied(t *testing.T) {
	client := &mockUploadClient{}
	svc := newTestIngestService(client)

	assert.False(t, svc.CanUpload(models.CategoryCourse))
	_, err := svc.Upload(context.Background(), models.CategoryCourse, "courses.csv", "", []byte("code,name\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDependencyUnmet.Code, appErrors.FromError(err).Code)
	assert.Empty(t, client.uploadedCategories())

	_, err = svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("code,name\n"))
	require.NoError(t, err)

	assert.True(t, svc.CanUpload(models.CategoryCourse))
	_, err = svc.Upload(context.Background(), models.CategoryCourse, "courses.csv", "", []byte("code,name\n"))
	require.NoError(t, err)
}

func TestUploadTeacherNeedsBothDependencies(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})

	_, err := svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.NoError(t, err)

	// Departments alone are not enough, teachers also depend on courses.
	assert.False(t, svc.CanUpload(models.CategoryTeacher))

	_, err = svc.Upload(context.Background(), models.CategoryCourse, "courses.csv", "", []byte("x"))
	require.NoError(t, err)
	assert.True(t, svc.CanUpload(models.CategoryTeacher))
}

func TestUploadUnknownCategory(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})
	_, err := svc.Upload(context.Background(), "HOLIDAY", "holidays.csv", "", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownCategory.Code, appErrors.FromError(err).Code)
}

func TestUploadRejectionMarksCategoryFailed(t *testing.T) {
	client := &mockUploadClient{
		uploadFn: func(models.Category, string) (string, error) {
			return "", appErrors.Clone(appErrors.ErrValidation, "missing required column name")
		},
	}
	svc := newTestIngestService(client)

	_, err := svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.Error(t, err)

	statuses := svc.Statuses()
	assert.Equal(t, models.StateFailed, statuses[0].State)
	assert.Equal(t, "missing required column name", statuses[0].Message)

	// A failed prerequisite still blocks dependants.
	assert.False(t, svc.CanUpload(models.CategoryCourse))
}

func TestInferCategory(t *testing.T) {
	cases := []struct {
		fileName string
		want     models.Category
		matched  bool
	}{
		{"departments.csv", models.CategoryDepartment, true},
		{"Course_List.csv", models.CategoryCourse, true},
		{"teachers-2026.csv", models.CategoryTeacher, true},
		{"classrooms.csv", models.CategoryClassroom, true},
		{"rooms_building_b.csv", models.CategoryClassroom, true},
		{"student_groups.csv", models.CategoryStudentGroup, true},
		{"students.csv", models.CategoryStudent, true},
		{"sgcourse_mapping.csv", models.CategorySGCourse, true},
		// "student" appearing with "group" must win over the bare student rule.
		{"group_student_roster.csv", models.CategoryStudentGroup, true},
		{"timetable.csv", "", false},
	}
	for _, tc := range cases {
		got, ok := InferCategory(tc.fileName)
		assert.Equal(t, tc.matched, ok, tc.fileName)
		assert.Equal(t, tc.want, got, tc.fileName)
	}
}

func TestBulkUploadWalksCategoryOrder(t *testing.T) {
	client := &mockUploadClient{}
	svc := newTestIngestService(client)

	files := map[models.Category][]BulkFile{
		models.CategoryCourse:     {{Name: "courses.csv", Data: []byte("x")}},
		models.CategoryDepartment: {{Name: "departments.csv", Data: []byte("x")}},
		models.CategoryTeacher:    {{Name: "teachers.csv", Data: []byte("x")}},
	}
	err := svc.runBulkJob(context.Background(), jobs.Job{ID: "job-1", Type: "bulk-upload", Payload: files})
	require.NoError(t, err)

	assert.Equal(t, []models.Category{
		models.CategoryDepartment,
		models.CategoryCourse,
		models.CategoryTeacher,
	}, client.uploadedCategories())
}

func TestEnqueueBulkReportsUnmatchedFiles(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	report, err := svc.EnqueueBulk([]BulkFile{
		{Name: "departments.csv", Data: []byte("x")},
		{Name: "mystery.csv", Data: []byte("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mystery.csv"}, report.Unmatched)
	assert.Equal(t, string(models.CategoryDepartment), report.Matched["departments.csv"])
}

func TestReadiness(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})
	assert.Zero(t, svc.Readiness())

	_, err := svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.NoError(t, err)
	// 1 of 6 required categories satisfied. STUDENT is optional and never counts.
	assert.InDelta(t, 100.0/6.0, svc.Readiness(), 0.001)

	for _, category := range []models.Category{
		models.CategoryCourse,
		models.CategoryTeacher,
		models.CategoryClassroom,
		models.CategoryStudentGroup,
		models.CategorySGCourse,
	} {
		_, err := svc.Upload(context.Background(), category, string(category)+".csv", "", []byte("x"))
		require.NoError(t, err)
	}
	assert.InDelta(t, 100.0, svc.Readiness(), 0.001)
}

func TestReconcileAppliesServerVerdicts(t *testing.T) {
	client := &mockUploadClient{
		uploadFn: func(category models.Category, _ string) (string, error) {
			return "task-" + string(category), nil
		},
	}
	svc := newTestIngestService(client)

	_, err := svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), models.CategoryCourse, "courses.csv", "", []byte("x"))
	require.NoError(t, err)

	client.mu.Lock()
	client.tasks = []models.UploadTask{
		{ID: "task-DEPARTMENT", Status: models.TaskCompleted},
		{ID: "task-COURSE", Status: models.TaskFailed, ErrorCount: 3},
	}
	client.mu.Unlock()

	require.NoError(t, svc.Reconcile(context.Background()))

	statuses := svc.Statuses()
	byCategory := make(map[models.Category]models.CategoryStatus, len(statuses))
	for _, status := range statuses {
		byCategory[status.Category] = status
	}
	assert.Equal(t, models.StateCompleted, byCategory[models.CategoryDepartment].State)
	assert.Equal(t, models.StateFailed, byCategory[models.CategoryCourse].State)
	assert.Equal(t, 3, byCategory[models.CategoryCourse].ErrorCount)

	// COMPLETED keeps dependants unlocked, FAILED relocks them.
	assert.True(t, svc.CanUpload(models.CategoryClassroom))
	assert.False(t, svc.CanUpload(models.CategoryTeacher))
}

func TestResetOnlyFromQueued(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})

	err := svc.Reset(models.CategoryDepartment)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, svc.Reset(models.CategoryDepartment))

	statuses := svc.Statuses()
	assert.Equal(t, models.StateEmpty, statuses[0].State)
	assert.Empty(t, statuses[0].TaskID)
}

func TestPollingReconcilesOnInterval(t *testing.T) {
	client := &mockUploadClient{
		uploadFn: func(models.Category, string) (string, error) { return "task-1", nil },
	}
	svc := newTestIngestService(client)

	_, err := svc.Upload(context.Background(), models.CategoryDepartment, "departments.csv", "", []byte("x"))
	require.NoError(t, err)

	client.mu.Lock()
	client.tasks = []models.UploadTask{{ID: "task-1", Status: models.TaskCompleted}}
	client.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartPolling(ctx)
	defer svc.StopPolling()

	require.Eventually(t, func() bool {
		return svc.Statuses()[0].State == models.StateCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestTemplateRendersHeaders(t *testing.T) {
	svc := newTestIngestService(&mockUploadClient{})

	data, name, err := svc.Template(models.CategoryCourse)
	require.NoError(t, err)
	assert.Equal(t, "course-template.csv", name)
	assert.Contains(t, string(data), "code,name,department_code,weekly_hours,session_type")

	_, _, err = svc.Template("HOLIDAY")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnknownCategory.Code, appErrors.FromError(err).Code)
}
