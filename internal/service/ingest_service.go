package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/export"
	"github.com/schedura/console-gateway/pkg/jobs"
)

type uploadClient interface {
	UploadCSV(ctx context.Context, category models.Category, fileName, description string, file []byte) (string, error)
	ListTasks(ctx context.Context, page, limit int) ([]models.UploadTask, *upstream.Pagination, error)
	TaskDetail(ctx context.Context, taskID string) (*models.UploadTaskDetail, error)
	DeleteTask(ctx context.Context, taskID string) error
}

// IngestConfig tunes the workflow.
type IngestConfig struct {
	PollInterval     time.Duration
	UploadDelay      time.Duration
	MaxFileSizeBytes int64
}

// categoryRule pairs a filename predicate with the category it infers.
// Rules are evaluated strictly in order; the student/student-group
// disambiguation depends on it.
type categoryRule struct {
	match    func(name string) bool
	category models.Category
}

var inferenceRules = []categoryRule{
	{func(n string) bool { return strings.Contains(n, "sgcourse") }, models.CategorySGCourse},
	{func(n string) bool { return strings.Contains(n, "student") && strings.Contains(n, "group") }, models.CategoryStudentGroup},
	{func(n string) bool { return strings.Contains(n, "student") }, models.CategoryStudent},
	{func(n string) bool { return strings.Contains(n, "department") }, models.CategoryDepartment},
	{func(n string) bool { return strings.Contains(n, "course") }, models.CategoryCourse},
	{func(n string) bool { return strings.Contains(n, "teacher") }, models.CategoryTeacher},
	{func(n string) bool { return strings.Contains(n, "classroom") || strings.Contains(n, "room") }, models.CategoryClassroom},
}

// templateColumns defines the downloadable CSV template per category.
var templateColumns = map[models.Category]struct {
	headers []string
	example []string
}{
	models.CategoryDepartment:   {[]string{"code", "name"}, []string{"CS", "Computer Science"}},
	models.CategoryCourse:       {[]string{"code", "name", "department_code", "weekly_hours", "session_type"}, []string{"CS101", "Intro to Programming", "CS", "4", "LECTURE"}},
	models.CategoryTeacher:      {[]string{"email", "full_name", "department_code", "course_codes"}, []string{"a.turing@example.edu", "Alan Turing", "CS", "CS101;CS102"}},
	models.CategoryClassroom:    {[]string{"code", "name", "building", "capacity", "wheelchair_access"}, []string{"B2-101", "Lab 101", "B2", "30", "true"}},
	models.CategoryStudentGroup: {[]string{"code", "name", "department_code", "size"}, []string{"CS-1A", "First Year A", "CS", "28"}},
	models.CategoryStudent:      {[]string{"email", "full_name", "group_code"}, []string{"j.doe@example.edu", "Jane Doe", "CS-1A"}},
	models.CategorySGCourse:     {[]string{"group_code", "course_code"}, []string{"CS-1A", "CS101"}},
}

// BulkFile is one file handed to the bulk upload path.
type BulkFile struct {
	Name string
	Data []byte
}

// BulkReport summarises what the bulk path did with each file.
type BulkReport struct {
	JobID     string            `json:"job_id"`
	Matched   map[string]string `json:"matched"`
	Unmatched []string          `json:"unmatched"`
}

// IngestService gates, tracks and surfaces per-category CSV uploads in
// dependency order, and reconciles asynchronous validation outcomes from
// upstream polling.
type IngestService struct {
	client   uploadClient
	exporter *export.CSVExporter
	cfg      IngestConfig
	logger   *zap.Logger
	metrics  *MetricsService

	mu       sync.Mutex
	statuses map[models.Category]*models.CategoryStatus
	tasks    []models.UploadTask

	queue *jobs.Queue

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
}

// NewIngestService constructs the workflow around the upstream client.
func NewIngestService(client uploadClient, cfg IngestConfig, metrics *MetricsService, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.UploadDelay <= 0 {
		cfg.UploadDelay = 500 * time.Millisecond
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 5 * 1024 * 1024
	}

	statuses := make(map[models.Category]*models.CategoryStatus, len(models.CategoryOrder))
	for _, category := range models.CategoryOrder {
		statuses[category] = &models.CategoryStatus{Category: category, State: models.StateEmpty}
	}

	s := &IngestService{
		client:   client,
		exporter: export.NewCSVExporter(),
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		statuses: statuses,
	}
	// Single worker: bulk jobs must never interleave, dependency order is
	// only guaranteed within a strictly sequential walk.
	s.queue = jobs.NewQueue("bulk-upload", s.runBulkJob, jobs.QueueConfig{
		Workers: 1,
		Logger:  logger,
	})
	return s
}

// Start launches the bulk upload worker.
func (s *IngestService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop tears down the bulk worker and any active polling loop.
func (s *IngestService) Stop() {
	s.StopPolling()
	s.queue.Stop()
}

// Statuses returns the per-category workflow snapshot in fixed order.
func (s *IngestService) Statuses() []models.CategoryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CategoryStatus, 0, len(models.CategoryOrder))
	for _, category := range models.CategoryOrder {
		out = append(out, *s.statuses[category])
	}
	return out
}

// CanUpload reports whether every dependency of the category is in a
// satisfied (QUEUED or COMPLETED) state. The UI disables the control on
// false; Upload enforces it again server-side.
func (s *IngestService) CanUpload(category models.Category) bool {
	spec, ok := models.CategoryRegistry[category]
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range spec.Dependencies {
		if !s.statuses[dep].State.Satisfied() {
			return false
		}
	}
	return true
}

// Readiness returns the percentage of required categories that reached a
// satisfied state. 100 unlocks schedule generation.
func (s *IngestService) Readiness() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var required, satisfied int
	for category, spec := range models.CategoryRegistry {
		if !spec.Required {
			continue
		}
		required++
		if s.statuses[category].State.Satisfied() {
			satisfied++
		}
	}
	if required == 0 {
		return 0
	}
	return float64(satisfied) / float64(required) * 100
}

// Upload submits one CSV for the category. The category moves through
// UPLOADING to QUEUED on acceptance or FAILED on rejection; QUEUED to
// COMPLETED/FAILED is driven purely by polling.
func (s *IngestService) Upload(ctx context.Context, category models.Category, fileName, description string, data []byte) (string, error) {
	if _, ok := models.CategoryRegistry[category]; !ok {
		return "", appErrors.Clone(appErrors.ErrUnknownCategory, fmt.Sprintf("unknown data category %q", category))
	}
	if int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}
	if !s.CanUpload(category) {
		return "", appErrors.Clone(appErrors.ErrDependencyUnmet, fmt.Sprintf("dependencies for %s are not uploaded yet", category))
	}

	s.setState(category, func(status *models.CategoryStatus) {
		status.State = models.StateUploading
		status.FileName = fileName
		status.Message = ""
		status.ErrorCount = 0
	})

	taskID, err := s.client.UploadCSV(ctx, category, fileName, description, data)
	if err != nil {
		s.setState(category, func(status *models.CategoryStatus) {
			status.State = models.StateFailed
			status.Message = appErrors.FromError(err).Message
		})
		s.metrics.RecordUpload(string(category), false)
		return "", err
	}

	s.setState(category, func(status *models.CategoryStatus) {
		status.State = models.StateQueued
		status.TaskID = taskID
	})
	s.metrics.RecordUpload(string(category), true)
	s.logger.Info("csv accepted", zap.String("category", string(category)), zap.String("task_id", taskID))
	return taskID, nil
}

// Reset returns a category to EMPTY. Only permitted from QUEUED.
func (s *IngestService) Reset(category models.Category) error {
	if _, ok := models.CategoryRegistry[category]; !ok {
		return appErrors.Clone(appErrors.ErrUnknownCategory, fmt.Sprintf("unknown data category %q", category))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.statuses[category]
	if status.State != models.StateQueued {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s can only be reset while queued", category))
	}
	*status = models.CategoryStatus{Category: category, State: models.StateEmpty, UpdatedAt: time.Now().UTC()}
	return nil
}

// InferCategory maps a filename to a category using the ordered rule list.
func InferCategory(fileName string) (models.Category, bool) {
	name := strings.ToLower(fileName)
	for _, rule := range inferenceRules {
		if rule.match(name) {
			return rule.category, true
		}
	}
	return "", false
}

// EnqueueBulk infers a category per file, reports unmatched files
// immediately and queues the matched ones for strictly ordered sequential
// upload. Progress surfaces through Statuses.
func (s *IngestService) EnqueueBulk(files []BulkFile) (*BulkReport, error) {
	report := &BulkReport{
		JobID:   uuid.NewString(),
		Matched: make(map[string]string, len(files)),
	}
	grouped := make(map[models.Category][]BulkFile)
	for _, file := range files {
		category, ok := InferCategory(file.Name)
		if !ok {
			report.Unmatched = append(report.Unmatched, file.Name)
			continue
		}
		report.Matched[file.Name] = string(category)
		grouped[category] = append(grouped[category], file)
	}

	if len(grouped) == 0 {
		return report, nil
	}

	if err := s.queue.Enqueue(jobs.Job{ID: report.JobID, Type: "bulk-upload", Payload: grouped}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "queue bulk upload")
	}
	return report, nil
}

// runBulkJob walks the fixed category order, uploading each file
// sequentially with a throttling delay between uploads. The delay protects
// the upstream validation pipeline, it is not a correctness requirement.
func (s *IngestService) runBulkJob(ctx context.Context, job jobs.Job) error {
	grouped, ok := job.Payload.(map[models.Category][]BulkFile)
	if !ok {
		return fmt.Errorf("bulk job %s: unexpected payload", job.ID)
	}

	first := true
	for _, category := range models.CategoryOrder {
		for _, file := range grouped[category] {
			if !first {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.UploadDelay):
				}
			}
			first = false

			if _, err := s.Upload(ctx, category, file.Name, "", file.Data); err != nil {
				s.logger.Warn("bulk upload entry failed",
					zap.String("category", string(category)),
					zap.String("file", file.Name),
					zap.Error(err))
			}
		}
	}
	return nil
}

// StartPolling launches the fixed-interval reconcile loop. The loop stops
// when the returned context is cancelled or StopPolling is called; it is
// owned by the validation-results view, not the process.
func (s *IngestService) StartPolling(ctx context.Context) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollCancel != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel

	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if err := s.Reconcile(pollCtx); err != nil {
					s.logger.Warn("task poll failed", zap.Error(err))
				}
			}
		}
	}()
}

// StopPolling cancels the polling loop if one is active.
func (s *IngestService) StopPolling() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// Reconcile re-fetches the upload task list and folds each task's
// server-reported status back into category display state. The client never
// computes task outcomes itself.
func (s *IngestService) Reconcile(ctx context.Context) error {
	tasks, _, err := s.client.ListTasks(ctx, 1, 100)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks

	byTaskID := make(map[string]models.UploadTask, len(tasks))
	for _, task := range tasks {
		byTaskID[task.ID] = task
	}

	now := time.Now().UTC()
	for _, status := range s.statuses {
		if status.TaskID == "" {
			continue
		}
		task, ok := byTaskID[status.TaskID]
		if !ok {
			continue
		}
		status.ErrorCount = task.ErrorCount
		status.UpdatedAt = now
		switch task.Status {
		case models.TaskCompleted:
			status.State = models.StateCompleted
		case models.TaskFailed:
			status.State = models.StateFailed
		case models.TaskQueued:
			status.State = models.StateQueued
		}
	}
	return nil
}

// Tasks returns the last reconciled task list.
func (s *IngestService) Tasks() []models.UploadTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UploadTask, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// TaskDetail fetches one task with its findings.
func (s *IngestService) TaskDetail(ctx context.Context, taskID string) (*models.UploadTaskDetail, error) {
	return s.client.TaskDetail(ctx, taskID)
}

// DeleteTask removes an upload task upstream.
func (s *IngestService) DeleteTask(ctx context.Context, taskID string) error {
	return s.client.DeleteTask(ctx, taskID)
}

// Template renders the downloadable CSV template for a category.
func (s *IngestService) Template(category models.Category) ([]byte, string, error) {
	columns, ok := templateColumns[category]
	if !ok {
		return nil, "", appErrors.Clone(appErrors.ErrUnknownCategory, fmt.Sprintf("unknown data category %q", category))
	}
	data, err := s.exporter.RenderTemplate(columns.headers, columns.example)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv template")
	}
	return data, strings.ToLower(string(category)) + "-template.csv", nil
}

func (s *IngestService) setState(category models.Category, mutate func(*models.CategoryStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.statuses[category]
	mutate(status)
	status.UpdatedAt = time.Now().UTC()
}
