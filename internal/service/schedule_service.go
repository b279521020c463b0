package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/layout"
	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
	"github.com/schedura/console-gateway/pkg/export"
	"github.com/schedura/console-gateway/pkg/storage"
)

const scheduleCacheKey = "console:schedules"

type scheduleClient interface {
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
	ActiveSchedule(ctx context.Context) (*models.Schedule, error)
	ActivateSchedule(ctx context.Context, scheduleID string) error
	DeleteSchedule(ctx context.Context, scheduleID string) error
	SearchSessions(ctx context.Context, params models.SessionSearchParams) ([]models.Session, error)
	Generate(ctx context.Context, params upstream.GenerateParams) (*models.Schedule, error)
}

type snapshotStore interface {
	Save(ctx context.Context, schedules []models.Schedule, activeID string) error
	Load(ctx context.Context) ([]models.Schedule, string, error)
}

// ScheduleState is a point-in-time copy of the coordinator's view, safe to
// hand to handlers without further locking.
type ScheduleState struct {
	Schedules  []models.Schedule `json:"schedules"`
	Current    *models.Schedule  `json:"current,omitempty"`
	Sessions   []models.Session  `json:"sessions"`
	Loading    bool              `json:"loading"`
	Activating bool              `json:"activating"`
	LastError  string            `json:"last_error,omitempty"`
}

// ExportResult describes a rendered timetable PDF ready for download.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ScheduleService coordinates the console's schedule view: the summary
// list, the currently displayed schedule with its sessions, and the loading
// and error state the UI renders. The upstream platform is the source of
// truth; Postgres holds a restart snapshot and Redis a short-lived cache.
type ScheduleService struct {
	client   scheduleClient
	snapshot snapshotStore
	redis    *redis.Client
	cacheTTL time.Duration
	engine   *layout.Engine
	pdf      *export.PDFExporter
	files    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger

	mu         sync.Mutex
	schedules  []models.Schedule
	current    *models.Schedule
	sessions   []models.Session
	loading    bool
	activating bool
	lastError  string
}

// ScheduleServiceDeps bundles the coordinator's collaborators.
type ScheduleServiceDeps struct {
	Client   scheduleClient
	Snapshot snapshotStore
	Redis    *redis.Client
	CacheTTL time.Duration
	Engine   *layout.Engine
	Files    *storage.LocalStorage
	Signer   *storage.SignedURLSigner
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// NewScheduleService constructs the coordinator.
func NewScheduleService(deps ScheduleServiceDeps) *ScheduleService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Engine == nil {
		deps.Engine = layout.NewEngine(layout.DefaultConfig())
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = time.Minute
	}
	return &ScheduleService{
		client:   deps.Client,
		snapshot: deps.Snapshot,
		redis:    deps.Redis,
		cacheTTL: deps.CacheTTL,
		engine:   deps.Engine,
		pdf:      export.NewPDFExporter(),
		files:    deps.Files,
		signer:   deps.Signer,
		metrics:  deps.Metrics,
		validate: validator.New(),
		logger:   deps.Logger,
	}
}

// Restore loads the persisted snapshot into memory. Missing snapshots are
// not an error; the console simply starts empty.
func (s *ScheduleService) Restore(ctx context.Context) error {
	if s.snapshot == nil {
		return nil
	}
	schedules, activeID, err := s.snapshot.Load(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = schedules
	for i := range s.schedules {
		if s.schedules[i].ID == activeID {
			s.schedules[i].IsActive = true
		}
	}
	s.logger.Info("schedule snapshot restored", zap.Int("schedules", len(schedules)))
	return nil
}

// FetchSchedules refreshes the summary list. The fetched list replaces the
// in-memory one wholesale. With force false a recent cached copy may be
// served instead of an upstream round trip.
func (s *ScheduleService) FetchSchedules(ctx context.Context, force bool) ([]models.Schedule, error) {
	if !force {
		if cached, ok := s.cachedSchedules(ctx); ok {
			s.replaceSchedules(cached, "")
			return cached, nil
		}
	}

	s.setLoading(true)
	defer s.setLoading(false)

	schedules, err := s.client.ListSchedules(ctx)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.replaceSchedules(schedules, "")
	s.cacheSchedules(ctx, schedules)
	s.persistSnapshot(schedules)
	return schedules, nil
}

// FetchCurrentSchedule loads the active schedule with sessions and makes it
// the displayed one. The full schedule is merged into the summary list in
// place when an entry with the same id exists, appended otherwise.
func (s *ScheduleService) FetchCurrentSchedule(ctx context.Context) (*models.Schedule, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	schedule, err := s.client.ActiveSchedule(ctx)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := false
	for i := range s.schedules {
		if s.schedules[i].ID == schedule.ID {
			s.schedules[i] = *schedule
			merged = true
			break
		}
	}
	if !merged {
		s.schedules = append(s.schedules, *schedule)
	}
	s.current = schedule
	s.sessions = schedule.Sessions
	s.lastError = ""
	return schedule, nil
}

// Activate confirms the switch with the platform, then flips the local
// active flag without waiting for the authoritative refresh that runs in
// the background. An upstream failure leaves the flags untouched and
// surfaces through LastError.
func (s *ScheduleService) Activate(ctx context.Context, scheduleID string) error {
	s.mu.Lock()
	found := false
	for i := range s.schedules {
		if s.schedules[i].ID == scheduleID {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	s.activating = true
	s.mu.Unlock()

	if err := s.client.ActivateSchedule(ctx, scheduleID); err != nil {
		s.setActivating(false)
		s.setError(err)
		return err
	}

	s.mu.Lock()
	for i := range s.schedules {
		s.schedules[i].IsActive = s.schedules[i].ID == scheduleID
	}
	s.lastError = ""
	s.mu.Unlock()

	go func() {
		defer s.setActivating(false)
		refreshCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := s.FetchCurrentSchedule(refreshCtx); err != nil {
			s.logger.Warn("post-activation refresh failed", zap.Error(err))
		}
		if _, err := s.FetchSchedules(refreshCtx, true); err != nil {
			s.logger.Warn("post-activation list refresh failed", zap.Error(err))
		}
	}()
	return nil
}

// Delete removes a schedule upstream and refreshes the list.
func (s *ScheduleService) Delete(ctx context.Context, scheduleID string) error {
	if err := s.client.DeleteSchedule(ctx, scheduleID); err != nil {
		s.setError(err)
		return err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == scheduleID {
		s.current = nil
		s.sessions = nil
	}
	s.mu.Unlock()

	s.invalidateCache(ctx)
	_, err := s.FetchSchedules(ctx, true)
	return err
}

// Generate asks the platform to produce a new schedule and refreshes the
// summary list once the solver returns.
func (s *ScheduleService) Generate(ctx context.Context, params upstream.GenerateParams) (*models.Schedule, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "schedule name is required")
	}

	schedule, err := s.client.Generate(ctx, params)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.invalidateCache(ctx)
	if _, err := s.FetchSchedules(ctx, true); err != nil {
		s.logger.Warn("post-generation list refresh failed", zap.Error(err))
	}
	return schedule, nil
}

// FilterSessions runs a server-side session search and replaces the working
// session set with the result.
func (s *ScheduleService) FilterSessions(ctx context.Context, params models.SessionSearchParams) ([]models.Session, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "schedule id is required")
	}

	sessions, err := s.client.SearchSessions(ctx, params)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions = sessions
	s.lastError = ""
	s.mu.Unlock()
	return sessions, nil
}

// ActiveScheduleID resolves just the id of the active schedule from the
// summary list, without pulling sessions.
func (s *ScheduleService) ActiveScheduleID(ctx context.Context) (string, error) {
	schedules, err := s.client.ListSchedules(ctx)
	if err != nil {
		s.setError(err)
		return "", err
	}
	for _, schedule := range schedules {
		if schedule.IsActive {
			return schedule.ID, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrNotFound, "no active schedule")
}

// WeekLayout positions the current working session set into calendar
// columns for the given schedule.
func (s *ScheduleService) WeekLayout(ctx context.Context, scheduleID string) ([]layout.DayColumn, error) {
	sessions, err := s.client.SearchSessions(ctx, models.SessionSearchParams{ScheduleID: scheduleID})
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return s.engine.Week(sessions), nil
}

// ExportPDF renders the schedule's full week as a PDF, stores it and
// returns a signed download token. Coordinator state is not touched.
func (s *ScheduleService) ExportPDF(ctx context.Context, scheduleID, title string) (*ExportResult, error) {
	if s.files == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export storage is not configured")
	}

	sessions, err := s.client.SearchSessions(ctx, models.SessionSearchParams{ScheduleID: scheduleID})
	if err != nil {
		return nil, err
	}

	days := make([]export.TimetableDay, 0, len(models.WeekOrder))
	for _, column := range s.engine.Week(sessions) {
		day := export.TimetableDay{Day: string(column.Day), Weight: column.Weight}
		for _, positioned := range column.Sessions {
			day.Entries = append(day.Entries, export.TimetableEntry{
				Time:    string(positioned.Timeslot),
				Course:  positioned.CourseName,
				Teacher: positioned.TeacherName,
				Room:    positioned.ClassroomName,
			})
		}
		days = append(days, day)
	}

	if title == "" {
		title = "Weekly Timetable"
	}
	data, err := s.pdf.RenderWeek(title, days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render timetable pdf")
	}

	fileName := "timetable-" + uuid.NewString() + ".pdf"
	if _, err := s.files.Save(fileName, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store timetable pdf")
	}

	token, expiresAt, err := s.signer.Generate(scheduleID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download url")
	}
	return &ExportResult{FileName: fileName, Token: token, ExpiresAt: expiresAt}, nil
}

// State returns a copy of the coordinator's current view.
func (s *ScheduleService) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ScheduleState{
		Schedules:  make([]models.Schedule, len(s.schedules)),
		Sessions:   make([]models.Session, len(s.sessions)),
		Loading:    s.loading,
		Activating: s.activating,
		LastError:  s.lastError,
	}
	copy(state.Schedules, s.schedules)
	copy(state.Sessions, s.sessions)
	if s.current != nil {
		current := *s.current
		state.Current = &current
	}
	return state
}

func (s *ScheduleService) replaceSchedules(schedules []models.Schedule, activeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = schedules
	if activeID != "" {
		for i := range s.schedules {
			s.schedules[i].IsActive = s.schedules[i].ID == activeID
		}
	}
	s.lastError = ""
}

func (s *ScheduleService) cachedSchedules(ctx context.Context) ([]models.Schedule, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, scheduleCacheKey).Bytes()
	if err != nil {
		s.metrics.RecordCacheOperation(false)
		return nil, false
	}
	var schedules []models.Schedule
	if err := json.Unmarshal(raw, &schedules); err != nil {
		s.metrics.RecordCacheOperation(false)
		return nil, false
	}
	s.metrics.RecordCacheOperation(true)
	return schedules, true
}

func (s *ScheduleService) cacheSchedules(ctx context.Context, schedules []models.Schedule) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(schedules)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, scheduleCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("schedule cache write failed", zap.Error(err))
	}
}

func (s *ScheduleService) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, scheduleCacheKey).Err(); err != nil {
		s.logger.Warn("schedule cache invalidation failed", zap.Error(err))
	}
}

func (s *ScheduleService) persistSnapshot(schedules []models.Schedule) {
	if s.snapshot == nil {
		return
	}
	activeID := ""
	for _, schedule := range schedules {
		if schedule.IsActive {
			activeID = schedule.ID
			break
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.snapshot.Save(ctx, schedules, activeID); err != nil {
		s.logger.Warn("schedule snapshot write failed", zap.Error(err))
	}
}

func (s *ScheduleService) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *ScheduleService) setActivating(v bool) {
	s.mu.Lock()
	s.activating = v
	s.mu.Unlock()
}

func (s *ScheduleService) setError(err error) {
	s.mu.Lock()
	s.lastError = appErrors.FromError(err).Message
	s.mu.Unlock()
}
