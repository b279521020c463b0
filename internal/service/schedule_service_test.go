package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
)

type mockScheduleClient struct {
	mu           sync.Mutex
	schedules    []models.Schedule
	listErr      error
	active       *models.Schedule
	activeErr    error
	activateErr  error
	activated    []string
	deleted      []string
	searchResult []models.Session
	searchErr    error
	generated    *models.Schedule
	listCalls    int
}

func (m *mockScheduleClient) ListSchedules(context.Context) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.schedules, m.listErr
}

func (m *mockScheduleClient) ActiveSchedule(context.Context) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.activeErr
}

func (m *mockScheduleClient) ActivateSchedule(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = append(m.activated, scheduleID)
	return m.activateErr
}

func (m *mockScheduleClient) DeleteSchedule(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, scheduleID)
	return nil
}

func (m *mockScheduleClient) SearchSessions(context.Context, models.SessionSearchParams) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchResult, m.searchErr
}

func (m *mockScheduleClient) Generate(context.Context, upstream.GenerateParams) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generated, nil
}

type mockSnapshotStore struct {
	mu        sync.Mutex
	schedules []models.Schedule
	activeID  string
	saves     int
}

func (m *mockSnapshotStore) Save(_ context.Context, schedules []models.Schedule, activeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = schedules
	m.activeID = activeID
	m.saves++
	return nil
}

func (m *mockSnapshotStore) Load(context.Context) ([]models.Schedule, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules, m.activeID, nil
}

func newTestScheduleService(client *mockScheduleClient, snapshot *mockSnapshotStore) *ScheduleService {
	deps := ScheduleServiceDeps{Client: client}
	if snapshot != nil {
		deps.Snapshot = snapshot
	}
	return NewScheduleService(deps)
}

func TestFetchSchedulesReplacesList(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{
		{ID: "sch-1", Name: "Fall"},
		{ID: "sch-2", Name: "Spring", IsActive: true},
	}}
	snapshot := &mockSnapshotStore{}
	svc := newTestScheduleService(client, snapshot)

	schedules, err := svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, schedules, 2)

	// Wholesale replacement, stale local entries never survive a fetch.
	client.mu.Lock()
	client.schedules = []models.Schedule{{ID: "sch-2", Name: "Spring", IsActive: true}}
	client.mu.Unlock()

	_, err = svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)

	state := svc.State()
	assert.Len(t, state.Schedules, 1)
	assert.Equal(t, "sch-2", state.Schedules[0].ID)
	assert.Equal(t, "sch-2", snapshot.activeID)
}

func TestFetchCurrentMergesInPlace(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{
		{ID: "sch-1", Name: "Fall"},
		{ID: "sch-2", Name: "Spring"},
	}}
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)

	full := &models.Schedule{ID: "sch-2", Name: "Spring", IsActive: true, Sessions: []models.Session{
		{CourseName: "Algebra", Day: models.Monday, Timeslot: "09:00-10:00"},
	}}
	client.mu.Lock()
	client.active = full
	client.mu.Unlock()

	_, err = svc.FetchCurrentSchedule(context.Background())
	require.NoError(t, err)

	state := svc.State()
	require.Len(t, state.Schedules, 2, "merge must not grow the list when the id exists")
	assert.Equal(t, "sch-1", state.Schedules[0].ID, "order of untouched entries is preserved")
	assert.Len(t, state.Schedules[1].Sessions, 1)
	require.NotNil(t, state.Current)
	assert.Equal(t, "sch-2", state.Current.ID)
	assert.Len(t, state.Sessions, 1)
}

func TestFetchCurrentAppendsWhenUnknown(t *testing.T) {
	client := &mockScheduleClient{active: &models.Schedule{ID: "sch-9", Name: "Draft"}}
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchCurrentSchedule(context.Background())
	require.NoError(t, err)

	state := svc.State()
	require.Len(t, state.Schedules, 1)
	assert.Equal(t, "sch-9", state.Schedules[0].ID)
}

func TestActivateIsOptimistic(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{
		{ID: "sch-1", IsActive: true},
		{ID: "sch-2"},
	}}
	client.active = &models.Schedule{ID: "sch-2", IsActive: true}
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)

	// The server view the background refresh will observe.
	client.mu.Lock()
	client.schedules = []models.Schedule{{ID: "sch-1"}, {ID: "sch-2", IsActive: true}}
	client.mu.Unlock()

	require.NoError(t, svc.Activate(context.Background(), "sch-2"))

	// The local flag flips before any refresh lands.
	state := svc.State()
	assert.False(t, scheduleByID(state.Schedules, "sch-1").IsActive)
	assert.True(t, scheduleByID(state.Schedules, "sch-2").IsActive)

	require.Eventually(t, func() bool {
		return !svc.State().Activating
	}, time.Second, 10*time.Millisecond)
}

func TestActivateFailureKeepsFlags(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{
		{ID: "sch-1", IsActive: true},
		{ID: "sch-2"},
	}}
	client.activateErr = errors.New("activation rejected")
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)

	require.Error(t, svc.Activate(context.Background(), "sch-2"))

	state := svc.State()
	assert.True(t, scheduleByID(state.Schedules, "sch-1").IsActive)
	assert.False(t, scheduleByID(state.Schedules, "sch-2").IsActive)
	assert.False(t, state.Activating)
	assert.NotEmpty(t, state.LastError)
}

func TestActivateUnknownSchedule(t *testing.T) {
	svc := newTestScheduleService(&mockScheduleClient{}, nil)
	err := svc.Activate(context.Background(), "sch-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteRefreshesList(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{{ID: "sch-1"}, {ID: "sch-2"}}}
	client.active = &models.Schedule{ID: "sch-1"}
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchCurrentSchedule(context.Background())
	require.NoError(t, err)

	client.mu.Lock()
	client.schedules = []models.Schedule{{ID: "sch-2"}}
	client.mu.Unlock()

	require.NoError(t, svc.Delete(context.Background(), "sch-1"))

	state := svc.State()
	assert.Nil(t, state.Current, "deleting the displayed schedule clears it")
	require.Len(t, state.Schedules, 1)
	assert.Equal(t, "sch-2", state.Schedules[0].ID)
	assert.Equal(t, []string{"sch-1"}, client.deleted)
}

func TestFilterSessionsReplacesWorkingSet(t *testing.T) {
	client := &mockScheduleClient{searchResult: []models.Session{
		{CourseName: "Physics", Day: models.Tuesday, Timeslot: "10:00-11:00"},
	}}
	svc := newTestScheduleService(client, nil)

	sessions, err := svc.FilterSessions(context.Background(), models.SessionSearchParams{ScheduleID: "sch-1"})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Len(t, svc.State().Sessions, 1)

	client.mu.Lock()
	client.searchResult = nil
	client.mu.Unlock()

	sessions, err = svc.FilterSessions(context.Background(), models.SessionSearchParams{ScheduleID: "sch-1"})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, svc.State().Sessions, "an empty result still replaces the set")
}

func TestFilterSessionsRequiresScheduleID(t *testing.T) {
	svc := newTestScheduleService(&mockScheduleClient{}, nil)
	_, err := svc.FilterSessions(context.Background(), models.SessionSearchParams{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestErrorsSurfaceThroughState(t *testing.T) {
	client := &mockScheduleClient{listErr: appErrors.Clone(appErrors.ErrUpstream, "timetable platform unreachable")}
	svc := newTestScheduleService(client, nil)

	_, err := svc.FetchSchedules(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, "timetable platform unreachable", svc.State().LastError)

	// A later success clears the error.
	client.mu.Lock()
	client.listErr = nil
	client.schedules = []models.Schedule{{ID: "sch-1"}}
	client.mu.Unlock()

	_, err = svc.FetchSchedules(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, svc.State().LastError)
}

func TestActiveScheduleID(t *testing.T) {
	client := &mockScheduleClient{schedules: []models.Schedule{
		{ID: "sch-1"},
		{ID: "sch-2", IsActive: true},
	}}
	svc := newTestScheduleService(client, nil)

	id, err := svc.ActiveScheduleID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sch-2", id)

	client.mu.Lock()
	client.schedules = []models.Schedule{{ID: "sch-1"}}
	client.mu.Unlock()

	_, err = svc.ActiveScheduleID(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRestoreLoadsSnapshot(t *testing.T) {
	snapshot := &mockSnapshotStore{
		schedules: []models.Schedule{{ID: "sch-1"}, {ID: "sch-2"}},
		activeID:  "sch-2",
	}
	svc := newTestScheduleService(&mockScheduleClient{}, snapshot)

	require.NoError(t, svc.Restore(context.Background()))

	state := svc.State()
	require.Len(t, state.Schedules, 2)
	assert.True(t, scheduleByID(state.Schedules, "sch-2").IsActive)
}

func scheduleByID(schedules []models.Schedule, id string) models.Schedule {
	for _, schedule := range schedules {
		if schedule.ID == id {
			return schedule
		}
	}
	return models.Schedule{}
}
