package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedura/console-gateway/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryUpsertAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO console_sessions").
		WithArgs("primary", "acc-1", "ref-1", "user-1", "admin@example.edu", "Admin One", "ADMIN", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.ConsoleSession{
		ID:            "primary",
		AccessToken:   "acc-1",
		RefreshToken:  "ref-1",
		UserID:        "user-1",
		UserEmail:     "admin@example.edu",
		UserFullName:  "Admin One",
		UserRole:      models.RoleAdmin,
		Authenticated: true,
	})
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "access_token", "refresh_token", "user_id", "user_email", "user_full_name", "user_role", "authenticated", "created_at", "updated_at"}).
		AddRow("primary", "acc-1", "ref-1", "user-1", "admin@example.edu", "Admin One", "ADMIN", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, access_token, refresh_token, user_id, user_email, user_full_name, user_role, authenticated, created_at, updated_at FROM console_sessions WHERE id = $1")).
		WithArgs("primary").
		WillReturnRows(rows)

	session, err := repo.Find(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.UserRole)
	assert.True(t, session.Authenticated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("DELETE FROM console_sessions").
		WithArgs("primary").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "primary"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleSnapshotRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleSnapshotRepository(db)

	mock.ExpectExec("INSERT INTO schedule_snapshots").
		WithArgs("schedules", sqlmock.AnyArg(), "sched-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), []models.Schedule{
		{ID: "sched-1", Name: "Fall draft"},
		{ID: "sched-2", Name: "Fall final", IsActive: true},
	}, "sched-2")
	require.NoError(t, err)

	payload := `[{"schedule_id":"sched-1","schedule_name":"Fall draft","created_at":"0001-01-01T00:00:00Z","is_active":false},{"schedule_id":"sched-2","schedule_name":"Fall final","created_at":"0001-01-01T00:00:00Z","is_active":true}]`
	rows := sqlmock.NewRows([]string{"id", "payload", "active_id", "updated_at"}).
		AddRow("schedules", []byte(payload), "sched-2", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, payload, active_id, updated_at FROM schedule_snapshots WHERE id = $1")).
		WithArgs("schedules").
		WillReturnRows(rows)

	schedules, activeID, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, schedules, 2)
	assert.Equal(t, "sched-2", activeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
