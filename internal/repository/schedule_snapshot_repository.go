package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/schedura/console-gateway/internal/models"
)

// snapshotID keys the single snapshot row; the console caches one schedule
// collection per gateway.
const snapshotID = "schedules"

// ScheduleSnapshotRepository persists the last-fetched schedule collection
// so the console can show it immediately after a restart. It is a soft
// cache, never the source of truth: every authoritative fetch overwrites it.
type ScheduleSnapshotRepository struct {
	db *sqlx.DB
}

// NewScheduleSnapshotRepository constructs the repository.
func NewScheduleSnapshotRepository(db *sqlx.DB) *ScheduleSnapshotRepository {
	return &ScheduleSnapshotRepository{db: db}
}

type snapshotRow struct {
	ID        string    `db:"id"`
	Payload   []byte    `db:"payload"`
	ActiveID  string    `db:"active_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Save replaces the stored snapshot.
func (r *ScheduleSnapshotRepository) Save(ctx context.Context, schedules []models.Schedule, activeID string) error {
	payload, err := json.Marshal(schedules)
	if err != nil {
		return fmt.Errorf("encode schedule snapshot: %w", err)
	}

	const query = `INSERT INTO schedule_snapshots (id, payload, active_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload,
		    active_id = EXCLUDED.active_id,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, snapshotID, payload, activeID, time.Now().UTC()); err != nil {
		return fmt.Errorf("save schedule snapshot: %w", err)
	}
	return nil
}

// Load returns the stored schedules and active schedule id.
func (r *ScheduleSnapshotRepository) Load(ctx context.Context) ([]models.Schedule, string, error) {
	const query = `SELECT id, payload, active_id, updated_at FROM schedule_snapshots WHERE id = $1`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, snapshotID); err != nil {
		return nil, "", err
	}

	var schedules []models.Schedule
	if err := json.Unmarshal(row.Payload, &schedules); err != nil {
		return nil, "", fmt.Errorf("decode schedule snapshot: %w", err)
	}
	return schedules, row.ActiveID, nil
}
