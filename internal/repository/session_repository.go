package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/schedura/console-gateway/internal/models"
)

// SessionRepository is the durable tier of the console session cache. The
// in-memory session state stays authoritative; rows here only exist so a
// gateway restart does not force everyone through login again.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert writes the session snapshot.
func (r *SessionRepository) Upsert(ctx context.Context, session *models.ConsoleSession) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO console_sessions (id, access_token, refresh_token, user_id, user_email, user_full_name, user_role, authenticated, created_at, updated_at)
		VALUES (:id, :access_token, :refresh_token, :user_id, :user_email, :user_full_name, :user_role, :authenticated, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    user_id = EXCLUDED.user_id,
		    user_email = EXCLUDED.user_email,
		    user_full_name = EXCLUDED.user_full_name,
		    user_role = EXCLUDED.user_role,
		    authenticated = EXCLUDED.authenticated,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("upsert console session: %w", err)
	}
	return nil
}

// Find loads one session snapshot by id.
func (r *SessionRepository) Find(ctx context.Context, id string) (*models.ConsoleSession, error) {
	const query = `SELECT id, access_token, refresh_token, user_id, user_email, user_full_name, user_role, authenticated, created_at, updated_at FROM console_sessions WHERE id = $1`
	var session models.ConsoleSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete drops a session snapshot, used on logout.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM console_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete console session: %w", err)
	}
	return nil
}
