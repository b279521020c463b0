package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/models"
)

// DefaultSessionID keys the single console session a gateway instance
// carries.
const DefaultSessionID = "primary"

type sessionPersister interface {
	Upsert(ctx context.Context, session *models.ConsoleSession) error
	Find(ctx context.Context, id string) (*models.ConsoleSession, error)
	Delete(ctx context.Context, id string) error
}

// SessionState is the in-memory authoritative copy of the console session:
// token pair, user profile and the authenticated flag. Every mutation is
// written through to the durable snapshot so a restart resumes the session;
// persistence failures are logged, never surfaced, because the in-memory
// state is the source of truth. It implements upstream.SessionStore.
type SessionState struct {
	mu      sync.Mutex
	session models.ConsoleSession
	repo    sessionPersister
	logger  *zap.Logger
}

// NewSessionState builds the state container. repo may be nil in tests.
func NewSessionState(repo sessionPersister, logger *zap.Logger) *SessionState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionState{
		session: models.ConsoleSession{ID: DefaultSessionID},
		repo:    repo,
		logger:  logger,
	}
}

// Restore loads the durable snapshot if one exists. A missing row is not an
// error, it just means nobody was signed in.
func (s *SessionState) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	stored, err := s.repo.Find(ctx, DefaultSessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.session = *stored
	s.mu.Unlock()
	return nil
}

// Tokens returns the current token pair.
func (s *SessionState) Tokens() models.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Tokens()
}

// SetTokens replaces the token pair, e.g. after login or refresh.
func (s *SessionState) SetTokens(pair models.TokenPair) {
	s.mu.Lock()
	s.session.AccessToken = pair.AccessToken
	s.session.RefreshToken = pair.RefreshToken
	s.session.Authenticated = pair.AccessToken != ""
	snapshot := s.session
	s.mu.Unlock()

	s.persist(&snapshot)
}

// SetUser stores the signed-in profile.
func (s *SessionState) SetUser(user models.UserInfo) {
	s.mu.Lock()
	s.session.UserID = user.ID
	s.session.UserEmail = user.Email
	s.session.UserFullName = user.FullName
	s.session.UserRole = user.Role
	snapshot := s.session
	s.mu.Unlock()

	s.persist(&snapshot)
}

// Clear wipes tokens, profile and the authenticated flag, and drops the
// durable snapshot. Called on logout and irrecoverable auth failure.
func (s *SessionState) Clear() {
	s.mu.Lock()
	s.session = models.ConsoleSession{ID: DefaultSessionID}
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.repo.Delete(ctx, DefaultSessionID); err != nil {
		s.logger.Warn("failed to delete session snapshot", zap.Error(err))
	}
}

// Authenticated reports whether a signed-in session is present.
func (s *SessionState) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Authenticated
}

// User returns the stored profile.
func (s *SessionState) User() models.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.User()
}

func (s *SessionState) persist(snapshot *models.ConsoleSession) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.repo.Upsert(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist session snapshot", zap.Error(err))
	}
}
