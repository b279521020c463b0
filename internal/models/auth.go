package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole enumerates the roles embedded in upstream access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// HomeRoute returns the role-scoped landing route the UI should open after
// authentication. Unknown roles fall back to the student dashboard.
func (r UserRole) HomeRoute() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleTeacher:
		return "/teacher/schedule"
	default:
		return "/student/dashboard"
	}
}

// JWTClaims mirrors the claim set the upstream platform embeds in access
// tokens. The gateway only reads these, it never issues tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// UserInfo is the profile slice the console keeps for the signed-in user.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// TokenPair holds the bearer credentials for one console session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ConsoleSession is the durable snapshot of one browser session: tokens,
// profile and the authenticated flag, persisted so reloads and gateway
// restarts do not force a re-login.
type ConsoleSession struct {
	ID            string    `db:"id" json:"id"`
	AccessToken   string    `db:"access_token" json:"-"`
	RefreshToken  string    `db:"refresh_token" json:"-"`
	UserID        string    `db:"user_id" json:"user_id"`
	UserEmail     string    `db:"user_email" json:"user_email"`
	UserFullName  string    `db:"user_full_name" json:"user_full_name"`
	UserRole      UserRole  `db:"user_role" json:"user_role"`
	Authenticated bool      `db:"authenticated" json:"authenticated"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// User returns the profile stored on the session.
func (s *ConsoleSession) User() UserInfo {
	return UserInfo{
		ID:       s.UserID,
		Email:    s.UserEmail,
		FullName: s.UserFullName,
		Role:     s.UserRole,
	}
}

// Tokens returns the stored token pair.
func (s *ConsoleSession) Tokens() TokenPair {
	return TokenPair{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}
