package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/upstream"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
)

type authClient interface {
	Login(ctx context.Context, email, password string) (*upstream.LoginResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.UserInfo, error)
}

// LoginRequest carries console login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is what the console UI needs to land the user.
type LoginResponse struct {
	User      models.UserInfo `json:"user"`
	HomeRoute string          `json:"home_route"`
}

// AuthService proxies session lifecycle calls to the platform and verifies
// upstream-issued access tokens locally. Token issuance stays upstream; the
// gateway only reads the embedded role claim so route protection needs no
// server round trip.
type AuthService struct {
	client    authClient
	state     *SessionState
	secret    string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(client authClient, state *SessionState, secret string, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{client: client, state: state, secret: secret, validator: validate, logger: logger}
}

// Login authenticates upstream and records the session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	result, err := s.client.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	s.state.SetUser(result.User)
	s.logger.Info("user signed in", zap.String("user_id", result.User.ID), zap.String("role", string(result.User.Role)))

	return &LoginResponse{
		User:      result.User,
		HomeRoute: result.User.Role.HomeRoute(),
	}, nil
}

// Logout revokes the session upstream and clears local state. The local
// clear happens regardless of the upstream outcome.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("upstream logout failed", zap.Error(err))
		return err
	}
	return nil
}

// Verify re-fetches the profile to confirm the stored session is still
// valid, refreshing the cached user on success.
func (s *AuthService) Verify(ctx context.Context) (*models.UserInfo, error) {
	if !s.state.Authenticated() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no active session")
	}
	user, err := s.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.state.SetUser(*user)
	return user, nil
}

// ValidateToken parses and verifies an access token, returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
