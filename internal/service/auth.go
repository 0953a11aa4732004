package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skvorcov/auth_service/internal/events"
	"github.com/skvorcov/auth_service/internal/hash"
	"github.com/skvorcov/auth_service/internal/logging"
	"github.com/skvorcov/auth_service/internal/models"
	"github.com/skvorcov/auth_service/internal/repo"
	"github.com/skvorcov/auth_service/internal/session"
	"github.com/skvorcov/auth_service/internal/token"
)

const (
	DefaultRole       = "USER"
	minPasswordLength = 8
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = session.ErrInvalidRefreshToken
)

type AuthService struct {
	Repo      *repo.GormRepo
	Sessions  *session.Manager
	Signer    *token.Signer
	Revoked   token.RevocationRegistry
	Events    *events.Producer
	AccessTTL time.Duration
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         DefaultRole,
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			l.Warn("register_conflict", "email", email)
			return nil, ErrEmailAlreadyExists
		}
		l.Error("register_error", "error", err)
		return nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "user_registered", user)
	l.Info("register_successful", "user_id", user.ID)
	return pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	// unknown email and wrong password are indistinguishable to the caller
	user, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		l.Error("login_error", "error", err)
		return nil, err
	}
	if user == nil || !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "user_logged_in", user)
	l.Info("login_successful", "user_id", user.ID)
	return pair, nil
}

// Logout is best-effort: a malformed, expired or otherwise invalid token
// means there is nothing to revoke and the call is a silent no-op.
func (s *AuthService) Logout(ctx context.Context, bearerToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(bearerToken), "Bearer "))
	if raw == "" {
		return nil
	}

	claims, err := s.Signer.Verify(raw)
	if err != nil {
		l.Debug("logout_noop", "reason", "token already invalid", "error", err)
		return nil
	}

	if err := s.Revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		l.Error("logout_error", "reason", "cannot revoke access token", "error", err)
		return err
	}

	user, err := s.Repo.FindByEmail(ctx, claims.Subject)
	if err != nil {
		l.Error("logout_error", "error", err)
		return err
	}
	if user != nil {
		if err := s.Sessions.Invalidate(ctx, user.ID); err != nil {
			l.Error("logout_error", "reason", "cannot invalidate session", "error", err)
			return err
		}
		s.publish(ctx, "user_logged_out", user)
	}

	l.Info("logout_successful", "jti", claims.ID)
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshValue string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	rotated, err := s.Sessions.Rotate(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			l.Warn("refresh_rejected", "error", err)
		} else {
			l.Error("refresh_error", "error", err)
		}
		return nil, err
	}

	user, err := s.Repo.GetUserByID(ctx, rotated.UserID)
	if err != nil {
		l.Error("refresh_error", "error", err)
		return nil, err
	}

	access, err := s.Signer.Mint(user.Email, userAuthorities(user), s.AccessTTL)
	if err != nil {
		l.Error("refresh_error", "error", err)
		return nil, err
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: rotated.Token,
		AccessExp:    time.Now().Add(s.AccessTTL),
		RefreshExp:   time.Unix(rotated.ExpiresAt, 0),
	}, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.issue")

	access, err := s.Signer.Mint(user.Email, userAuthorities(user), s.AccessTTL)
	if err != nil {
		l.Error("issue_error", "reason", "cannot mint access token", "error", err)
		return nil, err
	}

	refresh, err := s.Sessions.Create(ctx, user.ID)
	if err != nil {
		l.Error("issue_error", "reason", "cannot create refresh token", "error", err)
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		AccessExp:    time.Now().Add(s.AccessTTL),
		RefreshExp:   time.Unix(refresh.ExpiresAt, 0),
	}, nil
}

// userAuthorities carries the role set plus the password-factor marker,
// which the signer strips before embedding.
func userAuthorities(user *models.User) []string {
	return []string{user.Role, token.PasswordFactorAuthority}
}

func (s *AuthService) publish(ctx context.Context, kind string, user *models.User) {
	if s.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	event := map[string]any{
		"type":    kind,
		"user_id": user.ID,
		"email":   user.Email,
		"at":      time.Now().UTC(),
	}
	if err := s.Events.Publish(pubCtx, fmt.Sprint(user.ID), event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", kind, "error", err)
	}
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}
