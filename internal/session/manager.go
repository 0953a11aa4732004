package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skvorcov/auth_service/internal/models"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Store is the persistence boundary for refresh tokens. FindRefreshByValue
// returns (nil, nil) on a miss. DeleteRefreshByValue reports rows affected
// and doubles as the compare-and-delete primitive rotation relies on.
// Transact runs fn against a store bound to one transaction.
type Store interface {
	SaveRefresh(ctx context.Context, t *models.RefreshToken) error
	FindRefreshByValue(ctx context.Context, value string) (*models.RefreshToken, error)
	DeleteRefreshByValue(ctx context.Context, value string) (int64, error)
	DeleteRefreshByUser(ctx context.Context, userID uint) (int64, error)
	Transact(ctx context.Context, fn func(Store) error) error
}

// Manager owns the refresh-token lifecycle: at most one live token per
// user, single-use rotation, invalidation on logout.
type Manager struct {
	Store      Store
	RefreshTTL time.Duration
}

// Create issues a fresh refresh token for the user, superseding any
// existing one. Login, registration and rotation all terminate here.
func (m *Manager) Create(ctx context.Context, userID uint) (*models.RefreshToken, error) {
	var created *models.RefreshToken
	err := m.Store.Transact(ctx, func(s Store) error {
		var err error
		created, err = m.createIn(ctx, s, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (m *Manager) createIn(ctx context.Context, s Store, userID uint) (*models.RefreshToken, error) {
	if _, err := s.DeleteRefreshByUser(ctx, userID); err != nil {
		return nil, err
	}
	t := &models.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(m.RefreshTTL).Unix(),
	}
	if err := s.SaveRefresh(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Rotate exchanges a presented refresh-token value for a fresh one.
// The presented value is consumed: a second presentation always fails,
// including when two callers race on the same value.
func (m *Manager) Rotate(ctx context.Context, value string) (*models.RefreshToken, error) {
	var rotated *models.RefreshToken
	var invalid error
	err := m.Store.Transact(ctx, func(s Store) error {
		existing, err := s.FindRefreshByValue(ctx, value)
		if err != nil {
			return err
		}
		if existing == nil {
			invalid = fmt.Errorf("%w: not found or already used", ErrInvalidRefreshToken)
			return nil
		}
		if existing.ExpiresAt < time.Now().Unix() {
			// commit the deletion of the stale row, report failure after
			if _, err := s.DeleteRefreshByValue(ctx, value); err != nil {
				return err
			}
			invalid = fmt.Errorf("%w: expired", ErrInvalidRefreshToken)
			return nil
		}
		deleted, err := s.DeleteRefreshByValue(ctx, value)
		if err != nil {
			return err
		}
		if deleted == 0 {
			// a concurrent rotation consumed the value first
			invalid = fmt.Errorf("%w: not found or already used", ErrInvalidRefreshToken)
			return nil
		}
		rotated, err = m.createIn(ctx, s, existing.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		return nil, invalid
	}
	return rotated, nil
}

// Invalidate removes every refresh token owned by the user.
func (m *Manager) Invalidate(ctx context.Context, userID uint) error {
	_, err := m.Store.DeleteRefreshByUser(ctx, userID)
	return err
}
