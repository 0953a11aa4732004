package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/skvorcov/auth_service/internal/models"
	"github.com/skvorcov/auth_service/internal/session"
)

func (r *GormRepo) SaveRefresh(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", value).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *GormRepo) DeleteRefreshByValue(ctx context.Context, value string) (int64, error) {
	tx := r.DB.WithContext(ctx).Where("token = ?", value).Delete(&models.RefreshToken{})
	return tx.RowsAffected, tx.Error
}

func (r *GormRepo) DeleteRefreshByUser(ctx context.Context, userID uint) (int64, error) {
	tx := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{})
	return tx.RowsAffected, tx.Error
}

func (r *GormRepo) Transact(ctx context.Context, fn func(session.Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}
