package repository

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"refer-bot/internal/model"
)

// WithdrawPointsKey names the stored withdrawal threshold.
const WithdrawPointsKey = "withdraw_points"

// SettingRepository manages singleton key/value settings.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetInt reads an integer setting. gorm.ErrRecordNotFound passes through
// so callers can fall back to their configured default.
func (r *SettingRepository) GetInt(ctx context.Context, key string) (int, error) {
	var setting model.Setting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(setting.Value)
	if err != nil {
		return 0, fmt.Errorf("setting %q is not a number: %w", key, err)
	}
	return value, nil
}

// SetInt upserts an integer setting.
func (r *SettingRepository) SetInt(ctx context.Context, key string, value int) error {
	db := r.db.WithContext(ctx)
	setting := model.Setting{Key: key, Value: strconv.Itoa(value)}

	var existing model.Setting
	err := db.Where("key = ?", key).First(&existing).Error
	switch {
	case err == nil:
		if err := db.Model(&existing).Update("value", setting.Value).Error; err != nil {
			return fmt.Errorf("update setting: %w", err)
		}
		return nil
	case err == gorm.ErrRecordNotFound:
		if err := db.Create(&setting).Error; err != nil {
			return fmt.Errorf("create setting: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find setting: %w", err)
	}
}
