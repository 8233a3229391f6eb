package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"refer-bot/internal/model"
)

// RedemptionRepository keeps the append-only payout log.
type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) Create(ctx context.Context, redemption *model.Redemption) error {
	if err := r.db.WithContext(ctx).Create(redemption).Error; err != nil {
		return fmt.Errorf("create redemption: %w", err)
	}
	return nil
}

// ListRecent returns the latest redemptions, newest first.
func (r *RedemptionRepository) ListRecent(ctx context.Context, limit int) ([]model.Redemption, error) {
	var redemptions []model.Redemption
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").Limit(limit).
		Find(&redemptions).Error; err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}
