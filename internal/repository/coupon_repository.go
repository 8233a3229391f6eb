package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"refer-bot/internal/model"
)

// CouponRepository handles the coupon inventory.
type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// BulkInsert stores one coupon per non-blank line and returns how many
// were inserted.
func (r *CouponRepository) BulkInsert(ctx context.Context, codes []string) (int, error) {
	var coupons []model.Coupon
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			coupons = append(coupons, model.Coupon{Code: code})
		}
	}
	if len(coupons) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Create(&coupons).Error; err != nil {
		return 0, fmt.Errorf("insert coupons: %w", err)
	}
	return len(coupons), nil
}

// ClaimOldestUnused atomically marks the oldest unused coupon as used by
// the given user. The conditional update guarantees a coupon is handed to
// at most one user; losing a race moves on to the next coupon.
func (r *CouponRepository) ClaimOldestUnused(ctx context.Context, telegramID int64) (*model.Coupon, error) {
	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < 3; attempt++ {
		var coupon model.Coupon
		if err := db.Where("used = ?", false).Order("id ASC").First(&coupon).Error; err != nil {
			return nil, err
		}

		res := db.Model(&model.Coupon{}).
			Where("id = ? AND used = ?", coupon.ID, false).
			Updates(map[string]interface{}{"used": true, "used_by": telegramID})
		if res.Error != nil {
			return nil, fmt.Errorf("claim coupon: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			coupon.Used = true
			coupon.UsedBy = &telegramID
			return &coupon, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *CouponRepository) CountUnused(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("used = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count coupons: %w", err)
	}
	return count, nil
}

// RemoveUnused deletes the first n unused coupons and returns how many
// were actually removed.
func (r *CouponRepository) RemoveUnused(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)

	var ids []uint
	if err := db.Model(&model.Coupon{}).
		Where("used = ?", false).Order("id ASC").Limit(n).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("select coupons to remove: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := db.Where("id IN ? AND used = ?", ids, false).Delete(&model.Coupon{})
	if res.Error != nil {
		return 0, fmt.Errorf("remove coupons: %w", res.Error)
	}
	return res.RowsAffected, nil
}
