package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"refer-bot/internal/model"
	"refer-bot/internal/repository"
)

var (
	// ErrInsufficientPoints means the balance is below the threshold.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrOutOfStock means no unused coupon is left.
	ErrOutOfStock = errors.New("coupons out of stock")
)

// RedeemService exchanges points for a coupon code. The whole exchange
// runs in one transaction built from conditional single-statement updates,
// so concurrent withdrawals can never double-spend a balance or hand the
// same coupon to two users.
type RedeemService struct {
	db               *gorm.DB
	settings         *repository.SettingRepository
	defaultThreshold int
}

func NewRedeemService(db *gorm.DB, settings *repository.SettingRepository, defaultThreshold int) *RedeemService {
	return &RedeemService{db: db, settings: settings, defaultThreshold: defaultThreshold}
}

// Threshold returns the stored withdrawal threshold, falling back to the
// configured default when no setting exists yet.
func (s *RedeemService) Threshold(ctx context.Context) int {
	value, err := s.settings.GetInt(ctx, repository.WithdrawPointsKey)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("read %s setting: %v", repository.WithdrawPointsKey, err)
		}
		return s.defaultThreshold
	}
	return value
}

// Withdraw debits the threshold amount, claims the oldest unused coupon
// and logs the redemption; all or nothing.
func (s *RedeemService) Withdraw(ctx context.Context, telegramID int64) (*model.Redemption, error) {
	threshold := s.Threshold(ctx)

	var redemption *model.Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("telegram_id = ? AND points >= ?", telegramID, threshold).
			UpdateColumn("points", gorm.Expr("points - ?", threshold))
		if res.Error != nil {
			return fmt.Errorf("debit points: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientPoints
		}

		coupon, err := repository.NewCouponRepository(tx).ClaimOldestUnused(ctx, telegramID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOutOfStock
			}
			return err
		}

		redemption = &model.Redemption{
			ID:         uuid.NewString(),
			TelegramID: telegramID,
			Code:       coupon.Code,
		}
		return repository.NewRedemptionRepository(tx).Create(ctx, redemption)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[info] redeemed coupon %s user=%d", redemption.Code, telegramID)
	return redemption, nil
}
