package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"refer-bot/internal/model"
)

// UserRepository handles CRUD and point bookkeeping for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByDeviceID(ctx context.Context, deviceID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CountReferrals counts users referred by the given Telegram id.
func (r *UserRepository) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("referrer_id = ?", referrerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

// ListCreditedActive returns users whose referrer has been credited and
// not yet debited back. These are the only leave-sweep candidates.
func (r *UserRepository) ListCreditedActive(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Where("referral_credited = ? AND referral_revoked = ?", true, false).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list credited users: %w", err)
	}
	return users, nil
}

// MarkVerified flags the user verified and binds the device id.
func (r *UserRepository) MarkVerified(ctx context.Context, telegramID int64, deviceID string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]interface{}{"verified": true, "device_id": deviceID})
	if res.Error != nil {
		return fmt.Errorf("mark verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreditReferrer grants the referrer of the given user one point, at most
// once per referred user. The latch flip and the increment run in one
// transaction; a second call is a no-op.
func (r *UserRepository) CreditReferrer(ctx context.Context, referredTelegramID int64) (bool, int64, error) {
	var referrerID int64
	credited := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("telegram_id = ?", referredTelegramID).First(&user).Error; err != nil {
			return err
		}
		if user.ReferrerID == nil || user.ReferralCredited {
			return nil
		}

		res := tx.Model(&model.User{}).
			Where("telegram_id = ? AND referral_credited = ?", referredTelegramID, false).
			UpdateColumn("referral_credited", true)
		if res.Error != nil {
			return fmt.Errorf("latch referral credit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Another invocation won the race.
			return nil
		}

		if err := tx.Model(&model.User{}).
			Where("telegram_id = ?", *user.ReferrerID).
			UpdateColumn("points", gorm.Expr("points + ?", 1)).Error; err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}

		referrerID = *user.ReferrerID
		credited = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return credited, referrerID, nil
}

// RevokeReferral takes the referral point back after the referred user
// left, at most once, and never below zero.
func (r *UserRepository) RevokeReferral(ctx context.Context, leftTelegramID int64) (bool, int64, error) {
	var referrerID int64
	debited := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Where("telegram_id = ?", leftTelegramID).First(&user).Error; err != nil {
			return err
		}
		if user.ReferrerID == nil || !user.ReferralCredited || user.ReferralRevoked {
			return nil
		}

		res := tx.Model(&model.User{}).
			Where("telegram_id = ? AND referral_revoked = ?", leftTelegramID, false).
			UpdateColumn("referral_revoked", true)
		if res.Error != nil {
			return fmt.Errorf("latch referral revoke: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&model.User{}).
			Where("telegram_id = ? AND points > ?", *user.ReferrerID, 0).
			UpdateColumn("points", gorm.Expr("points - ?", 1)).Error; err != nil {
			return fmt.Errorf("debit referrer: %w", err)
		}

		referrerID = *user.ReferrerID
		debited = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return debited, referrerID, nil
}
