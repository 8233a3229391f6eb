package model

import "time"

// User stores a participant of the referral program.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID int64  `gorm:"uniqueIndex"`
	ReferrerID *int64 `gorm:"index"`
	Points     int    `gorm:"default:0"`
	Verified   bool   `gorm:"default:false"`
	// ReferralCredited latches the one-time credit to the referrer,
	// ReferralRevoked latches the one-time debit after the user leaves.
	ReferralCredited bool    `gorm:"default:false"`
	ReferralRevoked  bool    `gorm:"default:false"`
	DeviceID         *string `gorm:"uniqueIndex"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
