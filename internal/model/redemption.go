package model

import "time"

// Redemption is an append-only log entry for a coupon payout.
type Redemption struct {
	ID         string `gorm:"primaryKey"`
	TelegramID int64  `gorm:"index"`
	Code       string
	CreatedAt  time.Time
}
