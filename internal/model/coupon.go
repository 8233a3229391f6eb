package model

import "time"

// Coupon is a single-use reward code handed out for points.
type Coupon struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"index"`
	Used      bool   `gorm:"default:false;index"`
	UsedBy    *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
