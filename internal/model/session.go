package model

import "time"

// AdminSession remembers what an admin was asked to send next, across
// stateless webhook calls. Expired sessions read as absent.
type AdminSession struct {
	TelegramID int64 `gorm:"primaryKey"`
	State      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
