package model

import "time"

// Setting is a singleton key/value row (e.g. the withdraw threshold).
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
