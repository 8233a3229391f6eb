package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"refer-bot/internal/model"
)

// SessionRepository persists per-admin conversation state across
// stateless webhook calls.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get returns the pending state for the admin, or "" when none is set.
// Expired sessions are dropped on read.
func (r *SessionRepository) Get(ctx context.Context, telegramID int64) (string, error) {
	var session model.AdminSession
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		if err := r.Clear(ctx, telegramID); err != nil {
			return "", err
		}
		return "", nil
	}
	return session.State, nil
}

// Set stores the pending state with the given time to live.
func (r *SessionRepository) Set(ctx context.Context, telegramID int64, state string, ttl time.Duration) error {
	session := model.AdminSession{
		TelegramID: telegramID,
		State:      state,
		ExpiresAt:  time.Now().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Save(&session).Error; err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, telegramID int64) error {
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Delete(&model.AdminSession{}).Error; err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
