package repository

import (
	"context"
	"testing"

	"refer-bot/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCreditReferrer_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{TelegramID: 50, Points: 3}); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if err := repo.Create(ctx, &model.User{TelegramID: 100, ReferrerID: int64Ptr(50)}); err != nil {
		t.Fatalf("create referred: %v", err)
	}

	credited, referrerID, err := repo.CreditReferrer(ctx, 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !credited || referrerID != 50 {
		t.Fatalf("expected credit for referrer 50, got credited=%v id=%d", credited, referrerID)
	}

	referrer, err := repo.FindByTelegramID(ctx, 50)
	if err != nil {
		t.Fatalf("find referrer: %v", err)
	}
	if referrer.Points != 4 {
		t.Errorf("expected 4 points, got %d", referrer.Points)
	}

	// Second invocation must be a no-op.
	credited, _, err = repo.CreditReferrer(ctx, 100)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if credited {
		t.Error("expected second credit to be latched")
	}
	referrer, _ = repo.FindByTelegramID(ctx, 50)
	if referrer.Points != 4 {
		t.Errorf("expected points to stay at 4, got %d", referrer.Points)
	}
}

func TestCreditReferrer_NoReferrer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{TelegramID: 200}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	credited, _, err := repo.CreditReferrer(ctx, 200)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credited {
		t.Error("expected no credit for a user without referrer")
	}
}

func TestRevokeReferral_OnlyOnceAndFloorsAtZero(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{TelegramID: 50, Points: 1}); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if err := repo.Create(ctx, &model.User{TelegramID: 100, ReferrerID: int64Ptr(50), ReferralCredited: true}); err != nil {
		t.Fatalf("create referred: %v", err)
	}

	debited, referrerID, err := repo.RevokeReferral(ctx, 100)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !debited || referrerID != 50 {
		t.Fatalf("expected debit for referrer 50, got debited=%v id=%d", debited, referrerID)
	}
	referrer, _ := repo.FindByTelegramID(ctx, 50)
	if referrer.Points != 0 {
		t.Errorf("expected 0 points, got %d", referrer.Points)
	}

	// Repeat is latched.
	debited, _, err = repo.RevokeReferral(ctx, 100)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if debited {
		t.Error("expected second revoke to be latched")
	}
	referrer, _ = repo.FindByTelegramID(ctx, 50)
	if referrer.Points != 0 {
		t.Errorf("expected points to stay at 0, got %d", referrer.Points)
	}
}

func TestRevokeReferral_SkipsUncredited(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{TelegramID: 50, Points: 2}); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	// Referred but never verified, so no credit was ever granted.
	if err := repo.Create(ctx, &model.User{TelegramID: 100, ReferrerID: int64Ptr(50)}); err != nil {
		t.Fatalf("create referred: %v", err)
	}

	debited, _, err := repo.RevokeReferral(ctx, 100)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if debited {
		t.Error("expected no debit when credit was never granted")
	}
	referrer, _ := repo.FindByTelegramID(ctx, 50)
	if referrer.Points != 2 {
		t.Errorf("expected points unchanged at 2, got %d", referrer.Points)
	}
}

func TestMarkVerified_UnknownUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	if err := repo.MarkVerified(context.Background(), 999, "dev"); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestCountReferrals(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{TelegramID: 50}); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	for _, id := range []int64{101, 102, 103} {
		if err := repo.Create(ctx, &model.User{TelegramID: id, ReferrerID: int64Ptr(50)}); err != nil {
			t.Fatalf("create referred %d: %v", id, err)
		}
	}

	count, err := repo.CountReferrals(ctx, 50)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 referrals, got %d", count)
	}
}
