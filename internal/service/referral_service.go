package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"refer-bot/internal/gateway"
	"refer-bot/internal/model"
	"refer-bot/internal/repository"
)

// ErrDeviceTaken means the device id is already bound to another account.
var ErrDeviceTaken = errors.New("device already used")

// ReferralService owns the referral ledger: registration, the one-time
// credit at verification, and leave detection with the matching debit.
type ReferralService struct {
	users      *repository.UserRepository
	membership *MembershipService
	gw         gateway.Gateway
}

func NewReferralService(users *repository.UserRepository, membership *MembershipService, gw gateway.Gateway) *ReferralService {
	return &ReferralService{users: users, membership: membership, gw: gw}
}

// RegisterContact creates the user on first contact, storing the referrer
// parsed from the /start argument. The argument is ignored when it is not
// numeric, names the sender, or names an unknown user. The referral point
// is not granted here; it is granted once, at verification.
func (s *ReferralService) RegisterContact(ctx context.Context, telegramID int64, refArg string) (*model.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	created := model.User{TelegramID: telegramID}
	if referrerID, ok := s.parseReferrer(ctx, telegramID, refArg); ok {
		created.ReferrerID = &referrerID
	}
	if err := s.users.Create(ctx, &created); err != nil {
		return nil, err
	}
	log.Printf("[info] new user %d referrer=%v", telegramID, created.ReferrerID)
	return &created, nil
}

func (s *ReferralService) parseReferrer(ctx context.Context, telegramID int64, refArg string) (int64, bool) {
	refArg = strings.TrimSpace(refArg)
	if refArg == "" {
		return 0, false
	}
	referrerID, err := strconv.ParseInt(refArg, 10, 64)
	if err != nil || referrerID == telegramID {
		return 0, false
	}
	if _, err := s.users.FindByTelegramID(ctx, referrerID); err != nil {
		return 0, false
	}
	return referrerID, true
}

// CreditOnVerification grants the referrer one point the first time the
// referred user verifies, and notifies the referrer. Safe to call again.
func (s *ReferralService) CreditOnVerification(ctx context.Context, telegramID int64) error {
	credited, referrerID, err := s.users.CreditReferrer(ctx, telegramID)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}
	log.Printf("[info] referral credit referrer=%d referred=%d", referrerID, telegramID)
	if err := s.gw.SendMessage(referrerID, "🎉 New referral joined, +1 point"); err != nil {
		log.Printf("notify referrer %d: %v", referrerID, err)
	}
	return nil
}

// VerifyDevice binds a device id to the user and marks them verified,
// rejecting devices already bound to a different account. The one-time
// referral credit fires here.
func (s *ReferralService) VerifyDevice(ctx context.Context, telegramID int64, deviceID string) error {
	existing, err := s.users.FindByDeviceID(ctx, deviceID)
	switch {
	case err == nil:
		if existing.TelegramID != telegramID {
			return ErrDeviceTaken
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Device unseen, fine.
	default:
		return fmt.Errorf("find device: %w", err)
	}

	if err := s.users.MarkVerified(ctx, telegramID, deviceID); err != nil {
		return err
	}
	return s.CreditOnVerification(ctx, telegramID)
}

// HandleLeave debits the referrer one point after the referred user left.
// The debit is latched so repeated leave events are no-ops, and it never
// drives a balance negative.
func (s *ReferralService) HandleLeave(ctx context.Context, telegramID int64) error {
	debited, referrerID, err := s.users.RevokeReferral(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !debited {
		return nil
	}
	log.Printf("[info] referral revoked referrer=%d referred=%d", referrerID, telegramID)
	if err := s.gw.SendMessage(referrerID, "⚠️ Your referral left. 1 point deducted."); err != nil {
		log.Printf("notify referrer %d: %v", referrerID, err)
	}
	return nil
}

// SweepLeft re-checks channel membership for every user whose referral is
// still credited and revokes the credit for those who left.
func (s *ReferralService) SweepLeft(ctx context.Context) error {
	users, err := s.users.ListCreditedActive(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.membership.HasJoinedAll(user.TelegramID) {
			continue
		}
		if err := s.HandleLeave(ctx, user.TelegramID); err != nil {
			log.Printf("leave sweep for %d: %v", user.TelegramID, err)
		}
	}
	return nil
}
