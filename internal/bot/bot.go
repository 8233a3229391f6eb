package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"refer-bot/internal/config"
	"refer-bot/internal/gateway"
	"refer-bot/internal/repository"
	"refer-bot/internal/service"
)

const (
	menuStats    = "📊 Stats"
	menuRefLink  = "🔗 Referral Link"
	menuWithdraw = "💸 Withdraw"

	menuAdminPanel  = "👑 Admin Panel"
	menuAdminAdd    = "➕ Add Coupon"
	menuAdminRemove = "➖ Remove Coupon"
	menuAdminStock  = "📦 Coupon Stock"
	menuAdminLogs   = "📜 Redeems Log"
	menuAdminPoints = "⚙ Change Withdraw Points"
)

const (
	cbCheckJoin   = "check_join"
	cbVerifyCheck = "verify_check"
)

// Pending admin-session states.
const (
	stateAwaitingCodes       = "awaiting_codes"
	stateAwaitingRemoveCount = "awaiting_remove_count"
	stateAwaitingThreshold   = "awaiting_threshold"
)

const (
	statusLeft     = "left"
	redeemLogLimit = 10
)

// Bot routes inbound webhook updates to the referral and coupon flows.
type Bot struct {
	gw          gateway.Gateway
	cfg         *config.Config
	users       *repository.UserRepository
	coupons     *repository.CouponRepository
	redemptions *repository.RedemptionRepository
	sessions    *repository.SessionRepository
	settings    *repository.SettingRepository
	membership  *service.MembershipService
	referrals   *service.ReferralService
	redeem      *service.RedeemService
}

// Deps bundles everything the bot needs.
type Deps struct {
	Gateway     gateway.Gateway
	Config      *config.Config
	Users       *repository.UserRepository
	Coupons     *repository.CouponRepository
	Redemptions *repository.RedemptionRepository
	Sessions    *repository.SessionRepository
	Settings    *repository.SettingRepository
	Membership  *service.MembershipService
	Referrals   *service.ReferralService
	Redeem      *service.RedeemService
}

func New(deps Deps) *Bot {
	return &Bot{
		gw:          deps.Gateway,
		cfg:         deps.Config,
		users:       deps.Users,
		coupons:     deps.Coupons,
		redemptions: deps.Redemptions,
		sessions:    deps.Sessions,
		settings:    deps.Settings,
		membership:  deps.Membership,
		referrals:   deps.Referrals,
		redeem:      deps.Redeem,
	}
}

// HandleUpdate classifies one webhook update and dispatches it. Unknown
// update kinds are no-ops.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	switch {
	case update.ChatMember != nil:
		return b.handleChatMember(ctx, update.ChatMember)
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func (b *Bot) handleChatMember(ctx context.Context, ev *tgbotapi.ChatMemberUpdated) error {
	if ev.NewChatMember.Status != statusLeft {
		return nil
	}
	subjectID := ev.From.ID
	if ev.NewChatMember.User != nil {
		subjectID = ev.NewChatMember.User.ID
	}
	log.Printf("[info] member left channel %s user=%d", ev.Chat.UserName, subjectID)
	return b.referrals.HandleLeave(ctx, subjectID)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", userID, msg.Command(), msg.CommandArguments())
		switch msg.Command() {
		case "start":
			return b.handleStart(ctx, msg)
		case "admin":
			if !b.cfg.IsAdmin(userID) {
				return nil
			}
			return b.gw.SendMessageWithMarkup(userID, "👑 Admin Panel", adminMenuKeyboard())
		default:
			return b.gw.SendMessage(msg.Chat.ID, "Unknown command. Press /start to begin.")
		}
	}

	text := strings.TrimSpace(msg.Text)

	if b.cfg.IsAdmin(userID) {
		if handled, err := b.handleAdminMenu(ctx, userID, text); handled {
			return err
		}
		state, err := b.sessions.Get(ctx, userID)
		if err != nil {
			return b.replyTryAgain(userID, err)
		}
		if state != "" {
			return b.handleAdminState(ctx, userID, state, text)
		}
	}

	switch text {
	case menuStats:
		return b.handleStats(ctx, userID)
	case menuRefLink:
		return b.handleRefLink(userID)
	case menuWithdraw:
		return b.handleWithdraw(ctx, userID)
	}

	return b.gw.SendMessage(msg.Chat.ID, "I didn't get that. Press /start to begin.")
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID

	user, err := b.referrals.RegisterContact(ctx, userID, msg.CommandArguments())
	if err != nil {
		return b.replyTryAgain(userID, err)
	}

	if !b.membership.HasJoinedAll(userID) {
		return b.gw.SendMessageWithMarkup(userID,
			"🔒 Join all channels first, then press the button below.",
			joinKeyboard(b.cfg.Channels))
	}
	if user.Verified {
		return b.sendMainMenu(userID, "✅ You are verified.")
	}
	return b.sendVerifyPrompt(userID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	userID := cb.From.ID

	switch cb.Data {
	case cbCheckJoin:
		if !b.membership.HasJoinedAll(userID) {
			return b.gw.AnswerCallback(cb.ID, "Join all channels first!")
		}
		b.ackCallback(cb.ID)
		return b.sendVerifyPrompt(userID)

	case cbVerifyCheck:
		user, err := b.users.FindByTelegramID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.gw.AnswerCallback(cb.ID, "Press /start first")
			}
			b.ackCallback(cb.ID)
			return b.replyTryAgain(userID, err)
		}
		if !user.Verified {
			return b.gw.AnswerCallback(cb.ID, "Not verified yet")
		}
		if err := b.referrals.CreditOnVerification(ctx, userID); err != nil {
			log.Printf("credit on verification for %d: %v", userID, err)
		}
		b.ackCallback(cb.ID)
		return b.sendMainMenu(userID, "✅ Verified")

	default:
		return b.gw.AnswerCallback(cb.ID, "")
	}
}

func (b *Bot) handleStats(ctx context.Context, userID int64) error {
	user, err := b.users.FindByTelegramID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.gw.SendMessage(userID, "Press /start first.")
		}
		return b.replyTryAgain(userID, err)
	}
	refs, err := b.users.CountReferrals(ctx, userID)
	if err != nil {
		return b.replyTryAgain(userID, err)
	}
	return b.gw.SendMessage(userID, fmt.Sprintf("💰 Points: %d\n👤 Referrals: %d", user.Points, refs))
}

func (b *Bot) handleRefLink(userID int64) error {
	link := fmt.Sprintf("https://t.me/%s?start=%d", b.cfg.BotUsername, userID)
	return b.gw.SendMessage(userID, "Your link:\n"+link)
}

func (b *Bot) handleWithdraw(ctx context.Context, userID int64) error {
	redemption, err := b.redeem.Withdraw(ctx, userID)
	switch {
	case errors.Is(err, service.ErrInsufficientPoints):
		return b.gw.SendMessage(userID, "❌ Not enough points")
	case errors.Is(err, service.ErrOutOfStock):
		return b.gw.SendMessage(userID, "❌ Coupons out of stock")
	case err != nil:
		return b.replyTryAgain(userID, err)
	}

	for _, adminID := range b.cfg.AdminIDs {
		if err := b.gw.SendMessage(adminID, fmt.Sprintf("User %d redeemed %s", userID, redemption.Code)); err != nil {
			log.Printf("notify admin %d: %v", adminID, err)
		}
	}
	return b.gw.SendMessage(userID, fmt.Sprintf("🎉 Coupon: <code>%s</code>", escape(redemption.Code)))
}

func (b *Bot) handleAdminMenu(ctx context.Context, userID int64, text string) (bool, error) {
	switch text {
	case menuAdminPanel:
		return true, b.gw.SendMessageWithMarkup(userID, "👑 Admin Panel", adminMenuKeyboard())

	case menuAdminAdd:
		if err := b.sessions.Set(ctx, userID, stateAwaitingCodes, b.cfg.SessionTTL); err != nil {
			return true, b.replyTryAgain(userID, err)
		}
		return true, b.gw.SendMessage(userID, "Send coupon codes line by line")

	case menuAdminRemove:
		if err := b.sessions.Set(ctx, userID, stateAwaitingRemoveCount, b.cfg.SessionTTL); err != nil {
			return true, b.replyTryAgain(userID, err)
		}
		return true, b.gw.SendMessage(userID, "Send the number of coupons to remove")

	case menuAdminStock:
		count, err := b.coupons.CountUnused(ctx)
		if err != nil {
			return true, b.replyTryAgain(userID, err)
		}
		return true, b.gw.SendMessage(userID, fmt.Sprintf("📦 Stock: %d", count))

	case menuAdminLogs:
		logs, err := b.redemptions.ListRecent(ctx, redeemLogLimit)
		if err != nil {
			return true, b.replyTryAgain(userID, err)
		}
		if len(logs) == 0 {
			return true, b.gw.SendMessage(userID, "No redemptions yet")
		}
		var builder strings.Builder
		builder.WriteString(fmt.Sprintf("📜 Last %d redemptions\n", len(logs)))
		for _, entry := range logs {
			builder.WriteString(fmt.Sprintf("%d -> %s\n", entry.TelegramID, escape(entry.Code)))
		}
		return true, b.gw.SendMessage(userID, strings.TrimSpace(builder.String()))

	case menuAdminPoints:
		if err := b.sessions.Set(ctx, userID, stateAwaitingThreshold, b.cfg.SessionTTL); err != nil {
			return true, b.replyTryAgain(userID, err)
		}
		return true, b.gw.SendMessage(userID, "Send the new withdraw threshold")
	}
	return false, nil
}

func (b *Bot) handleAdminState(ctx context.Context, userID int64, state, text string) error {
	switch state {
	case stateAwaitingCodes:
		count, err := b.coupons.BulkInsert(ctx, strings.Split(text, "\n"))
		if err != nil {
			return b.replyTryAgain(userID, err)
		}
		if err := b.sessions.Clear(ctx, userID); err != nil {
			return b.replyTryAgain(userID, err)
		}
		log.Printf("[info] admin %d added %d coupons", userID, count)
		return b.gw.SendMessage(userID, fmt.Sprintf("✅ Added %d coupons", count))

	case stateAwaitingRemoveCount:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n <= 0 {
			return b.gw.SendMessage(userID, "Send a positive number.")
		}
		removed, err := b.coupons.RemoveUnused(ctx, n)
		if err != nil {
			return b.replyTryAgain(userID, err)
		}
		if err := b.sessions.Clear(ctx, userID); err != nil {
			return b.replyTryAgain(userID, err)
		}
		log.Printf("[info] admin %d removed %d coupons", userID, removed)
		return b.gw.SendMessage(userID, fmt.Sprintf("🗑 Removed %d coupons", removed))

	case stateAwaitingThreshold:
		value, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || value <= 0 {
			return b.gw.SendMessage(userID, "Send a positive number.")
		}
		if err := b.settings.SetInt(ctx, repository.WithdrawPointsKey, value); err != nil {
			return b.replyTryAgain(userID, err)
		}
		if err := b.sessions.Clear(ctx, userID); err != nil {
			return b.replyTryAgain(userID, err)
		}
		log.Printf("[info] admin %d set withdraw threshold to %d", userID, value)
		return b.gw.SendMessage(userID, fmt.Sprintf("⚙ Withdraw threshold updated to %d", value))

	default:
		// Stale state from an older build, drop it.
		return b.sessions.Clear(ctx, userID)
	}
}

func (b *Bot) sendMainMenu(userID int64, text string) error {
	return b.gw.SendMessageWithMarkup(userID, text, mainMenuKeyboard(b.cfg.IsAdmin(userID)))
}

func (b *Bot) sendVerifyPrompt(userID int64) error {
	url := fmt.Sprintf("%s/verify?uid=%d", b.cfg.VerifyBaseURL, userID)
	return b.gw.SendMessageWithMarkup(userID, "🌐 Complete verification to unlock the menu.", verifyKeyboard(url))
}

func (b *Bot) ackCallback(callbackID string) {
	if err := b.gw.AnswerCallback(callbackID, ""); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) replyTryAgain(chatID int64, err error) error {
	log.Printf("handler error for %d: %v", chatID, err)
	return b.gw.SendMessage(chatID, "Something went wrong, please try again later.")
}

func escape(s string) string {
	return html.EscapeString(s)
}
