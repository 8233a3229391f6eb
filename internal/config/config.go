package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot and its HTTP surface.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	ListenAddr    string
	WebhookSecret string
	BotUsername   string
	VerifyBaseURL string

	AdminIDs []int64
	Channels []string

	// WithdrawPoints is the default threshold; the stored setting,
	// mutable by admins, takes precedence once present.
	WithdrawPoints int
	SweepInterval  time.Duration
	SessionTTL     time.Duration
}

// Load reads configuration from the environment (and .env when present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ListenAddr:    strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		WebhookSecret: strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		BotUsername:   strings.TrimPrefix(strings.TrimSpace(os.Getenv("BOT_USERNAME")), "@"),
		VerifyBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("VERIFY_BASE_URL")), "/"),

		AdminIDs: parseIDList(os.Getenv("ADMIN_IDS")),
		Channels: parseList(os.Getenv("REQUIRED_CHANNELS")),

		WithdrawPoints: parseInt(os.Getenv("WITHDRAW_POINTS"), 10),
		SweepInterval:  parseHours(os.Getenv("SWEEP_INTERVAL_HOURS")),
		SessionTTL:     time.Duration(parseInt(os.Getenv("ADMIN_SESSION_TTL_MINUTES"), 10)) * time.Minute,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "refer_bot.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// IsAdmin reports whether the given Telegram id is on the allow-list.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDList(raw string) []int64 {
	var out []int64
	for _, part := range parseList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseHours(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
