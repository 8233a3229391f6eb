package gateway

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Gateway is the outbound messaging-platform surface. The bot and the
// services talk to this interface so tests can swap in a recorder.
type Gateway interface {
	SendMessage(chatID int64, text string) error
	SendMessageWithMarkup(chatID int64, text string, markup interface{}) error
	ChatMemberStatus(channel string, userID int64) (string, error)
	AnswerCallback(callbackID, text string) error
}

// Telegram wraps the Bot API client.
type Telegram struct {
	api *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)
	return &Telegram{api: api}, nil
}

func (t *Telegram) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) SendMessageWithMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := t.api.Send(msg)
	return err
}

// ChatMemberStatus asks Telegram for the user's membership status in a
// channel, e.g. "member", "administrator" or "left".
func (t *Telegram) ChatMemberStatus(channel string, userID int64) (string, error) {
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("get chat member: %w", err)
	}
	return member.Status, nil
}

func (t *Telegram) AnswerCallback(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
