package service

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"refer-bot/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeGateway records outbound traffic and serves canned membership
// statuses per channel.
type fakeGateway struct {
	statuses  map[string]string
	statusErr error
	sent      []sentMessage
	answered  []string
}

func (f *fakeGateway) SendMessage(chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeGateway) SendMessageWithMarkup(chatID int64, text string, _ interface{}) error {
	return f.SendMessage(chatID, text)
}

func (f *fakeGateway) ChatMemberStatus(channel string, _ int64) (string, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if status, ok := f.statuses[channel]; ok {
		return status, nil
	}
	return "member", nil
}

func (f *fakeGateway) AnswerCallback(_, text string) error {
	f.answered = append(f.answered, text)
	return nil
}

func (f *fakeGateway) messagesTo(chatID int64) []string {
	var out []string
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}
