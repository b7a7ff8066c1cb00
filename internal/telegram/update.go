package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update нормализованное обновление: сообщение (текст или фото) либо нажатие кнопки
type Update struct {
	UpdateID     int
	UserID       int64
	ChatID       int64
	Username     string
	Text         string
	CallbackID   string
	CallbackData string
	PhotoFileID  string
}

// IsCallback true для callback_query
func (u Update) IsCallback() bool { return u.CallbackID != "" }

// IsPhoto true для сообщения с фото
func (u Update) IsPhoto() bool { return u.PhotoFileID != "" }

// ParseUpdate разбирает тело вебхука
func ParseUpdate(body []byte) (Update, bool, error) {
	var raw tgbotapi.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		return Update{}, false, fmt.Errorf("decode update: %w", err)
	}
	u, ok := FromAPI(raw)
	return u, ok, nil
}

// FromAPI переводит обновление Bot API во внутреннее представление.
// ok=false для типов, которые бот не обрабатывает (каналы, правки, участники и т.п.).
func FromAPI(raw tgbotapi.Update) (Update, bool) {
	u := Update{UpdateID: raw.UpdateID}

	switch {
	case raw.Message != nil:
		msg := raw.Message
		if msg.From == nil || msg.Chat == nil {
			return u, false
		}
		u.UserID = msg.From.ID
		u.Username = msg.From.UserName
		u.ChatID = msg.Chat.ID
		u.Text = msg.Text
		if n := len(msg.Photo); n > 0 {
			// Photo отсортированы по размеру, последний самый крупный
			u.PhotoFileID = msg.Photo[n-1].FileID
		}
		if u.Text == "" && u.PhotoFileID == "" {
			return u, false
		}
		return u, true

	case raw.CallbackQuery != nil:
		cb := raw.CallbackQuery
		if cb.From == nil {
			return u, false
		}
		u.UserID = cb.From.ID
		u.Username = cb.From.UserName
		u.CallbackID = cb.ID
		u.CallbackData = cb.Data
		u.ChatID = cb.From.ID
		if cb.Message != nil && cb.Message.Chat != nil {
			u.ChatID = cb.Message.Chat.ID
		}
		return u, true
	}
	return u, false
}
