// Package telegram исходящие вызовы Bot API и разбор входящих обновлений.
package telegram

import (
	"context"
	"time"
)

// Button кнопка inline-клавиатуры: либо callback, либо ссылка
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// OutgoingMessage HTML-сообщение с необязательной клавиатурой
type OutgoingMessage struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}

// Bot операции Bot API для одного токена
type Bot interface {
	SendMessage(ctx context.Context, msg OutgoingMessage) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// FileURL разрешает file_id в ссылку на скачивание (getFile)
	FileURL(ctx context.Context, fileID string) (string, error)
	// Download скачивает файл, не более maxBytes
	Download(ctx context.Context, fileURL string, maxBytes int64) ([]byte, error)
	SetWebhook(ctx context.Context, url, secret string) error
	Membership
}

// Membership управление участниками закрытого канала
type Membership interface {
	// CreateInviteLink одноразовая ссылка (member_limit=1)
	CreateInviteLink(ctx context.Context, channelID int64, expireAt time.Time) (string, error)
	// RemoveMember исключает участника (ban + unban, чтобы можно было вернуться по новой ссылке)
	RemoveMember(ctx context.Context, channelID, userID int64) error
	// Unban снимает бан, если он есть
	Unban(ctx context.Context, channelID, userID int64) error
}

// Provider выдаёт клиента по токену проекта
type Provider interface {
	Bot(ctx context.Context, token string) (Bot, error)
}
