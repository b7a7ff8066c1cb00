// Package testutil общие заглушки внешних зависимостей для тестов.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
)

// Bot записывает все вызовы Bot API
type Bot struct {
	mutex sync.Mutex

	Messages    []telegram.OutgoingMessage
	Callbacks   []string
	Invites     []int64
	Removed     []int64
	Unbanned    []int64
	Webhooks    []string
	WebhookKeys []string

	FileData []byte
	FilePath string

	SendErr     error
	InviteErr   error
	RemoveErr   error
	FileErr     error
	DownloadErr error
	// SendFailures сколько первых отправок завершатся SendErr
	SendFailures int

	sendCalls int
}

var _ telegram.Bot = (*Bot)(nil)

// NewBot заглушка, отдающая JPEG-подобный файл
func NewBot() *Bot {
	return &Bot{
		FileData: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'},
		FilePath: "photos/file_1.jpg",
	}
}

func (b *Bot) SendMessage(_ context.Context, msg telegram.OutgoingMessage) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sendCalls++
	if b.SendErr != nil && (b.SendFailures == 0 || b.sendCalls <= b.SendFailures) {
		return b.SendErr
	}
	b.Messages = append(b.Messages, msg)
	return nil
}

func (b *Bot) AnswerCallback(_ context.Context, callbackID, _ string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.Callbacks = append(b.Callbacks, callbackID)
	return nil
}

func (b *Bot) FileURL(_ context.Context, fileID string) (string, error) {
	if b.FileErr != nil {
		return "", b.FileErr
	}
	return fmt.Sprintf("https://files.example/%s/%s", fileID, b.FilePath), nil
}

func (b *Bot) Download(_ context.Context, _ string, maxBytes int64) ([]byte, error) {
	if b.DownloadErr != nil {
		return nil, b.DownloadErr
	}
	if int64(len(b.FileData)) > maxBytes {
		return nil, domain.NewExternalDependencyError("telegram", "downloadFile", fmt.Errorf("file too large"))
	}
	return b.FileData, nil
}

func (b *Bot) SetWebhook(_ context.Context, url, secret string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.Webhooks = append(b.Webhooks, url)
	b.WebhookKeys = append(b.WebhookKeys, secret)
	return nil
}

func (b *Bot) CreateInviteLink(_ context.Context, channelID int64, _ time.Time) (string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.InviteErr != nil {
		return "", b.InviteErr
	}
	b.Invites = append(b.Invites, channelID)
	return fmt.Sprintf("https://t.me/+invite%d", len(b.Invites)), nil
}

func (b *Bot) RemoveMember(_ context.Context, _, userID int64) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.RemoveErr != nil {
		return b.RemoveErr
	}
	b.Removed = append(b.Removed, userID)
	return nil
}

func (b *Bot) Unban(_ context.Context, _, userID int64) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.Unbanned = append(b.Unbanned, userID)
	return nil
}

// Sent копия отправленных сообщений
func (b *Bot) Sent() []telegram.OutgoingMessage {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]telegram.OutgoingMessage(nil), b.Messages...)
}

// LastMessage последнее отправленное сообщение или пустое
func (b *Bot) LastMessage() telegram.OutgoingMessage {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.Messages) == 0 {
		return telegram.OutgoingMessage{}
	}
	return b.Messages[len(b.Messages)-1]
}

// Provider выдаёт одного и того же Bot для любого токена
type Provider struct {
	Client *Bot
	Err    error
}

func (p *Provider) Bot(_ context.Context, _ string) (telegram.Bot, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Client, nil
}

// ProofStore хранилище в памяти
type ProofStore struct {
	mutex   sync.Mutex
	Objects map[string][]byte
	PutErr  error
}

func NewProofStore() *ProofStore {
	return &ProofStore{Objects: make(map[string][]byte)}
}

func (s *ProofStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.Objects[key] = data
	return nil
}

func (s *ProofStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://storage.example/" + key + "?X-Amz-Signature=test", nil
}

// Gateway фиктивный Stripe Checkout
type Gateway struct {
	mutex    sync.Mutex
	Requests []checkout.SessionRequest
	Err      error
}

func (g *Gateway) CreateSession(_ context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.Requests = append(g.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(g.Requests))
	return &checkout.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

// Publisher собирает опубликованные события
type Publisher struct {
	mutex  sync.Mutex
	events []domain.SubscriberEvent
}

func (p *Publisher) PublishSubscriberEvent(_ context.Context, event domain.SubscriberEvent) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *Publisher) Close() error { return nil }

// Events копия опубликованных событий
func (p *Publisher) Events() []domain.SubscriberEvent {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]domain.SubscriberEvent(nil), p.events...)
}

// SendCalls сколько раз вызывался SendMessage, включая неудачные
func (b *Bot) SendCalls() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.sendCalls
}
