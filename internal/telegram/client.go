package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const serviceName = "telegram"

// Config параметры клиента Bot API
type Config struct {
	APIEndpoint string
	Timeout     time.Duration
	RateLimit   float64 // сообщений в секунду на один токен
}

// BotProvider кэширует клиентов по токену; NewBotAPI делает сетевой getMe, поэтому один раз на токен
type BotProvider struct {
	cfg        Config
	httpClient *http.Client
	metrics    metrics.BotMetrics
	log        *logger.Logger

	mutex sync.Mutex
	bots  map[string]*botClient
}

// NewBotProvider создает провайдера клиентов
func NewBotProvider(cfg Config, m metrics.BotMetrics, log *logger.Logger) *BotProvider {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 25
	}
	return &BotProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
		log:        log,
		bots:       make(map[string]*botClient),
	}
}

var _ Provider = (*BotProvider)(nil)

// Bot возвращает клиента для токена, создавая его при первом обращении.
// getMe идёт без блокировки: медленный токен одного проекта не задерживает остальные.
func (p *BotProvider) Bot(ctx context.Context, token string) (Bot, error) {
	p.mutex.Lock()
	b, ok := p.bots[token]
	p.mutex.Unlock()
	if ok {
		return b, nil
	}

	var api *tgbotapi.BotAPI
	err := runWithContext(ctx, func() error {
		var err error
		api, err = tgbotapi.NewBotAPIWithClient(token, p.cfg.APIEndpoint, p.httpClient)
		return err
	})
	if err != nil {
		return nil, domain.NewExternalDependencyError(serviceName, "getMe", scrubURL(err))
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	// параллельный запрос мог успеть первым
	if existing, ok := p.bots[token]; ok {
		return existing, nil
	}
	b = &botClient{
		api:        api,
		httpClient: p.httpClient,
		limiter:    rate.NewLimiter(rate.Limit(p.cfg.RateLimit), int(p.cfg.RateLimit)),
		metrics:    p.metrics,
		log:        p.log.With("bot", api.Self.UserName),
	}
	p.bots[token] = b
	p.log.Infow("Telegram bot client initialized", "bot", api.Self.UserName)
	return b, nil
}

type botClient struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    metrics.BotMetrics
	log        *logger.Logger
}

// runWithContext tgbotapi не принимает context; ждём результат или отмену.
// Горутина в худшем случае живёт до таймаута http.Client.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *botClient) call(ctx context.Context, op string, fn func() error) (err error) {
	started := time.Now()
	defer func() { b.metrics.ObserveExternalCall(serviceName, op, started, err) }()

	if err = b.limiter.Wait(ctx); err != nil {
		return domain.NewExternalDependencyError(serviceName, op, err)
	}
	if err = runWithContext(ctx, fn); err != nil {
		return domain.NewExternalDependencyError(serviceName, op, scrubURL(err))
	}
	return nil
}

// scrubURL url.Error содержит адрес запроса, а в нём токен бота
func scrubURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func (b *botClient) SendMessage(ctx context.Context, msg OutgoingMessage) error {
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	if kb := keyboard(msg.Buttons); kb != nil {
		cfg.ReplyMarkup = *kb
	}
	return b.call(ctx, "sendMessage", func() error {
		_, err := b.api.Send(cfg)
		return err
	})
}

func keyboard(rows [][]Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

func (b *botClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return b.call(ctx, "answerCallbackQuery", func() error {
		_, err := b.api.Request(tgbotapi.NewCallback(callbackID, text))
		return err
	})
}

func (b *botClient) FileURL(ctx context.Context, fileID string) (string, error) {
	var link string
	err := b.call(ctx, "getFile", func() error {
		file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
		if err != nil {
			return err
		}
		if file.FilePath == "" {
			return errors.New("empty file path")
		}
		link = file.Link(b.api.Token)
		return nil
	})
	return link, err
}

// Download обычный GET: в tgbotapi нет загрузки файлов
func (b *botClient) Download(ctx context.Context, fileURL string, maxBytes int64) (data []byte, err error) {
	started := time.Now()
	defer func() { b.metrics.ObserveExternalCall(serviceName, "downloadFile", started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, domain.NewExternalDependencyError(serviceName, "downloadFile", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		// в тексте ошибки есть URL с токеном, поэтому наружу только тип ошибки
		return nil, domain.NewExternalDependencyError(serviceName, "downloadFile", errors.New("request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalDependencyError(serviceName, "downloadFile", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, domain.NewExternalDependencyError(serviceName, "downloadFile", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.NewExternalDependencyError(serviceName, "downloadFile", fmt.Errorf("file exceeds %d bytes", maxBytes))
	}
	return data, nil
}

func (b *botClient) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": `["message","callback_query"]`,
	}
	return b.call(ctx, "setWebhook", func() error {
		_, err := b.api.MakeRequest("setWebhook", params)
		return err
	})
}

func (b *botClient) CreateInviteLink(ctx context.Context, channelID int64, expireAt time.Time) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: channelID},
		MemberLimit: 1,
	}
	if !expireAt.IsZero() {
		cfg.ExpireDate = int(expireAt.Unix())
	}

	var link string
	err := b.call(ctx, "createChatInviteLink", func() error {
		resp, err := b.api.Request(cfg)
		if err != nil {
			return err
		}
		var invite tgbotapi.ChatInviteLink
		if err := json.Unmarshal(resp.Result, &invite); err != nil {
			return fmt.Errorf("decode invite link: %w", err)
		}
		link = invite.InviteLink
		return nil
	})
	return link, err
}

func (b *botClient) RemoveMember(ctx context.Context, channelID, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: userID}
	err := b.call(ctx, "banChatMember", func() error {
		_, err := b.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member})
		return err
	})
	if err != nil {
		return err
	}
	return b.Unban(ctx, channelID, userID)
}

func (b *botClient) Unban(ctx context.Context, channelID, userID int64) error {
	member := tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: userID}
	return b.call(ctx, "unbanChatMember", func() error {
		_, err := b.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true})
		return err
	})
}

// IsPermanent ошибки 4xx Bot API (кроме 429) повторять бессмысленно
func IsPermanent(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
	}
	return false
}
