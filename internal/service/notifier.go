package service

import (
	"context"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// Notifier единая точка отправки уведомлений о смене состояния.
// Не зависит от HTTP-запроса: используется роутером, админским API, вебхуком Stripe и sweeper.
type Notifier interface {
	Notify(ctx context.Context, project *domain.Project, sub *domain.Subscriber, n domain.Notification) error
}

type notifier struct {
	bots       telegram.Provider
	maxElapsed time.Duration
	metrics    metrics.BotMetrics
	log        *logger.Logger
}

// NewNotifier создает диспетчер уведомлений
func NewNotifier(bots telegram.Provider, maxElapsed time.Duration, m metrics.BotMetrics, log *logger.Logger) Notifier {
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	return &notifier{bots: bots, maxElapsed: maxElapsed, metrics: m, log: log}
}

// Notify рендерит и отправляет сообщение с экспоненциальными повторами.
// Ошибки 4xx Telegram (кроме 429) не повторяются.
func (n *notifier) Notify(ctx context.Context, project *domain.Project, sub *domain.Subscriber, note domain.Notification) error {
	if note.Support == "" {
		note.Support = project.SupportContact
	}
	text, err := note.Render()
	if err != nil {
		n.metrics.IncNotification(string(note.Action), "invalid")
		return err
	}

	bot, err := n.bots.Bot(ctx, project.BotToken)
	if err != nil {
		n.metrics.IncNotification(string(note.Action), "failed")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = n.maxElapsed

	attempts := 0
	send := func() error {
		attempts++
		err := bot.SendMessage(ctx, telegram.OutgoingMessage{ChatID: sub.ChatID, Text: text})
		if err != nil && telegram.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(send, backoff.WithContext(policy, ctx)); err != nil {
		n.metrics.IncNotification(string(note.Action), "failed")
		n.log.Warnw("Failed to deliver notification",
			"action", note.Action, "subscriberID", sub.ID, "attempts", attempts, "error", err)
		return err
	}

	n.metrics.IncNotification(string(note.Action), "sent")
	n.log.Debugw("Notification delivered", "action", note.Action, "subscriberID", sub.ID, "attempts", attempts)
	return nil
}
