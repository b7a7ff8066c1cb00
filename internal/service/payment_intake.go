package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/storage"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
)

// FallbackProofPrefix ссылка на файл в Telegram, если сохранить скриншот не удалось
const FallbackProofPrefix = "telegram-file:"

// IntakeConfig лимиты загрузки скриншота
type IntakeConfig struct {
	DownloadTimeout time.Duration
	StorageTimeout  time.Duration
	MaxBytes        int64
}

// MethodOutcome результат выбора способа оплаты
type MethodOutcome struct {
	Subscriber  *domain.Subscriber
	Changed     bool
	CheckoutURL string
}

// PaymentIntake приём оплаты: скриншот (manual) или Stripe Checkout (card)
type PaymentIntake interface {
	SelectMethod(ctx context.Context, project *domain.Project, sub *domain.Subscriber, plan *domain.Plan, method domain.PaymentMethod) (*MethodOutcome, error)
	SubmitProof(ctx context.Context, project *domain.Project, sub *domain.Subscriber, fileID string) (*domain.Subscriber, error)
}

type paymentIntake struct {
	subscribers SubscriberService
	plans       repository.PlanRepository
	bots        telegram.Provider
	store       storage.ProofStore
	gateway     checkout.Gateway
	cfg         IntakeConfig
	metrics     metrics.BotMetrics
	log         *logger.Logger
	now         func() time.Time
}

// NewPaymentIntake создает конвейер приёма оплаты.
// store и gateway могут быть nil: тогда скриншот сохраняется ссылкой на файл Telegram, а оплата картой недоступна.
func NewPaymentIntake(
	subscribers SubscriberService,
	plans repository.PlanRepository,
	bots telegram.Provider,
	store storage.ProofStore,
	gateway checkout.Gateway,
	cfg IntakeConfig,
	m metrics.BotMetrics,
	log *logger.Logger,
) PaymentIntake {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 15 * time.Second
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &paymentIntake{
		subscribers: subscribers,
		plans:       plans,
		bots:        bots,
		store:       store,
		gateway:     gateway,
		cfg:         cfg,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

func (p *paymentIntake) SelectMethod(ctx context.Context, project *domain.Project, sub *domain.Subscriber, plan *domain.Plan, method domain.PaymentMethod) (*MethodOutcome, error) {
	if !project.MethodEnabled(method) {
		return nil, domain.NewValidationError("method", "payment method is not enabled for this project")
	}
	if sub.Status != domain.StatusPendingPayment && sub.Status != domain.StatusAwaitingProof {
		return nil, &domain.TransitionError{Operation: "choose payment method", From: sub.Status}
	}

	switch method {
	case domain.PaymentMethodManual:
		if sub.Status == domain.StatusAwaitingProof && !samePlan(sub, plan) {
			var err error
			if sub, _, err = p.subscribers.SelectPlan(ctx, sub, plan); err != nil {
				return nil, err
			}
		}
		saved, changed, err := p.subscribers.ChooseManual(ctx, sub, plan)
		if err != nil {
			return nil, err
		}
		return &MethodOutcome{Subscriber: saved, Changed: changed}, nil

	case domain.PaymentMethodCard:
		return p.startCheckout(ctx, project, sub, plan)
	}
	return nil, domain.NewValidationError("method", "unsupported payment method")
}

// startCheckout повторный выбор того же тарифа возвращает сохранённую ссылку без новой сессии
func (p *paymentIntake) startCheckout(ctx context.Context, project *domain.Project, sub *domain.Subscriber, plan *domain.Plan) (*MethodOutcome, error) {
	if sub.Status == domain.StatusPendingPayment && sub.PaymentMethod == domain.PaymentMethodCard &&
		sub.CheckoutURL != "" && samePlan(sub, plan) {
		return &MethodOutcome{Subscriber: sub, CheckoutURL: sub.CheckoutURL}, nil
	}
	if p.gateway == nil {
		return nil, domain.NewExternalDependencyError("stripe", "CreateCheckoutSession", fmt.Errorf("card payments are not configured"))
	}
	if sub.Status == domain.StatusAwaitingProof {
		var err error
		if sub, _, err = p.subscribers.SelectPlan(ctx, sub, plan); err != nil {
			return nil, err
		}
	}

	sess, err := p.gateway.CreateSession(ctx, checkout.SessionRequest{
		ProjectID:      project.ID,
		PlanID:         plan.ID,
		SubscriberID:   sub.ID,
		PlanName:       plan.Name,
		PriceMinor:     plan.PriceMinor,
		Currency:       plan.Currency,
		IdempotencyKey: checkout.IdempotencyKey(sub.ID, plan.ID, sub.Version),
	})
	if err != nil {
		return nil, err
	}

	saved, err := p.subscribers.AttachCheckout(ctx, sub, plan, sess.URL)
	if err != nil {
		return nil, err
	}
	return &MethodOutcome{Subscriber: saved, Changed: true, CheckoutURL: sess.URL}, nil
}

// SubmitProof сохраняет скриншот и переводит подписчика в pending_approval.
// Сбой скачивания или хранилища не блокирует переход: сохраняется ссылка на файл Telegram.
func (p *paymentIntake) SubmitProof(ctx context.Context, project *domain.Project, sub *domain.Subscriber, fileID string) (*domain.Subscriber, error) {
	if sub.Status != domain.StatusAwaitingProof {
		return nil, &domain.TransitionError{Operation: "submit proof", From: sub.Status}
	}

	ref, err := p.storeProof(ctx, project, sub, fileID)
	if err != nil {
		p.log.Warnw("Proof storage failed, using Telegram file reference",
			"subscriberID", sub.ID, "error", err)
		p.metrics.IncProofIntake("fallback")
		ref = FallbackProofPrefix + fileID
	} else {
		p.metrics.IncProofIntake("stored")
	}

	saved, err := p.subscribers.SubmitProof(ctx, sub, ref)
	if err != nil {
		return nil, err
	}

	p.notifyAdmins(context.WithoutCancel(ctx), project, saved)
	return saved, nil
}

func (p *paymentIntake) storeProof(ctx context.Context, project *domain.Project, sub *domain.Subscriber, fileID string) (string, error) {
	if p.store == nil {
		return "", fmt.Errorf("proof storage is not configured")
	}
	bot, err := p.bots.Bot(ctx, project.BotToken)
	if err != nil {
		return "", err
	}

	dlCtx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()
	fileURL, err := bot.FileURL(dlCtx, fileID)
	if err != nil {
		return "", err
	}
	data, err := bot.Download(dlCtx, fileURL, p.cfg.MaxBytes)
	if err != nil {
		return "", err
	}

	contentType, ext := storage.DetectImage(data, fileURL)
	key := storage.ProofKey(project.ID, sub.Username, sub.TelegramUserID, ext, p.now())

	stCtx, stCancel := context.WithTimeout(ctx, p.cfg.StorageTimeout)
	defer stCancel()
	if err := p.store.Put(stCtx, key, data, contentType); err != nil {
		return "", err
	}
	link, err := p.store.PresignGet(stCtx, key)
	if err != nil {
		return "", err
	}

	p.log.Infow("Payment proof stored", "subscriberID", sub.ID, "key", key, "bytes", len(data))
	return link, nil
}

// notifyAdmins уведомление в админский чат проекта, если он настроен
func (p *paymentIntake) notifyAdmins(ctx context.Context, project *domain.Project, sub *domain.Subscriber) {
	if project.AdminChatID == 0 {
		return
	}

	planName := "-"
	if sub.PlanID != nil {
		if plan, err := p.plans.GetByID(ctx, *sub.PlanID); err == nil {
			planName = plan.Name
		}
	}
	username := sub.Username
	if username == "" {
		username = fmt.Sprintf("id%d", sub.TelegramUserID)
	}

	text := fmt.Sprintf("🧾 <b>New payment proof</b>\nSubscriber: <code>%s</code>\nUser: @%s\nPlan: %s\nProof: %s",
		sub.ID, html.EscapeString(username), html.EscapeString(planName), html.EscapeString(sub.PaymentProofURL))

	bot, err := p.bots.Bot(ctx, project.BotToken)
	if err == nil {
		err = bot.SendMessage(ctx, telegram.OutgoingMessage{ChatID: project.AdminChatID, Text: text})
	}
	if err != nil {
		p.log.Warnw("Failed to notify admin chat", "projectID", project.ID, "subscriberID", sub.ID, "error", err)
	}
}
