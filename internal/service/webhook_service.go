package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/repository/cache"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
)

const stripeEventTTL = 7 * 24 * time.Hour

// WebhookService регистрация вебхуков Telegram и обработка оплат Stripe
type WebhookService interface {
	// Register вызывает setWebhook для бота проекта
	Register(ctx context.Context, projectID uuid.UUID) (string, error)
	// HandleCheckoutCompleted одобряет подписчика по оплаченной сессии. Дубликаты событий пропускаются.
	HandleCheckoutCompleted(ctx context.Context, event *checkout.CompletedCheckout) (*Result, error)
}

type webhookService struct {
	projects      repository.ProjectRepository
	subscribers   SubscriberService
	bots          telegram.Provider
	dedupe        repository.Deduplicator
	publicBaseURL string
	signingKey    string
	log           *logger.Logger
}

// NewWebhookService создает сервис вебхуков; dedupe может быть nil
func NewWebhookService(
	projects repository.ProjectRepository,
	subscribers SubscriberService,
	bots telegram.Provider,
	dedupe repository.Deduplicator,
	publicBaseURL, signingKey string,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		projects:      projects,
		subscribers:   subscribers,
		bots:          bots,
		dedupe:        dedupe,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signingKey:    signingKey,
		log:           log,
	}
}

// WebhookURL адрес вебхука проекта
func WebhookURL(publicBaseURL string, projectID uuid.UUID) string {
	return fmt.Sprintf("%s/webhooks/telegram?project_id=%s",
		strings.TrimRight(publicBaseURL, "/"), url.QueryEscape(projectID.String()))
}

func (s *webhookService) Register(ctx context.Context, projectID uuid.UUID) (string, error) {
	if s.publicBaseURL == "" {
		return "", domain.NewValidationError("app.publicBaseURL", "public base url is not configured")
	}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", mapRepoError(err, "project", projectID.String())
	}

	bot, err := s.bots.Bot(ctx, project.BotToken)
	if err != nil {
		return "", err
	}
	hookURL := WebhookURL(s.publicBaseURL, project.ID)
	if err := bot.SetWebhook(ctx, hookURL, telegram.WebhookSecret(s.signingKey, project.BotToken)); err != nil {
		s.log.Errorw("Failed to register Telegram webhook", "projectID", projectID, "error", err)
		return "", err
	}

	s.log.Infow("Telegram webhook registered", "projectID", projectID, "url", hookURL)
	return hookURL, nil
}

func (s *webhookService) HandleCheckoutCompleted(ctx context.Context, event *checkout.CompletedCheckout) (*Result, error) {
	key := ""
	if s.dedupe != nil {
		key = cache.StripeEventKey(event.EventID)
		claimed, err := s.dedupe.Claim(ctx, key, stripeEventTTL)
		switch {
		case err != nil:
			s.log.Warnw("Stripe event dedupe unavailable, relying on proof reference", "eventID", event.EventID, "error", err)
			key = ""
		case !claimed:
			s.log.Infow("Duplicate Stripe event skipped", "eventID", event.EventID)
			return nil, nil
		}
	}

	res, err := s.approvePaid(ctx, event)
	if err != nil && key != "" {
		// повторная доставка Stripe должна обработаться заново
		if relErr := s.dedupe.Release(context.WithoutCancel(ctx), key); relErr != nil {
			s.log.Warnw("Failed to release Stripe event claim", "eventID", event.EventID, "error", relErr)
		}
	}
	return res, err
}

func (s *webhookService) approvePaid(ctx context.Context, event *checkout.CompletedCheckout) (*Result, error) {
	sub, err := s.subscribers.Get(ctx, event.SubscriberID)
	if err != nil {
		return nil, err
	}
	if sub.ProjectID != event.ProjectID {
		return nil, domain.NewValidationError("project_id", "checkout session does not match subscriber project")
	}

	res, err := s.subscribers.Approve(ctx, sub.ID, ApproveOptions{
		ProofRef: event.ProofReference(),
		PlanID:   &event.PlanID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// оплата пришла, но статус не позволяет выдать доступ (например, suspended): решает администратор
			s.log.Errorw("Paid checkout cannot be applied automatically",
				"subscriberID", sub.ID, "status", sub.Status, "session", event.SessionID)
		}
		return nil, err
	}

	s.log.Infow("Card payment approved", "subscriberID", sub.ID, "session", event.SessionID)
	return res, nil
}
