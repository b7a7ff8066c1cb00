package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/bot"
	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/repository/cache"
	"github.com/Dhoini/channel-access-bot/internal/service"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/Dhoini/channel-access-bot/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxWebhookBody = 1 << 20
	updateClaimTTL = 24 * time.Hour
)

// WebhookConfig секреты вебхуков
type WebhookConfig struct {
	SigningKey          string
	StripeWebhookSecret string
}

// WebhookHandler входящие вебхуки Telegram и Stripe
type WebhookHandler struct {
	projects repository.ProjectRepository
	router   bot.Router
	webhooks service.WebhookService
	dedupe   repository.Deduplicator
	cfg      WebhookConfig
	metrics  metrics.BotMetrics
	log      *logger.Logger
}

// NewWebhookHandler создает обработчик вебхуков; dedupe может быть nil
func NewWebhookHandler(
	projects repository.ProjectRepository,
	router bot.Router,
	webhooks service.WebhookService,
	dedupe repository.Deduplicator,
	cfg WebhookConfig,
	m metrics.BotMetrics,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		projects: projects,
		router:   router,
		webhooks: webhooks,
		dedupe:   dedupe,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// HandleTelegramWebhook POST /webhooks/telegram?project_id=<uuid>.
// Порядок проверок: формат id, проект, секрет; до секрета ничего не пишется.
func (h *WebhookHandler) HandleTelegramWebhook(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		h.metrics.IncWebhook("telegram", "bad_request")
		writeError(c, h.log, domain.NewValidationError("project_id", "must be a valid UUID"))
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrNotFound) {
			h.metrics.IncWebhook("telegram", "not_found")
			writeError(c, h.log, domain.NewNotFoundError("project", projectID.String()))
			return
		}
		h.metrics.IncWebhook("telegram", "error")
		writeError(c, h.log, err)
		return
	}

	if !telegram.VerifySecret(h.cfg.SigningKey, project.BotToken, c.GetHeader(telegram.SecretHeader)) {
		h.metrics.IncWebhook("telegram", "unauthorized")
		h.log.Warnw("Telegram webhook secret mismatch", "projectID", projectID, "ip", c.ClientIP())
		writeError(c, h.log, &domain.AuthenticationError{Reason: "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.metrics.IncWebhook("telegram", "bad_request")
		writeError(c, h.log, domain.NewValidationError("body", "unreadable request body"))
		return
	}

	// на мусор отвечаем 200, иначе Telegram будет повторять доставку
	upd, ok, err := telegram.ParseUpdate(body)
	if err != nil || !ok {
		if err != nil {
			h.log.Warnw("Unparsable Telegram update", "projectID", projectID, "error", err)
		}
		h.metrics.IncWebhook("telegram", "ignored")
		res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	claimKey := ""
	if h.dedupe != nil {
		key := cache.UpdateKey(project.ID, upd.UpdateID)
		claimed, err := h.dedupe.Claim(ctx, key, updateClaimTTL)
		switch {
		case err != nil:
			h.log.Warnw("Update dedupe unavailable", "projectID", projectID, "updateID", upd.UpdateID, "error", err)
		case !claimed:
			h.metrics.IncWebhook("telegram", "duplicate")
			res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
			return
		default:
			claimKey = key
		}
	}

	if err := h.router.Handle(ctx, project, upd); err != nil {
		if claimKey != "" {
			if relErr := h.dedupe.Release(context.WithoutCancel(ctx), claimKey); relErr != nil {
				h.log.Warnw("Failed to release update claim", "key", claimKey, "error", relErr)
			}
		}
		h.metrics.IncWebhook("telegram", "error")
		h.log.Errorw("Failed to handle Telegram update", "projectID", projectID, "updateID", upd.UpdateID, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "internal server error"}, http.StatusInternalServerError, h.log)
		return
	}

	h.metrics.IncWebhook("telegram", "ok")
	res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
}

// HandleStripeWebhook POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.metrics.IncWebhook("stripe", "bad_request")
		writeError(c, h.log, domain.NewValidationError("body", "unreadable request body"))
		return
	}

	event, err := checkout.ParseCompletedEvent(payload, c.GetHeader(checkout.SignatureHeader), h.cfg.StripeWebhookSecret)
	switch {
	case errors.Is(err, checkout.ErrIgnoredEvent):
		h.metrics.IncWebhook("stripe", "ignored")
		res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
		return
	case errors.Is(err, domain.ErrUnauthenticated):
		h.metrics.IncWebhook("stripe", "unauthorized")
		h.log.Warnw("Stripe webhook signature verification failed", "ip", c.ClientIP(), "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "invalid signature"}, http.StatusBadRequest, h.log)
		return
	case err != nil:
		h.metrics.IncWebhook("stripe", "bad_request")
		writeError(c, h.log, err)
		return
	}

	result, err := h.webhooks.HandleCheckoutCompleted(c.Request.Context(), event)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		// повтор доставки ничего не изменит; событие остаётся в логах для ручного разбора
		h.metrics.IncWebhook("stripe", "rejected")
		h.log.Errorw("Stripe checkout not applied", "eventID", event.EventID, "subscriberID", event.SubscriberID, "error", err)
		res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
		return
	default:
		h.metrics.IncWebhook("stripe", "error")
		h.log.Errorw("Failed to apply Stripe checkout", "eventID", event.EventID, "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "internal server error"}, http.StatusInternalServerError, h.log)
		return
	}

	if result == nil {
		h.metrics.IncWebhook("stripe", "duplicate")
	} else {
		h.metrics.IncWebhook("stripe", "ok")
		if len(result.Warnings) > 0 {
			h.log.Warnw("Card payment approved with warnings", "subscriberID", event.SubscriberID, "warnings", result.Warnings)
		}
	}
	res.JsonResponse(c.Writer, res.OK{OK: true}, http.StatusOK)
}
