// Package checkout оплата картой через Stripe Checkout.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	serviceName = "stripe"

	// ключи метаданных сессии, по ним вебхук находит подписчика
	metadataProjectID    = "project_id"
	metadataPlanID       = "plan_id"
	metadataSubscriberID = "subscriber_id"
)

// Gateway создание hosted checkout сессий
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// SessionRequest данные для разовой оплаты тарифа
type SessionRequest struct {
	ProjectID    uuid.UUID
	PlanID       uuid.UUID
	SubscriberID uuid.UUID
	PlanName     string
	PriceMinor   int64
	Currency     string
	// IdempotencyKey повтор с тем же ключом вернёт ту же сессию
	IdempotencyKey string
}

// Session созданная сессия
type Session struct {
	ID  string
	URL string
}

// IdempotencyKey ключ на попытку оплаты: подписчик, тариф и версия записи
func IdempotencyKey(subscriberID, planID uuid.UUID, version int64) string {
	return fmt.Sprintf("%s:%s:%d", subscriberID, planID, version)
}

// Config параметры Stripe
type Config struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
	// BackendURL переопределяет адрес API (тесты, stripe-mock)
	BackendURL string
}

type stripeGateway struct {
	client  *client.API
	cfg     Config
	metrics metrics.BotMetrics
	log     *logger.Logger
}

// NewStripeGateway создает клиента Stripe
func NewStripeGateway(cfg Config, m metrics.BotMetrics, log *logger.Logger) (Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("stripe api key is not configured")
	}
	if cfg.SuccessURL == "" {
		return nil, errors.New("stripe success url is not configured")
	}
	if cfg.CancelURL == "" {
		cfg.CancelURL = cfg.SuccessURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(2),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackend(stripe.ConnectBackend),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	})

	return &stripeGateway{client: sc, cfg: cfg, metrics: m, log: log}, nil
}

// CreateSession создает сессию в режиме payment с одной позицией по цене тарифа
func (g *stripeGateway) CreateSession(ctx context.Context, req SessionRequest) (_ *Session, err error) {
	started := time.Now()
	defer func() { g.metrics.ObserveExternalCall(serviceName, "CreateCheckoutSession", started, err) }()

	if req.PriceMinor <= 0 {
		return nil, domain.NewValidationError("price", "plan price must be positive")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.SubscriberID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.PlanName),
					},
					UnitAmount: stripe.Int64(req.PriceMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata(metadataProjectID, req.ProjectID.String())
	params.AddMetadata(metadataPlanID, req.PlanID.String())
	params.AddMetadata(metadataSubscriberID, req.SubscriberID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(g.log, "CreateCheckoutSession", err)
		return nil, domain.NewExternalDependencyError(serviceName, "CreateCheckoutSession", err)
	}

	g.log.Infow("Stripe checkout session created",
		"sessionID", sess.ID, "subscriberID", req.SubscriberID, "planID", req.PlanID)
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// logStripeError детали ошибки Stripe API
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	log.Errorw("Non-Stripe error during Stripe operation", "operation", operation, "error", err)
}
