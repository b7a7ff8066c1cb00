package service

import (
	"context"
	"testing"

	"github.com/Dhoini/channel-access-bot/internal/checkout"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/repository/memory"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookService(f *fixture, dedupe repository.Deduplicator) WebhookService {
	return NewWebhookService(f.store.Projects(), f.svc, f.provider, dedupe,
		"https://bot.example.com/", "signing-key", logger.NewNop())
}

func TestRegisterWebhook(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, nil)

	hookURL, err := svc.Register(context.Background(), f.project.ID)
	require.NoError(t, err)

	want := "https://bot.example.com/webhooks/telegram?project_id=" + f.project.ID.String()
	assert.Equal(t, want, hookURL)
	assert.Equal(t, []string{want}, f.bot.Webhooks)
	assert.Equal(t, []string{telegram.WebhookSecret("signing-key", f.project.BotToken)}, f.bot.WebhookKeys)
}

func TestRegisterWebhookUnknownProject(t *testing.T) {
	f := newFixture(t)
	_, err := newWebhookService(f, nil).Register(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func completedEvent(f *fixture, sub *domain.Subscriber) *checkout.CompletedCheckout {
	return &checkout.CompletedCheckout{
		EventID:      "evt_1",
		SessionID:    "cs_test_1",
		ProjectID:    f.project.ID,
		PlanID:       f.plan.ID,
		SubscriberID: sub.ID,
	}
}

func TestCheckoutCompletedTwiceApprovesOnce(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, memory.NewDeduplicator())
	sub := f.subscriber(t, domain.StatusPendingPayment, func(s *domain.Subscriber) {
		s.PaymentMethod = domain.PaymentMethodCard
		s.CheckoutURL = "https://checkout.stripe.com/c/pay/cs_test_1"
	})
	event := completedEvent(f, sub)

	res, err := svc.HandleCheckoutCompleted(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, res)
	first := f.reload(t, sub.ID)
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.Equal(t, "stripe-checkout:cs_test_1", first.PaymentProofURL)
	assert.Empty(t, first.CheckoutURL)

	res, err = svc.HandleCheckoutCompleted(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, first.Version, f.reload(t, sub.ID).Version)
	assert.Len(t, f.bot.Invites, 1)
}

func TestCheckoutCompletedWithoutDedupeIsStillIdempotent(t *testing.T) {
	f := newFixture(t)
	svc := newWebhookService(f, nil)
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)
	event := completedEvent(f, sub)

	_, err := svc.HandleCheckoutCompleted(context.Background(), event)
	require.NoError(t, err)
	first := f.reload(t, sub.ID)

	event.EventID = "evt_2"
	_, err = svc.HandleCheckoutCompleted(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, first.Version, f.reload(t, sub.ID).Version)
	assert.Equal(t, *first.ExpiryDate, *f.reload(t, sub.ID).ExpiryDate)
}

func TestCheckoutCompletedProjectMismatch(t *testing.T) {
	f := newFixture(t)
	dedupe := memory.NewDeduplicator()
	svc := newWebhookService(f, dedupe)
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)
	event := completedEvent(f, sub)
	event.ProjectID = uuid.New()

	_, err := svc.HandleCheckoutCompleted(context.Background(), event)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.StatusPendingPayment, f.reload(t, sub.ID).Status)

	// claim снят, повторная доставка обрабатывается
	claimed, err := dedupe.Claim(context.Background(), "stripe:event:evt_1", 0)
	require.NoError(t, err)
	assert.True(t, claimed)
}
