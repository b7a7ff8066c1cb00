package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/storage"
	"github.com/Dhoini/channel-access-bot/internal/testutil"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntake nil-gateway передаётся как настоящий nil, а не как nil внутри интерфейса
func newIntake(f *fixture, store storage.ProofStore, gw *testutil.Gateway) PaymentIntake {
	cfg := IntakeConfig{MaxBytes: 1 << 20}
	if gw == nil {
		return NewPaymentIntake(f.svc, f.store.Plans(), f.provider, store, nil, cfg, metrics.Nop{}, logger.NewNop())
	}
	return NewPaymentIntake(f.svc, f.store.Plans(), f.provider, store, gw, cfg, metrics.Nop{}, logger.NewNop())
}

func TestSubmitProofStoresScreenshot(t *testing.T) {
	f := newFixture(t)
	store := testutil.NewProofStore()
	intake := newIntake(f, store, nil)
	sub := f.subscriber(t, domain.StatusAwaitingProof, nil)

	saved, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-abc")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingApproval, saved.Status)
	require.Len(t, store.Objects, 1)
	for key := range store.Objects {
		assert.True(t, strings.HasPrefix(key, "proofs/"+f.project.ID.String()+"/alice-4242/"))
		assert.True(t, strings.HasSuffix(key, ".jpg"))
		assert.Equal(t, "https://storage.example/"+key+"?X-Amz-Signature=test", saved.PaymentProofURL)
	}
}

func TestSubmitProofFallsBackWhenStorageFails(t *testing.T) {
	f := newFixture(t)
	store := testutil.NewProofStore()
	store.PutErr = errors.New("bucket unavailable")
	intake := newIntake(f, store, nil)
	sub := f.subscriber(t, domain.StatusAwaitingProof, nil)

	saved, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-abc")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingApproval, saved.Status)
	assert.Equal(t, "telegram-file:file-abc", saved.PaymentProofURL)
}

func TestSubmitProofFallsBackWhenDownloadFails(t *testing.T) {
	f := newFixture(t)
	f.bot.DownloadErr = errors.New("timeout")
	intake := newIntake(f, testutil.NewProofStore(), nil)
	sub := f.subscriber(t, domain.StatusAwaitingProof, nil)

	saved, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-xyz")
	require.NoError(t, err)
	assert.Equal(t, "telegram-file:file-xyz", saved.PaymentProofURL)
}

func TestSubmitProofWithoutStorage(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(f, nil, nil)
	sub := f.subscriber(t, domain.StatusAwaitingProof, nil)

	saved, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "telegram-file:file-1", saved.PaymentProofURL)
}

func TestSubmitProofWrongStatus(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(f, testutil.NewProofStore(), nil)
	sub := f.subscriber(t, domain.StatusActive, nil)

	_, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, sub.Version, f.reload(t, sub.ID).Version)
}

func TestSubmitProofNotifiesAdminChat(t *testing.T) {
	f := newFixture(t)
	f.project.AdminChatID = -999
	intake := newIntake(f, testutil.NewProofStore(), nil)
	sub := f.subscriber(t, domain.StatusAwaitingProof, func(s *domain.Subscriber) { s.Username = "<script>" })

	_, err := intake.SubmitProof(context.Background(), &f.project, sub, "file-1")
	require.NoError(t, err)

	msg := f.bot.LastMessage()
	assert.Equal(t, int64(-999), msg.ChatID)
	assert.Contains(t, msg.Text, sub.ID.String())
	assert.Contains(t, msg.Text, "&lt;script&gt;")
	assert.Contains(t, msg.Text, "Monthly")
}

func TestSelectManualMethod(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(f, nil, nil)
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)

	out, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodManual)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, domain.StatusAwaitingProof, out.Subscriber.Status)
	assert.Equal(t, domain.PaymentMethodManual, out.Subscriber.PaymentMethod)

	again, err := intake.SelectMethod(context.Background(), &f.project, out.Subscriber, &f.plan, domain.PaymentMethodManual)
	require.NoError(t, err)
	assert.False(t, again.Changed)
}

func TestSelectMethodDisabled(t *testing.T) {
	f := newFixture(t)
	f.project.CardEnabled = false
	intake := newIntake(f, nil, &testutil.Gateway{})
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)

	_, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSelectCardCreatesSessionOnce(t *testing.T) {
	f := newFixture(t)
	gw := &testutil.Gateway{}
	intake := newIntake(f, nil, gw)
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)

	out, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodCard)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", out.CheckoutURL)
	assert.Equal(t, domain.StatusPendingPayment, out.Subscriber.Status)
	assert.Equal(t, domain.PaymentMethodCard, out.Subscriber.PaymentMethod)

	require.Len(t, gw.Requests, 1)
	req := gw.Requests[0]
	assert.Equal(t, int64(1500), req.PriceMinor)
	assert.Equal(t, sub.ID.String()+":"+f.plan.ID.String()+":1", req.IdempotencyKey)

	again, err := intake.SelectMethod(context.Background(), &f.project, out.Subscriber, &f.plan, domain.PaymentMethodCard)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, out.CheckoutURL, again.CheckoutURL)
	assert.Len(t, gw.Requests, 1)
}

func TestSelectCardFailureKeepsStatus(t *testing.T) {
	f := newFixture(t)
	gw := &testutil.Gateway{Err: domain.NewExternalDependencyError("stripe", "CreateCheckoutSession", errors.New("503"))}
	intake := newIntake(f, nil, gw)
	sub := f.subscriber(t, domain.StatusPendingPayment, nil)

	_, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)

	got := f.reload(t, sub.ID)
	assert.Equal(t, domain.StatusPendingPayment, got.Status)
	assert.Equal(t, sub.Version, got.Version)
}

func TestSelectCardFromAwaitingProof(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(f, nil, &testutil.Gateway{})
	sub := f.subscriber(t, domain.StatusAwaitingProof, func(s *domain.Subscriber) { s.PaymentMethod = domain.PaymentMethodManual })

	out, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodCard)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, out.Subscriber.Status)
	assert.NotEmpty(t, out.Subscriber.CheckoutURL)
}

func TestSelectMethodWrongStatus(t *testing.T) {
	f := newFixture(t)
	intake := newIntake(f, nil, nil)
	sub := f.subscriber(t, domain.StatusActive, nil)

	_, err := intake.SelectMethod(context.Background(), &f.project, sub, &f.plan, domain.PaymentMethodManual)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
