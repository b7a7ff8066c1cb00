package checkout

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKey(t *testing.T) {
	sub := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	plan := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222:3",
		IdempotencyKey(sub, plan, 3))
	assert.NotEqual(t, IdempotencyKey(sub, plan, 3), IdempotencyKey(sub, plan, 4))
}

func TestNewStripeGatewayValidation(t *testing.T) {
	_, err := NewStripeGateway(Config{SuccessURL: "https://t.me/bot"}, metrics.Nop{}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewStripeGateway(Config{APIKey: "sk_test_x"}, metrics.Nop{}, logger.NewNop())
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	var (
		gotForm        url.Values
		gotIdempotency string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotIdempotency = r.Header.Get("Idempotency-Key")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cs_test_1",
			"object": "checkout.session",
			"url":    "https://checkout.stripe.com/c/pay/cs_test_1",
		})
	}))
	defer srv.Close()

	gw, err := NewStripeGateway(Config{
		APIKey:     "sk_test_x",
		SuccessURL: "https://t.me/bot",
		BackendURL: srv.URL,
		Timeout:    2 * time.Second,
	}, metrics.Nop{}, logger.NewNop())
	require.NoError(t, err)

	req := SessionRequest{
		ProjectID:      uuid.New(),
		PlanID:         uuid.New(),
		SubscriberID:   uuid.New(),
		PlanName:       "Monthly",
		PriceMinor:     1500,
		Currency:       "USD",
		IdempotencyKey: "sub:plan:1",
	}
	sess, err := gw.CreateSession(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)
	assert.Equal(t, "sub:plan:1", gotIdempotency)
	assert.Equal(t, "payment", gotForm.Get("mode"))
	assert.Equal(t, "usd", gotForm.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "1500", gotForm.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, req.SubscriberID.String(), gotForm.Get("client_reference_id"))
	assert.Equal(t, req.SubscriberID.String(), gotForm.Get("metadata[subscriber_id]"))
	assert.Equal(t, req.PlanID.String(), gotForm.Get("metadata[plan_id]"))
}

func TestCreateSessionRejectsFreePlan(t *testing.T) {
	gw, err := NewStripeGateway(Config{APIKey: "sk_test_x", SuccessURL: "https://t.me/bot"},
		metrics.Nop{}, logger.NewNop())
	require.NoError(t, err)

	_, err = gw.CreateSession(context.Background(), SessionRequest{PriceMinor: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
