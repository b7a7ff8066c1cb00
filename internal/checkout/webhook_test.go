package checkout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testSecret = "whsec_test"

func signedEvent(t *testing.T, eventType string, session map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": session},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestParseCompletedEvent(t *testing.T) {
	projectID, planID, subID := uuid.New(), uuid.New(), uuid.New()
	payload, header := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":             "cs_test_9",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata": map[string]string{
			"project_id":    projectID.String(),
			"plan_id":       planID.String(),
			"subscriber_id": subID.String(),
		},
	})

	got, err := ParseCompletedEvent(payload, header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", got.EventID)
	assert.Equal(t, "cs_test_9", got.SessionID)
	assert.Equal(t, projectID, got.ProjectID)
	assert.Equal(t, planID, got.PlanID)
	assert.Equal(t, subID, got.SubscriberID)
	assert.Equal(t, "stripe-checkout:cs_test_9", got.ProofReference())
}

func TestParseCompletedEventBadSignature(t *testing.T) {
	payload, _ := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs"})

	_, err := ParseCompletedEvent(payload, "t=1,v1=deadbeef", testSecret)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestParseCompletedEventIgnored(t *testing.T) {
	payload, header := signedEvent(t, "payment_intent.created", map[string]any{"id": "pi"})
	_, err := ParseCompletedEvent(payload, header, testSecret)
	assert.ErrorIs(t, err, ErrIgnoredEvent)

	payload, header = signedEvent(t, "checkout.session.completed", map[string]any{
		"id": "cs", "object": "checkout.session", "payment_status": "unpaid",
	})
	_, err = ParseCompletedEvent(payload, header, testSecret)
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}

func TestParseCompletedEventMissingMetadata(t *testing.T) {
	payload, header := signedEvent(t, "checkout.session.completed", map[string]any{
		"id": "cs", "object": "checkout.session", "payment_status": "paid",
		"metadata": map[string]string{"project_id": uuid.NewString()},
	})
	_, err := ParseCompletedEvent(payload, header, testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
